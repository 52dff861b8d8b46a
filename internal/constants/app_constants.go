package constants

const (
	// CandidateNamespace 候选人简历分块所在的向量库命名空间
	CandidateNamespace = "Resumes"
	// JobNamespace 岗位描述记录所在的向量库命名空间
	JobNamespace = "Job_Descriptions"

	// CandidateIDPrefix 候选人标识符统一前缀
	CandidateIDPrefix = "resumes_"
	// ChunkIDMarker 分块ID中候选人前缀与分块后缀的分隔标记
	ChunkIDMarker = "_chunk"

	// MaxSlugLength 姓名slug在参与哈希前的截断长度。
	// 完整ID需控制在约70字符以内，避免超过向量库的key长度限制。
	MaxSlugLength = 64
	// ShortHashLength 标识符尾部短哈希的十六进制长度
	ShortHashLength = 6
	// RandomIDLength 随机策略生成的标识符十六进制长度
	RandomIDLength = 12

	// DefaultTopK 相似度查询的默认返回数量
	DefaultTopK = 10
	// DefaultListPageSize 向量ID分页列举的默认页大小
	DefaultListPageSize = 100
	// DefaultUnifyBatchSize 统一工具fetch/upsert的默认批大小
	DefaultUnifyBatchSize = 100
)
