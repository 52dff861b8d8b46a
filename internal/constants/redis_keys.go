package constants

import "time"

// Redis Key 命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// CandidateModulePrefix 候选人模块
	CandidateModulePrefix = "candidate"

	// EntityContentHash 内容哈希实体
	EntityContentHash = "content_hash"

	// KeyContentHashToID 内容哈希到候选人ID的映射 (STRING)
	// 格式: app:candidate:content_hash:{sha1_hex}
	KeyContentHashToID = AppPrefix + ":" + CandidateModulePrefix + ":" + EntityContentHash + ":%s"

	// DefaultContentHashExpire 内容哈希记录的默认过期时间
	DefaultContentHashExpire = 365 * 24 * time.Hour
)
