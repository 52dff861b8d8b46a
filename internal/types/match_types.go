package types

import (
	"fmt"
	"strings"
)

// Bucket 候选人与岗位匹配的分类结果
type Bucket string

const (
	// BucketHired 达到录用线
	BucketHired Bucket = "Hired"
	// BucketShortlisted 进入候选名单
	BucketShortlisted Bucket = "Shortlisted"
	// BucketRejected 低于淘汰线
	BucketRejected Bucket = "Rejected"
	// BucketNonDomain 分数落在淘汰线与候选线之间，视为非本领域候选人
	BucketNonDomain Bucket = "NonDomain"
)

// Short 返回单字母缩写，用于表格输出和LLM提示词中的紧凑形式
func (b Bucket) Short() string {
	switch b {
	case BucketHired:
		return "H"
	case BucketShortlisted:
		return "S"
	case BucketRejected:
		return "R"
	case BucketNonDomain:
		return "N"
	}
	return "?"
}

// BucketFromShort 从单字母缩写还原Bucket，LLM返回的judgment里使用缩写形式
func BucketFromShort(s string) (Bucket, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "H":
		return BucketHired, true
	case "S":
		return BucketShortlisted, true
	case "R":
		return BucketRejected, true
	case "N":
		return BucketNonDomain, true
	}
	return "", false
}

// CandidateChunk 摄取阶段的简历分块（JSON文件中的一个元素）
type CandidateChunk struct {
	ChunkIndex int                    `json:"chunk_index"`
	Section    string                 `json:"section"`
	ChunkText  string                 `json:"chunk_text"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// CandidateRecord 聚合后的逻辑候选人记录
type CandidateRecord struct {
	CandidateID string   `json:"candidate_id"`
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Skills      []string `json:"skills,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	ChunkIDs    []string `json:"chunk_ids"`
	SourceFile  string   `json:"source_file,omitempty"`
}

// JobRecord 岗位描述记录
type JobRecord struct {
	JobID              string                 `json:"jd_id"`
	Title              string                 `json:"title"`
	ExperienceRequired string                 `json:"experience_required,omitempty"`
	PrimarySkills      []string               `json:"primary_skills,omitempty"`
	SecondarySkills    []string               `json:"secondary_skills,omitempty"`
	Description        string                 `json:"description,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
}

// MatchResult 一次候选人-岗位匹配的结果。
// Bucket由Score和共享阈值唯一确定，不存在没有Score的MatchResult。
type MatchResult struct {
	CandidateID string  `json:"candidate_id"`
	JobID       string  `json:"job_id"`
	Score       float64 `json:"score"`
	Bucket      Bucket  `json:"bucket"`
	Reason      string  `json:"reason,omitempty"`
}

// VectorRecord 向量库中的一条记录 (id, vector, metadata)
type VectorRecord struct {
	ID       string                 `json:"id"`
	Vector   []float64              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CandidateDisplayName 从分块metadata中提取展示用姓名。
// 字段优先级沿用摄取端的历史命名，找不到时返回"Unknown"。
func CandidateDisplayName(metadata map[string]interface{}) string {
	for _, key := range []string{"candidate_name_redacted", "CandidateName", "name", "candidate_name"} {
		if v, ok := metadata[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return "Unknown"
}

// FlattenMetadata 将嵌套metadata压平为向量库允许的形态：
// 标量、字符串列表，其余值字符串化。nil值归一为空字符串。
func FlattenMetadata(md map[string]interface{}) map[string]interface{} {
	clean := make(map[string]interface{}, len(md))
	for k, v := range md {
		switch val := v.(type) {
		case nil:
			clean[k] = ""
		case string, bool, int, int32, int64, float32, float64:
			clean[k] = val
		case []string:
			clean[k] = strings.Join(val, ", ")
		case []interface{}:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				if item == nil {
					continue
				}
				parts = append(parts, fmt.Sprintf("%v", item))
			}
			clean[k] = strings.Join(parts, ", ")
		default:
			clean[k] = fmt.Sprintf("%v", val)
		}
	}
	return clean
}
