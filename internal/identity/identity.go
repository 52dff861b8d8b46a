package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"talent-match-go/internal/constants"

	googleuuid "github.com/google/uuid"
)

// Strategy 候选人ID生成策略
type Strategy string

const (
	StrategyUUID        Strategy = "uuid"
	StrategyEmail       Strategy = "email"
	StrategyName        Strategy = "name"
	StrategyContentHash Strategy = "content_hash"
)

// ParseStrategy 解析策略字符串，未知值报错
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyUUID:
		return StrategyUUID, nil
	case StrategyEmail:
		return StrategyEmail, nil
	case StrategyName:
		return StrategyName, nil
	case StrategyContentHash:
		return StrategyContentHash, nil
	default:
		return "", fmt.Errorf("未知的ID策略: %q", s)
	}
}

// Source 生成候选人ID所需的原始材料
type Source struct {
	Name    string
	Email   string
	Content string
}

// Slugify 把任意文本压成向量库安全的标识片段：
// 小写，保留字母数字、空格、下划线和连字符，其余字符替换为空格，
// 再按空白切分用下划线连接，最长64字符。
func Slugify(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	slug := strings.Join(strings.Fields(b.String()), "_")
	if len(slug) > constants.MaxSlugLength {
		slug = slug[:constants.MaxSlugLength]
	}
	return slug
}

// ShortHash 返回文本SHA1十六进制摘要的前6位
func ShortHash(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:constants.ShortHashLength]
}

// ContentHash 返回文本的完整SHA1十六进制摘要，用于去重登记
func ContentHash(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// NewCandidateID 按策略生成带"resumes_"前缀的候选人ID。
// 材料不足以执行所选策略时回退到随机ID，保证摄取不中断。
func NewCandidateID(src Source, strategy Strategy) string {
	switch strategy {
	case StrategyEmail:
		email := strings.TrimSpace(src.Email)
		if email == "" {
			return randomCandidateID()
		}
		base := strings.TrimSpace(src.Name)
		if base == "" {
			base = localPart(email)
		}
		slug := Slugify(base)
		if slug == "" {
			return randomCandidateID()
		}
		return fmt.Sprintf("%s%s_%s", constants.CandidateIDPrefix, slug, ShortHash(email))

	case StrategyName:
		name := strings.TrimSpace(src.Name)
		slug := Slugify(name)
		if slug == "" {
			return randomCandidateID()
		}
		return fmt.Sprintf("%s%s_%s", constants.CandidateIDPrefix, slug, ShortHash(name))

	case StrategyContentHash:
		if src.Content == "" {
			return randomCandidateID()
		}
		return constants.CandidateIDPrefix + ShortHash(src.Content)

	default:
		return randomCandidateID()
	}
}

// randomCandidateID 随机兜底ID：resumes_<uuid十六进制前12位>
func randomCandidateID() string {
	hexID := strings.ReplaceAll(googleuuid.NewString(), "-", "")
	return constants.CandidateIDPrefix + hexID[:constants.RandomIDLength]
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// BuildChunkID 生成分块向量ID：<候选人ID>_chunk<序号>_<section别名>
func BuildChunkID(candidateID string, index int, section string) string {
	return fmt.Sprintf("%s%s%d_%s", candidateID, constants.ChunkIDMarker, index, Slugify(section))
}

// RewriteChunkID 把旧分块ID改挂到规范候选人ID名下。
// 优先在第一个"_chunk"处切分保留分块后缀；
// 旧ID不含分块标记时只替换第一次出现的旧前缀。
func RewriteChunkID(oldID, oldPrefix, canonicalID string) string {
	if idx := strings.Index(oldID, constants.ChunkIDMarker); idx >= 0 {
		return canonicalID + oldID[idx:]
	}
	return strings.Replace(oldID, oldPrefix, canonicalID, 1)
}
