package matching

import (
	"fmt"

	"talent-match-go/internal/types"
)

// Thresholds 分桶阈值。必须满足 Hired >= Shortlist >= Rejected。
type Thresholds struct {
	Hired     float64
	Shortlist float64
	Rejected  float64
}

// Validate 校验阈值顺序
func (t Thresholds) Validate() error {
	if !(t.Hired >= t.Shortlist && t.Shortlist >= t.Rejected) {
		return fmt.Errorf("阈值顺序非法: hired=%.4f shortlist=%.4f rejected=%.4f", t.Hired, t.Shortlist, t.Rejected)
	}
	return nil
}

// Classify 将分数映射到四个桶之一。
// 判定顺序固定为 Hired -> Shortlisted -> Rejected -> NonDomain，先命中者生效，
// 因此恰好等于阈值的分数归入优先级更高的桶。阈值间距不保证均匀，
// NonDomain只兜住 rejected 与 shortlist 之间的开区间，顺序不可调整。
func Classify(score float64, t Thresholds) types.Bucket {
	switch {
	case score >= t.Hired:
		return types.BucketHired
	case score >= t.Shortlist:
		return types.BucketShortlisted
	case score <= t.Rejected:
		return types.BucketRejected
	default:
		return types.BucketNonDomain
	}
}
