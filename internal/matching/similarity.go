package matching

import "math"

// NoSimilarity 无法计算有意义相似度时返回的哨兵值
const NoSimilarity = -1.0

// CosineSimilarity 计算两个向量的余弦相似度，取值范围[-1, 1]。
// 任一向量缺失、长度不一致或模长为零时返回NoSimilarity哨兵值而不报错，
// 上游把哨兵值当作"无有效相似度"处理。
func CosineSimilarity(a, b []float64) float64 {
	if a == nil || b == nil || len(a) == 0 || len(a) != len(b) {
		return NoSimilarity
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return NoSimilarity
	}
	return dot / denom
}
