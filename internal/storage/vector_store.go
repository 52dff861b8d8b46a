package storage

import (
	"context"

	"talent-match-go/internal/types"
)

// QueryMatch 表示一次相似度查询的单条命中
type QueryMatch struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Values   []float64              `json:"values,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ListPage 表示一次分页ID列举的结果
type ListPage struct {
	IDs       []string
	NextToken string
}

// VectorStore 向量库数据面接口
type VectorStore interface {
	// Upsert 写入或覆盖一批向量
	Upsert(ctx context.Context, namespace string, records []types.VectorRecord) (int, error)

	// Fetch 按ID取回向量，缺失的ID从结果中静默省略
	Fetch(ctx context.Context, namespace string, ids []string) (map[string]types.VectorRecord, error)

	// Query 相似度查询，按分数降序返回topK个命中
	Query(ctx context.Context, namespace string, vector []float64, topK int, includeValues bool) ([]QueryMatch, error)

	// ListIDs 分页列举命名空间里的所有向量ID
	ListIDs(ctx context.Context, namespace string, limit int, paginationToken string) (ListPage, error)

	// Delete 按ID删除向量
	Delete(ctx context.Context, namespace string, ids []string) error

	// NamespaceCount 返回命名空间的向量总数
	NamespaceCount(ctx context.Context, namespace string) (int, error)
}
