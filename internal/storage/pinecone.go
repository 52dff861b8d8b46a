package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"talent-match-go/internal/config"
	"talent-match-go/internal/tracing"
	"talent-match-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// 定义Pinecone的专用tracer
var pineconeTracer = otel.Tracer("talent-match-go/storage/pinecone")

// VectorIDNamespace is a dedicated namespace for generating deterministic vector IDs
// when a record arrives without one. Same source text always maps to the same ID.
// UUID generated via `uuidgen`
var VectorIDNamespace = uuid.Must(uuid.FromString("9b1c5e84-2f47-4d0a-b3c6-7e15d2a98f40"))

// DeterministicVectorID 由源文本派生稳定的向量ID
func DeterministicVectorID(source string) string {
	return uuid.NewV5(VectorIDNamespace, source).String()
}

// 确保Pinecone实现了VectorStore接口
var _ VectorStore = (*Pinecone)(nil)

// Pinecone 向量库数据面HTTP客户端
type Pinecone struct {
	endpoint   string
	apiKey     string
	dimension  int
	httpClient *http.Client
}

// PineconeOption 定义Pinecone构造函数选项
type PineconeOption func(*Pinecone)

// WithHTTPTimeout 设置HTTP客户端超时
func WithHTTPTimeout(timeout time.Duration) PineconeOption {
	return func(p *Pinecone) {
		p.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithHTTPClient 替换底层HTTP客户端，主要用于测试
func WithHTTPClient(client *http.Client) PineconeOption {
	return func(p *Pinecone) {
		p.httpClient = client
	}
}

// NewPinecone 创建Pinecone客户端
func NewPinecone(cfg *config.VectorStoreConfig, opts ...PineconeOption) (*Pinecone, error) {
	if cfg == nil {
		return nil, fmt.Errorf("向量库配置不能为空")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("向量库endpoint不能为空")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("向量库API key不能为空")
	}

	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	p := &Pinecone{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: timeout},
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// doRequest 执行一次带追踪头的HTTP请求并返回响应体。
// 非2xx状态码视为错误，响应体截断保留在错误信息里。
func (p *Pinecone) doRequest(ctx context.Context, span trace.Span, method, rawURL string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeInternal)
			return nil, fmt.Errorf("序列化请求体失败: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return nil, fmt.Errorf("请求向量库失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return nil, fmt.Errorf("读取向量库响应失败: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("向量库返回状态码 %d: %s", resp.StatusCode, truncate(string(respBody), 512))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return nil, err
	}
	return respBody, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

type upsertRequest struct {
	Vectors   []types.VectorRecord `json:"vectors"`
	Namespace string               `json:"namespace,omitempty"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

// Upsert 写入或覆盖一批向量。ID为空的记录由其元数据内容派生稳定ID。
func (p *Pinecone) Upsert(ctx context.Context, namespace string, records []types.VectorRecord) (int, error) {
	ctx, span := pineconeTracer.Start(ctx, "Pinecone.Upsert",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "pinecone"),
		attribute.String("db.operation", "upsert"),
		attribute.String("db.namespace", namespace),
		attribute.Int("db.vector_count", len(records)),
	)

	if len(records) == 0 {
		span.SetStatus(codes.Ok, "no vectors to upsert")
		return 0, nil
	}

	for i := range records {
		if records[i].ID == "" {
			records[i].ID = DeterministicVectorID(fmt.Sprintf("%s|%v", namespace, records[i].Metadata))
		}
		if p.dimension > 0 && len(records[i].Vector) != p.dimension {
			err := fmt.Errorf("向量 %s 维度为 %d，索引要求 %d", records[i].ID, len(records[i].Vector), p.dimension)
			tracing.RecordError(span, err, tracing.ErrorTypeValidation)
			return 0, err
		}
	}

	body, err := p.doRequest(ctx, span, http.MethodPost, p.endpoint+"/vectors/upsert", upsertRequest{
		Vectors:   records,
		Namespace: namespace,
	})
	if err != nil {
		return 0, err
	}

	var result upsertResponse
	if err := json.Unmarshal(body, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return 0, fmt.Errorf("解析upsert响应失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return result.UpsertedCount, nil
}

type fetchResponse struct {
	Vectors   map[string]types.VectorRecord `json:"vectors"`
	Namespace string                        `json:"namespace"`
}

// Fetch 按ID取回向量。服务端只返回存在的ID，缺失判断交给调用方。
func (p *Pinecone) Fetch(ctx context.Context, namespace string, ids []string) (map[string]types.VectorRecord, error) {
	ctx, span := pineconeTracer.Start(ctx, "Pinecone.Fetch",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "pinecone"),
		attribute.String("db.operation", "fetch"),
		attribute.String("db.namespace", namespace),
		attribute.Int("db.id_count", len(ids)),
	)

	if len(ids) == 0 {
		span.SetStatus(codes.Ok, "no ids")
		return map[string]types.VectorRecord{}, nil
	}

	params := url.Values{}
	for _, id := range ids {
		params.Add("ids", id)
	}
	if namespace != "" {
		params.Set("namespace", namespace)
	}

	body, err := p.doRequest(ctx, span, http.MethodGet, p.endpoint+"/vectors/fetch?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result fetchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("解析fetch响应失败: %w", err)
	}
	if result.Vectors == nil {
		result.Vectors = map[string]types.VectorRecord{}
	}

	span.SetAttributes(attribute.Int("db.found_count", len(result.Vectors)))
	span.SetStatus(codes.Ok, "")
	return result.Vectors, nil
}

type queryRequest struct {
	Vector          []float64 `json:"vector"`
	TopK            int       `json:"topK"`
	Namespace       string    `json:"namespace,omitempty"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
}

type queryResponse struct {
	Matches []QueryMatch `json:"matches"`
}

// Query 相似度查询，命中按分数降序返回
func (p *Pinecone) Query(ctx context.Context, namespace string, vector []float64, topK int, includeValues bool) ([]QueryMatch, error) {
	ctx, span := pineconeTracer.Start(ctx, "Pinecone.Query",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "pinecone"),
		attribute.String("db.operation", "query"),
		attribute.String("db.namespace", namespace),
		attribute.Int("db.top_k", topK),
	)

	if len(vector) == 0 {
		err := fmt.Errorf("查询向量不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}

	body, err := p.doRequest(ctx, span, http.MethodPost, p.endpoint+"/query", queryRequest{
		Vector:          vector,
		TopK:            topK,
		Namespace:       namespace,
		IncludeMetadata: true,
		IncludeValues:   includeValues,
	})
	if err != nil {
		return nil, err
	}

	var result queryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("解析query响应失败: %w", err)
	}

	span.SetAttributes(attribute.Int("db.match_count", len(result.Matches)))
	span.SetStatus(codes.Ok, "")
	return result.Matches, nil
}

type listResponse struct {
	Vectors []struct {
		ID string `json:"id"`
	} `json:"vectors"`
	Pagination struct {
		Next string `json:"next"`
	} `json:"pagination"`
}

// ListIDs 分页列举命名空间内的向量ID。NextToken为空表示没有更多页。
func (p *Pinecone) ListIDs(ctx context.Context, namespace string, limit int, paginationToken string) (ListPage, error) {
	ctx, span := pineconeTracer.Start(ctx, "Pinecone.ListIDs",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "pinecone"),
		attribute.String("db.operation", "list"),
		attribute.String("db.namespace", namespace),
		attribute.Int("db.limit", limit),
	)

	params := url.Values{}
	if namespace != "" {
		params.Set("namespace", namespace)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if paginationToken != "" {
		params.Set("paginationToken", paginationToken)
	}

	body, err := p.doRequest(ctx, span, http.MethodGet, p.endpoint+"/vectors/list?"+params.Encode(), nil)
	if err != nil {
		return ListPage{}, err
	}

	var result listResponse
	if err := json.Unmarshal(body, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return ListPage{}, fmt.Errorf("解析list响应失败: %w", err)
	}

	page := ListPage{NextToken: result.Pagination.Next}
	for _, v := range result.Vectors {
		page.IDs = append(page.IDs, v.ID)
	}

	span.SetAttributes(attribute.Int("db.id_count", len(page.IDs)))
	span.SetStatus(codes.Ok, "")
	return page, nil
}

type deleteRequest struct {
	IDs       []string `json:"ids,omitempty"`
	Namespace string   `json:"namespace,omitempty"`
}

// Delete 按ID删除向量。ID列表为空时不发请求。
func (p *Pinecone) Delete(ctx context.Context, namespace string, ids []string) error {
	ctx, span := pineconeTracer.Start(ctx, "Pinecone.Delete",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "pinecone"),
		attribute.String("db.operation", "delete"),
		attribute.String("db.namespace", namespace),
		attribute.Int("db.id_count", len(ids)),
	)

	if len(ids) == 0 {
		span.SetStatus(codes.Ok, "no ids to delete")
		return nil
	}

	_, err := p.doRequest(ctx, span, http.MethodPost, p.endpoint+"/vectors/delete", deleteRequest{
		IDs:       ids,
		Namespace: namespace,
	})
	if err != nil {
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

type indexStatsResponse struct {
	Namespaces map[string]struct {
		VectorCount int `json:"vectorCount"`
	} `json:"namespaces"`
	Dimension        int `json:"dimension"`
	TotalVectorCount int `json:"totalVectorCount"`
}

// NamespaceCount 返回命名空间的向量总数，命名空间不存在时为0
func (p *Pinecone) NamespaceCount(ctx context.Context, namespace string) (int, error) {
	ctx, span := pineconeTracer.Start(ctx, "Pinecone.NamespaceCount",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "pinecone"),
		attribute.String("db.operation", "describe_index_stats"),
		attribute.String("db.namespace", namespace),
	)

	body, err := p.doRequest(ctx, span, http.MethodPost, p.endpoint+"/describe_index_stats", map[string]interface{}{})
	if err != nil {
		return 0, err
	}

	var result indexStatsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return 0, fmt.Errorf("解析索引统计响应失败: %w", err)
	}

	count := result.Namespaces[namespace].VectorCount
	span.SetAttributes(attribute.Int("db.vector_count", count))
	span.SetStatus(codes.Ok, "")
	return count, nil
}
