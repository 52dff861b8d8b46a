package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"talent-match-go/internal/config"
	"talent-match-go/internal/retry"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog"
)

// 确保OpenAIEmbedder实现了eino的Embedder接口
var _ embedding.Embedder = (*OpenAIEmbedder)(nil)

// OpenAIEmbedder 实现 embedding.Embedder 接口 (OpenAI兼容端点)
type OpenAIEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	baseURL    string
	httpClient *http.Client
	retry      retry.Policy
	logger     zerolog.Logger
}

// NewOpenAIEmbedder 创建OpenAI兼容的Embedder
func NewOpenAIEmbedder(cfg config.EmbeddingConfig, logger zerolog.Logger) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API密钥不能为空")
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-large"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1/embeddings"
	}

	policy := retry.DefaultPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryWaitSeconds > 0 {
		policy.BaseDelay = time.Duration(cfg.RetryWaitSeconds) * time.Second
	}

	return &OpenAIEmbedder{
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: cfg.Dimensions,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retry:      policy,
		logger:     logger,
	}, nil
}

// GetDimensions 返回嵌入器配置的维度
func (e *OpenAIEmbedder) GetDimensions() int {
	return e.dimensions
}

// openAIEmbeddingRequest OpenAI兼容Embedding请求结构
type openAIEmbeddingRequest struct {
	Input      interface{} `json:"input"` // string 或 []string
	Model      string      `json:"model"`
	Dimensions int         `json:"dimensions,omitempty"`
}

// openAIEmbeddingResponse OpenAI兼容Embedding响应结构
type openAIEmbeddingResponse struct {
	Object string             `json:"object"`
	Data   []openAIDataEntry  `json:"data"`
	Model  string             `json:"model"`
	Usage  openAIUsage        `json:"usage"`
	Error  *openAIErrorDetail `json:"error,omitempty"`
}

type openAIDataEntry struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type openAIUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// openAIErrorDetail 200响应体内携带的API级错误
type openAIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// EmbedStrings 将文本转换为向量，实现 cloudwego/eino embedding.Embedder 接口。
// 空白文本替换为单个空格：部分端点拒绝空字符串输入。
// 请求失败按退避策略重试。
func (e *OpenAIEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	options := &embedding.Options{}
	embedding.GetCommonOptions(options, opts...)

	effectiveModel := e.model
	if options.Model != nil && *options.Model != "" {
		effectiveModel = *options.Model
	}

	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	sanitized := make([]string, len(texts))
	for i, t := range texts {
		if t == "" {
			t = " "
		}
		sanitized[i] = t
	}

	var inputBody interface{}
	if len(sanitized) == 1 {
		inputBody = sanitized[0]
	} else {
		inputBody = sanitized
	}

	reqBody := openAIEmbeddingRequest{
		Input: inputBody,
		Model: effectiveModel,
	}
	if e.dimensions > 0 {
		reqBody.Dimensions = e.dimensions
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化embedding请求失败: %w", err)
	}

	e.logger.Debug().
		Int("texts", len(sanitized)).
		Str("model", effectiveModel).
		Msg("请求文本向量化")

	var result openAIEmbeddingResponse
	err = e.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(jsonData))
		if err != nil {
			return fmt.Errorf("创建HTTP请求失败: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+e.apiKey)

		resp, err := e.httpClient.Do(req)
		if err != nil {
			e.logger.Warn().Err(err).Msg("embedding请求失败，将重试")
			return fmt.Errorf("请求embedding服务失败: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("读取embedding响应失败: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			e.logger.Warn().Int("status", resp.StatusCode).Msg("embedding服务返回非200，将重试")
			return fmt.Errorf("embedding服务返回状态码 %d: %s", resp.StatusCode, string(body))
		}

		result = openAIEmbeddingResponse{}
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("解析embedding响应失败: %w", err)
		}
		if result.Error != nil {
			return fmt.Errorf("embedding服务错误: %s (%s)", result.Error.Message, result.Error.Code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Data) != len(sanitized) {
		return nil, fmt.Errorf("embedding响应数量不符: 期望 %d 实际 %d", len(sanitized), len(result.Data))
	}

	// 按index还原顺序，服务端不保证Data有序
	embeddings := make([][]float64, len(sanitized))
	for _, entry := range result.Data {
		if entry.Index < 0 || entry.Index >= len(embeddings) {
			return nil, fmt.Errorf("embedding响应index越界: %d", entry.Index)
		}
		embeddings[entry.Index] = entry.Embedding
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("embedding响应缺少第 %d 条", i)
		}
	}

	return embeddings, nil
}
