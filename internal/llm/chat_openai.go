package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"talent-match-go/internal/config"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// 确保OpenAIChatModel实现了eino的ToolCallingChatModel接口
var _ model.ToolCallingChatModel = (*OpenAIChatModel)(nil)

// OpenAIChatModel 实现 model.ToolCallingChatModel 接口 (OpenAI兼容端点)
type OpenAIChatModel struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	tools       []*schema.ToolInfo
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewOpenAIChatModel 创建OpenAI兼容的聊天模型客户端
func NewOpenAIChatModel(cfg config.LLMConfig, logger zerolog.Logger) (*OpenAIChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM API密钥不能为空")
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	timeout := 90 * time.Second
	if cfg.RerankTimeout != "" {
		if d, err := time.ParseDuration(cfg.RerankTimeout); err == nil && d > 0 {
			timeout = d
		}
	}

	return &OpenAIChatModel{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       modelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}, nil
}

// chatMessage OpenAI兼容的消息结构
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Tools       []chatTool    `json:"tools,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Generate 执行一次补全调用
func (c *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("消息列表不能为空")
	}

	messages := make([]chatMessage, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		messages = append(messages, chatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	reqBody := chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	for _, t := range c.tools {
		if t == nil {
			continue
		}
		reqBody.Tools = append(reqBody.Tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        t.Name,
				Description: t.Desc,
			},
		})
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化补全请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug().
		Str("model", c.model).
		Int("messages", len(messages)).
		Msg("调用文本补全服务")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求补全服务失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取补全响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("补全服务返回状态码 %d: %s", resp.StatusCode, string(body))
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("解析补全响应失败: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("补全服务错误: %s (%s)", result.Error.Message, result.Error.Code)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("补全响应没有choices")
	}

	choice := result.Choices[0]
	c.logger.Debug().
		Str("finish_reason", choice.FinishReason).
		Int("completion_tokens", result.Usage.CompletionTokens).
		Msg("补全调用完成")

	return &schema.Message{
		Role:    schema.RoleType(choice.Message.Role),
		Content: choice.Message.Content,
	}, nil
}

// Stream 流式补全。重排场景只需要完整的JSON回复，不支持流式。
func (c *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("该客户端不支持流式补全")
}

// WithTools 返回携带工具定义的新实例，原实例不受影响
func (c *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	clone := *c
	clone.tools = tools
	return &clone, nil
}
