package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"talent-match-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// Judgment LLM对单个候选人的评判结果
type Judgment struct {
	ResumeID string  `json:"resume_id"`
	Name     string  `json:"name"`
	Score    float64 `json:"gpt_score"`
	Bucket   string  `json:"bucket"`
	Reason   string  `json:"reason"`
}

// CandidateSummary 进入LLM提示词的候选人摘要
type CandidateSummary struct {
	ResumeID    string   `json:"resume_id"`
	Name        string   `json:"name"`
	VectorScore float64  `json:"pinecone_score"`
	Skills      []string `json:"skills"`
	JobTitles   []string `json:"job_titles"`
}

// Reranker 基于LLM的候选人重排器。
// 只负责编排：构建提示词、调用模型、恢复并解码JSON评判。
// 打分本身委托给外部模型，分桶回落到共享阈值。
type Reranker struct {
	llmModel       model.ToolCallingChatModel
	thresholds     Thresholds
	promptTemplate string
	systemMessage  string
	logger         zerolog.Logger
}

// RerankerOption 重排器配置选项
type RerankerOption func(*Reranker)

// WithPromptTemplate 设置自定义提示词模板（需含岗位文本与候选人JSON两个%s占位符）
func WithPromptTemplate(template string) RerankerOption {
	return func(r *Reranker) {
		r.promptTemplate = template
	}
}

// WithSystemMessage 设置自定义system消息
func WithSystemMessage(msg string) RerankerOption {
	return func(r *Reranker) {
		r.systemMessage = msg
	}
}

// NewReranker 创建重排器实例
func NewReranker(llmModel model.ToolCallingChatModel, thresholds Thresholds, logger zerolog.Logger, options ...RerankerOption) *Reranker {
	r := &Reranker{
		llmModel:      llmModel,
		thresholds:    thresholds,
		systemMessage: "You are a strict JSON-only responder.",
		logger:        logger,
	}
	r.promptTemplate = defaultRerankPromptTemplate

	for _, opt := range options {
		opt(r)
	}
	return r
}

const defaultRerankPromptTemplate = `You are an expert technical recruiter. Evaluate each candidate against the Job Description (JD) below.

Job Description:
%s

Candidates (with vector similarity scores):
%s

For each candidate return a JSON object with:
- resume_id: string (must match the id provided)
- name: candidate name (or 'Unknown')
- gpt_score: float between 0.0 and 1.0 (higher = better)
- bucket: one of "H" (Hired), "S" (Shortlisted), "R" (Rejected), "N" (Non-domain)
- reason: short (1-3 sentence) explanation for the decision.

Return ONLY a JSON array (no extra text). Example output:
[
  {
    "resume_id": "resume-1",
    "name": "Alice",
    "gpt_score": 0.87,
    "bucket": "H",
    "reason": "Matches required Java + Spark experience and has relevant projects."
  }
]`

// BuildPrompt 根据岗位文本与候选人摘要构建用户提示词
func (r *Reranker) BuildPrompt(jobText string, candidates []CandidateSummary) (string, error) {
	if candidates == nil {
		candidates = []CandidateSummary{}
	}
	candJSON, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化候选人摘要失败: %w", err)
	}
	return fmt.Sprintf(r.promptTemplate, jobText, string(candJSON)), nil
}

// Rerank 执行一次重排调用并返回解码后的评判列表。
// JSON恢复失败是该次请求的硬失败，原始模型回复保留在错误里，
// 是否重发整个LLM调用由调用方决定。
func (r *Reranker) Rerank(ctx context.Context, jobText string, candidates []CandidateSummary) ([]Judgment, error) {
	if r.llmModel == nil {
		return nil, fmt.Errorf("reranker: llmModel未初始化")
	}

	prompt, err := r.BuildPrompt(jobText, candidates)
	if err != nil {
		return nil, err
	}

	messages := []*einoschema.Message{
		einoschema.SystemMessage(r.systemMessage),
		einoschema.UserMessage(prompt),
	}

	r.logger.Debug().
		Int("candidates", len(candidates)).
		Int("prompt_chars", len(prompt)).
		Msg("调用LLM进行候选人重排")

	response, err := r.llmModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("reranker: LLM调用失败: %w", err)
	}
	if response == nil || response.Content == "" {
		return nil, fmt.Errorf("reranker: LLM返回空回复")
	}

	// 去除可能的BOM再进入恢复解析
	content := strings.TrimPrefix(response.Content, "\uFEFF")

	judgments, err := DecodeJudgments(content)
	if err != nil {
		return nil, fmt.Errorf("reranker: %w", err)
	}

	for i := range judgments {
		if strings.TrimSpace(judgments[i].Name) == "" {
			judgments[i].Name = "Unknown"
		}
	}

	r.logger.Info().
		Int("judgments", len(judgments)).
		Msg("LLM重排完成")
	return judgments, nil
}

// ToMatchResults 将评判列表转换为匹配结果。
// 桶始终由评判分数和共享阈值重新推导，模型给出的桶字母只作参考：
// 匹配结果的桶必须是分数的确定函数。
func (r *Reranker) ToMatchResults(jobID string, judgments []Judgment) []types.MatchResult {
	results := make([]types.MatchResult, 0, len(judgments))
	for _, j := range judgments {
		derived := Classify(j.Score, r.thresholds)
		if fromLLM, ok := types.BucketFromShort(j.Bucket); ok && fromLLM != derived {
			r.logger.Warn().
				Str("resume_id", j.ResumeID).
				Float64("score", j.Score).
				Str("llm_bucket", string(fromLLM)).
				Str("derived_bucket", string(derived)).
				Msg("LLM给出的桶与分数推导不一致，以分数推导为准")
		}
		results = append(results, types.MatchResult{
			CandidateID: j.ResumeID,
			JobID:       jobID,
			Score:       j.Score,
			Bucket:      derived,
			Reason:      j.Reason,
		})
	}
	return results
}
