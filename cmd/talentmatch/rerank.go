package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"talent-match-go/internal/config"
	"talent-match-go/internal/llm"
	"talent-match-go/internal/logger"
	"talent-match-go/internal/matching"
	"talent-match-go/internal/storage"
	"talent-match-go/internal/types"
)

// rerankOutput 落盘的重排结果文件结构
type rerankOutput struct {
	JobID      string              `json:"jd_id"`
	JobTitle   string              `json:"title,omitempty"`
	Candidates []matching.Judgment `json:"evaluations"`
	Results    []types.MatchResult `json:"results"`
}

// handleRerankCommand 用LLM对向量初筛的候选人做精排
func handleRerankCommand(ctx context.Context, cfg *config.Config) {
	store, err := storage.NewPinecone(&cfg.VectorStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建向量库客户端失败")
	}

	// 未指定岗位时列出可选岗位后退出
	if jobID == "" {
		listAvailableJobs(ctx, cfg, store)
		return
	}

	jobs, err := store.Fetch(ctx, jobNamespace(cfg), []string{jobID})
	if err != nil {
		logger.Fatal().Err(err).Msg("取回岗位向量失败")
	}
	job, ok := jobs[jobID]
	if !ok {
		logger.Fatal().Str("jd_id", jobID).Msg("岗位不存在")
	}

	limit := topK
	if limit <= 0 {
		limit = cfg.Matching.TopK
	}

	matches, err := store.Query(ctx, candidateNamespace(cfg), job.Vector, limit, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("相似度查询失败")
	}
	if len(matches) == 0 {
		logger.Fatal().Str("jd_id", jobID).Msg("没有命中任何候选人分块")
	}

	summaries := summarizeCandidates(matches)
	logger.Info().
		Str("jd_id", jobID).
		Int("chunks", len(matches)).
		Int("candidates", len(summaries)).
		Msg("向量初筛完成，进入LLM精排")

	chatModel, err := llm.NewOpenAIChatModel(cfg.LLM, logger.Logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建LLM客户端失败")
	}

	thresholds := matching.Thresholds{
		Hired:     cfg.Matching.Thresholds.Hired,
		Shortlist: cfg.Matching.Thresholds.Shortlist,
		Rejected:  cfg.Matching.Thresholds.Rejected,
	}
	reranker := matching.NewReranker(chatModel, thresholds, logger.Logger)

	rerankCtx, cancel := context.WithTimeout(ctx, config.GetDuration(cfg.LLM.RerankTimeout, 90*time.Second))
	defer cancel()

	jobText := buildJobTextFromMetadata(job.Metadata)
	judgments, err := reranker.Rerank(rerankCtx, jobText, summaries)
	if err != nil {
		logger.Fatal().Err(err).Msg("LLM精排失败")
	}

	results := reranker.ToMatchResults(jobID, judgments)
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	fmt.Printf("%-40s %-20s %8s  %-12s %s\n", "CANDIDATE", "NAME", "SCORE", "BUCKET", "REASON")
	for _, r := range results {
		name := judgmentName(judgments, r.CandidateID)
		fmt.Printf("%-40s %-20s %8.4f  %-12s %s\n", r.CandidateID, name, r.Score, r.Bucket, r.Reason)
	}

	jobTitle, _ := job.Metadata["title"].(string)
	outPath := jobID + "_llm_re_ranked.json"
	if err := writeRerankJSON(outPath, rerankOutput{
		JobID:      jobID,
		JobTitle:   jobTitle,
		Candidates: judgments,
		Results:    results,
	}); err != nil {
		logger.Fatal().Err(err).Str("path", outPath).Msg("写重排结果失败")
	}

	logger.Info().
		Int("results", len(results)).
		Str("output", outPath).
		Msg("LLM精排完成")
}

// listAvailableJobs 枚举岗位命名空间里的全部岗位，帮助操作者选定 --job-id
func listAvailableJobs(ctx context.Context, cfg *config.Config, store storage.VectorStore) {
	jobs, jobIDs, err := fetchNamespace(ctx, store, jobNamespace(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("取回岗位列表失败")
	}
	if len(jobs) == 0 {
		fmt.Println("岗位命名空间为空，请先运行 -cmd ingest-jd")
		return
	}

	fmt.Printf("可用岗位 (%d 个)，用 --job-id 选择:\n", len(jobs))
	for _, id := range jobIDs {
		title, _ := jobs[id].Metadata["title"].(string)
		fmt.Printf("  %-40s %s\n", id, title)
	}
}

// summarizeCandidates 把分块级命中聚合成候选人级摘要，保留最高向量分
func summarizeCandidates(matches []storage.QueryMatch) []matching.CandidateSummary {
	index := make(map[string]int)
	var summaries []matching.CandidateSummary

	for _, m := range matches {
		candidateID, _ := m.Metadata["candidate_id"].(string)
		if candidateID == "" {
			candidateID = matching.CandidateIDFromChunkID(m.ID)
		}

		pos, seen := index[candidateID]
		if !seen {
			index[candidateID] = len(summaries)
			summaries = append(summaries, matching.CandidateSummary{
				ResumeID:    candidateID,
				Name:        types.CandidateDisplayName(m.Metadata),
				VectorScore: m.Score,
			})
			pos = len(summaries) - 1
		} else if m.Score > summaries[pos].VectorScore {
			summaries[pos].VectorScore = m.Score
		}

		if skills, ok := m.Metadata["skills"].(string); ok {
			summaries[pos].Skills = mergeUnique(summaries[pos].Skills, splitCommaList(skills))
		}
		if titles, ok := m.Metadata["job_titles"].(string); ok {
			summaries[pos].JobTitles = mergeUnique(summaries[pos].JobTitles, splitCommaList(titles))
		}
	}
	return summaries
}

// buildJobTextFromMetadata 从岗位向量的metadata还原进入提示词的岗位文本
func buildJobTextFromMetadata(metadata map[string]interface{}) string {
	var b strings.Builder
	for _, field := range []struct{ label, key string }{
		{"Title", "title"},
		{"Primary Skills", "primary_skills"},
		{"Secondary Skills", "secondary_skills"},
		{"Experience Required", "experience_required"},
		{"Description", "description"},
	} {
		if v, ok := metadata[field.key].(string); ok && v != "" {
			b.WriteString(field.label + ": " + v + "\n")
		}
	}
	return b.String()
}

func judgmentName(judgments []matching.Judgment, resumeID string) string {
	for _, j := range judgments {
		if j.ResumeID == resumeID {
			return j.Name
		}
	}
	return "Unknown"
}

func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func mergeUnique(existing, extra []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		seen[v] = struct{}{}
	}
	for _, v := range extra {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		existing = append(existing, v)
	}
	return existing
}

func writeRerankJSON(path string, output rerankOutput) error {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
