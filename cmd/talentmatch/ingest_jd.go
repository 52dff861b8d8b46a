package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"talent-match-go/internal/config"
	"talent-match-go/internal/embedding"
	"talent-match-go/internal/identity"
	"talent-match-go/internal/logger"
	"talent-match-go/internal/storage"
	"talent-match-go/internal/types"
)

// 岗位描述正文进入embedding的最大长度，超长JD截断后再向量化
const maxJDDescriptionChars = 25000

// handleIngestJDCommand 摄取岗位描述JSON到向量库
func handleIngestJDCommand(ctx context.Context, cfg *config.Config) {
	if jdFile == "" {
		logger.Fatal().Msg("必须通过 --jd 指定岗位描述JSON文件")
	}

	data, err := os.ReadFile(jdFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", jdFile).Msg("读取岗位描述文件失败")
	}

	var job types.JobRecord
	if err := json.Unmarshal(data, &job); err != nil {
		logger.Fatal().Err(err).Msg("解析岗位描述JSON失败")
	}

	if job.JobID == "" {
		// 没有显式ID时由标题派生稳定ID，重复摄取覆盖同一条记录
		if job.Title == "" {
			logger.Fatal().Msg("岗位描述缺少 jd_id 和 title，无法生成ID")
		}
		job.JobID = "jd_" + identity.Slugify(job.Title) + "_" + identity.ShortHash(job.Title)
		logger.Warn().Str("jd_id", job.JobID).Msg("岗位描述缺少jd_id，已从标题派生")
	}

	store, err := storage.NewPinecone(&cfg.VectorStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建向量库客户端失败")
	}

	embedder, err := embedding.NewOpenAIEmbedder(cfg.Embedding, logger.Logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建Embedder失败")
	}

	text := buildJDEmbeddingText(job)
	vectors, err := embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		logger.Fatal().Err(err).Msg("岗位描述向量化失败")
	}

	metadata := types.FlattenMetadata(job.Metadata)
	metadata["jd_id"] = job.JobID
	metadata["title"] = job.Title
	if len(job.PrimarySkills) > 0 {
		metadata["primary_skills"] = strings.Join(job.PrimarySkills, ", ")
	}
	if len(job.SecondarySkills) > 0 {
		metadata["secondary_skills"] = strings.Join(job.SecondarySkills, ", ")
	}
	if job.ExperienceRequired != "" {
		metadata["experience_required"] = job.ExperienceRequired
	}

	count, err := store.Upsert(ctx, jobNamespace(cfg), []types.VectorRecord{{
		ID:       job.JobID,
		Vector:   vectors[0],
		Metadata: metadata,
	}})
	if err != nil {
		logger.Fatal().Err(err).Msg("写入岗位描述向量失败")
	}

	logger.Info().
		Str("jd_id", job.JobID).
		Str("title", job.Title).
		Int("upserted", count).
		Msg("岗位描述已摄取")
	fmt.Printf("岗位描述已摄取: %s (%s)\n", job.JobID, job.Title)
}

// buildJDEmbeddingText 拼装进入embedding的岗位文本：
// 标题、核心技能、经验要求和正文按固定顺序拼接，正文超长截断。
func buildJDEmbeddingText(job types.JobRecord) string {
	var b strings.Builder
	if job.Title != "" {
		b.WriteString("Title: " + job.Title + "\n")
	}
	if len(job.PrimarySkills) > 0 {
		b.WriteString("Primary Skills: " + strings.Join(job.PrimarySkills, ", ") + "\n")
	}
	if len(job.SecondarySkills) > 0 {
		b.WriteString("Secondary Skills: " + strings.Join(job.SecondarySkills, ", ") + "\n")
	}
	if job.ExperienceRequired != "" {
		b.WriteString("Experience Required: " + job.ExperienceRequired + "\n")
	}
	description := job.Description
	if len(description) > maxJDDescriptionChars {
		description = description[:maxJDDescriptionChars]
	}
	b.WriteString(description)
	return b.String()
}
