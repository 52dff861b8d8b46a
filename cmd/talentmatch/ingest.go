package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"talent-match-go/internal/config"
	"talent-match-go/internal/constants"
	"talent-match-go/internal/embedding"
	"talent-match-go/internal/identity"
	"talent-match-go/internal/logger"
	"talent-match-go/internal/storage"
	"talent-match-go/internal/types"
)

// ingestStats 一次摄取运行的汇总
type ingestStats struct {
	Files      int
	Ingested   int
	Duplicates int
	Failed     int
	Chunks     int
}

// handleIngestCommand 摄取简历分块JSON到向量库
func handleIngestCommand(ctx context.Context, cfg *config.Config) {
	if inputPath == "" {
		logger.Fatal().Msg("必须通过 -i 指定分块JSON文件或目录")
	}

	strategy, err := identity.ParseStrategy(idStrategy)
	if err != nil {
		logger.Fatal().Err(err).Msg("ID策略无效")
	}

	files, err := collectJSONFiles(inputPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("收集输入文件失败")
	}
	if len(files) == 0 {
		logger.Fatal().Str("input", inputPath).Msg("没有找到JSON文件")
	}

	store, err := storage.NewPinecone(&cfg.VectorStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建向量库客户端失败")
	}

	embedder, err := embedding.NewOpenAIEmbedder(cfg.Embedding, logger.Logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建Embedder失败")
	}

	// 去重登记表不可用时降级为无去重摄取，不中断批处理
	var registry *storage.Redis
	if cfg.Redis.Address != "" {
		registry, err = storage.NewRedisAdapter(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("连接Redis失败，本次运行跳过内容去重")
			registry = nil
		} else {
			defer registry.Close()
		}
	}

	stats := ingestStats{Files: len(files)}
	for _, file := range files {
		ingested, dup, chunks, err := ingestOneFile(ctx, cfg, store, embedder, registry, file, strategy)
		if err != nil {
			// 单个文件失败不影响其余文件
			logger.Error().Err(err).Str("file", file).Msg("摄取文件失败，跳过")
			stats.Failed++
			continue
		}
		if dup {
			stats.Duplicates++
		}
		if ingested {
			stats.Ingested++
			stats.Chunks += chunks
		}
	}

	logger.Info().
		Int("files", stats.Files).
		Int("ingested", stats.Ingested).
		Int("duplicates", stats.Duplicates).
		Int("failed", stats.Failed).
		Int("chunks", stats.Chunks).
		Msg("摄取完成")

	if stats.Failed > 0 {
		os.Exit(1)
	}
}

// ingestOneFile 摄取单个分块JSON文件。
// 返回 (是否写入, 是否命中去重, 写入的分块数, 错误)。
func ingestOneFile(
	ctx context.Context,
	cfg *config.Config,
	store storage.VectorStore,
	embedder *embedding.OpenAIEmbedder,
	registry *storage.Redis,
	file string,
	strategy identity.Strategy,
) (bool, bool, int, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return false, false, 0, fmt.Errorf("读取文件失败: %w", err)
	}

	var chunks []types.CandidateChunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return false, false, 0, fmt.Errorf("解析分块JSON失败: %w", err)
	}
	if len(chunks) == 0 {
		return false, false, 0, fmt.Errorf("文件不含任何分块")
	}

	content := joinChunkTexts(chunks)
	name, email := candidateIdentityFields(chunks)

	// metadata没给姓名/邮箱时从正文里猜，低置信度猜测要留痕
	if email == "" {
		if guess := identity.GuessEmail(content); guess.Value != "" {
			email = guess.Value
			if !guess.Confident {
				logger.Warn().Str("file", file).Str("email", email).Msg("邮箱为低置信度猜测结果")
			}
		}
	}
	if name == "" {
		if guess := identity.GuessName(content); guess.Value != "" {
			name = guess.Value
			logger.Warn().Str("file", file).Str("name", name).Msg("姓名为低置信度猜测结果")
		}
	}

	contentHash := identity.ContentHash(content)

	candidateID := identity.NewCandidateID(identity.Source{
		Name:    name,
		Email:   email,
		Content: content,
	}, strategy)

	duplicate := false
	if registry != nil {
		created, existingID, err := registry.RegisterContentHash(ctx, contentHash, candidateID)
		if err != nil {
			return false, false, 0, fmt.Errorf("内容去重登记失败: %w", err)
		}
		if !created {
			// 同样的简历文本已经摄取过，复用已登记的候选人ID重写分块
			duplicate = true
			candidateID = existingID
			logger.Info().
				Str("file", file).
				Str("candidate_id", candidateID).
				Msg("内容哈希命中，复用已登记的候选人ID")
		}
	}

	texts := make([]string, len(chunks))
	records := make([]types.VectorRecord, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.ChunkText

		metadata := types.FlattenMetadata(chunk.Metadata)
		metadata["candidate_id"] = candidateID
		metadata["section"] = chunk.Section
		metadata["chunk_index"] = chunk.ChunkIndex
		metadata["source_file"] = filepath.Base(file)

		records[i] = types.VectorRecord{
			ID:       identity.BuildChunkID(candidateID, chunk.ChunkIndex, chunk.Section),
			Metadata: metadata,
		}
	}

	vectors, err := embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return false, duplicate, 0, fmt.Errorf("向量化失败: %w", err)
	}
	for i := range records {
		records[i].Vector = vectors[i]
	}

	count, err := store.Upsert(ctx, candidateNamespace(cfg), records)
	if err != nil {
		return false, duplicate, 0, fmt.Errorf("写入向量库失败: %w", err)
	}

	logger.Info().
		Str("file", file).
		Str("candidate_id", candidateID).
		Int("chunks", count).
		Msg("简历已摄取")
	return true, duplicate, count, nil
}

// candidateIdentityFields 从分块metadata里找姓名和邮箱，供ID策略使用
func candidateIdentityFields(chunks []types.CandidateChunk) (string, string) {
	var name, email string
	for _, chunk := range chunks {
		if chunk.Metadata == nil {
			continue
		}
		if name == "" {
			name = types.CandidateDisplayName(chunk.Metadata)
			if name == "Unknown" {
				name = ""
			}
		}
		if email == "" {
			if v, ok := chunk.Metadata["email"].(string); ok {
				email = strings.TrimSpace(v)
			}
		}
		if name != "" && email != "" {
			break
		}
	}
	return name, email
}

// joinChunkTexts 按原始顺序拼接分块文本，作为内容哈希的输入
func joinChunkTexts(chunks []types.CandidateChunk) string {
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = chunk.ChunkText
	}
	return strings.Join(parts, "\n")
}

// collectJSONFiles 展开输入路径为JSON文件列表，目录时按文件名排序
func collectJSONFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func candidateNamespace(cfg *config.Config) string {
	if cfg.VectorStore.CandidateNamespace != "" {
		return cfg.VectorStore.CandidateNamespace
	}
	return constants.CandidateNamespace
}

func jobNamespace(cfg *config.Config) string {
	if cfg.VectorStore.JobNamespace != "" {
		return cfg.VectorStore.JobNamespace
	}
	return constants.JobNamespace
}
