package main

import (
	"context"
	"fmt"

	"talent-match-go/internal/config"
	"talent-match-go/internal/logger"
	"talent-match-go/internal/matching"
	"talent-match-go/internal/storage"
	"talent-match-go/internal/types"
)

// handleListCommand 按候选人聚合列出命名空间里的分块向量
func handleListCommand(ctx context.Context, cfg *config.Config) {
	store, err := storage.NewPinecone(&cfg.VectorStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建向量库客户端失败")
	}

	namespace := candidateNamespace(cfg)
	total, err := store.NamespaceCount(ctx, namespace)
	if err != nil {
		logger.Fatal().Err(err).Msg("获取命名空间统计失败")
	}

	vectors, chunkIDs, err := fetchNamespace(ctx, store, namespace)
	if err != nil {
		logger.Fatal().Err(err).Msg("取回候选人向量失败")
	}

	// 按列举顺序构建引用，保证同一候选人的分块保持摄取顺序
	refs := make([]matching.ChunkRef, 0, len(chunkIDs))
	names := make(map[string]string)
	for _, id := range chunkIDs {
		record := vectors[id]
		candidateID, _ := record.Metadata["candidate_id"].(string)
		refs = append(refs, matching.ChunkRef{ID: id, CandidateID: candidateID})

		key := candidateID
		if key == "" {
			key = matching.CandidateIDFromChunkID(id)
		}
		if _, ok := names[key]; !ok {
			if name := types.CandidateDisplayName(record.Metadata); name != "Unknown" {
				names[key] = name
			}
		}
	}

	groups := matching.GroupChunks(refs)

	// 聚合成逻辑候选人记录后再输出
	candidates := make([]types.CandidateRecord, 0, len(groups))
	for _, group := range groups {
		name := names[group.CandidateID]
		if name == "" {
			name = "Unknown"
		}
		candidates = append(candidates, types.CandidateRecord{
			CandidateID: group.CandidateID,
			Name:        name,
			ChunkIDs:    group.ChunkIDs,
		})
	}

	fmt.Printf("命名空间 %s: %d 个向量, %d 个候选人\n\n", namespace, total, len(candidates))
	fmt.Printf("%-40s %-20s %s\n", "CANDIDATE", "NAME", "CHUNKS")
	for _, c := range candidates {
		fmt.Printf("%-40s %-20s %d\n", c.CandidateID, c.Name, len(c.ChunkIDs))
		for _, chunkID := range c.ChunkIDs {
			fmt.Printf("    %s\n", chunkID)
		}
	}

	logger.Info().
		Int("vectors", len(vectors)).
		Int("candidates", len(candidates)).
		Msg("列举完成")
}
