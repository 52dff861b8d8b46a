package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"talent-match-go/internal/config"
	"talent-match-go/internal/logger"
	"talent-match-go/internal/storage"
	"talent-match-go/internal/unify"
)

// handleUnifyCommand 把历史ID前缀下的向量归并到规范候选人ID
func handleUnifyCommand(ctx context.Context, cfg *config.Config) {
	if fromPrefix == "" || toID == "" {
		logger.Fatal().Msg("必须同时指定 --from-prefix 和 --to-id")
	}

	store, err := storage.NewPinecone(&cfg.VectorStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建向量库客户端失败")
	}

	unifier := unify.NewUnifier(store, candidateNamespace(cfg), logger.Logger)

	result, err := unifier.Unify(ctx, fromPrefix, toID)
	if err != nil {
		logger.Fatal().Err(err).Msg("归并失败")
	}

	fmt.Printf("扫描: %d  改写: %d\n", result.Scanned, result.Rewritten)
	for i, newID := range result.NewIDs {
		fmt.Printf("  %s -> %s\n", result.OldIDs[i], newID)
	}

	if result.Rewritten == 0 {
		return
	}
	if !deleteOld {
		fmt.Printf("旧向量保留。确认无误后可用 --delete-old 重新运行以清理。\n")
		return
	}

	// 删除不可恢复，必须逐字输入确认口令
	fmt.Printf("即将删除 %d 个旧向量。输入 %s 确认: ", len(result.OldIDs), unify.ConfirmDeleteToken)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		logger.Fatal().Err(err).Msg("读取确认输入失败")
	}

	token := strings.TrimRight(line, "\r\n")
	if err := unifier.DeleteOriginals(ctx, result.OldIDs, token); err != nil {
		logger.Fatal().Err(err).Msg("删除旧向量被拒绝")
	}
	fmt.Printf("已删除 %d 个旧向量\n", len(result.OldIDs))
}
