package unify

import (
	"context"
	"fmt"
	"strings"

	"talent-match-go/internal/constants"
	"talent-match-go/internal/identity"
	"talent-match-go/internal/storage"
	"talent-match-go/internal/types"

	"github.com/rs/zerolog"
)

// ConfirmDeleteToken 删除旧向量前必须逐字输入的确认口令
const ConfirmDeleteToken = "DELETE"

// Result 一次归并操作的统计结果
type Result struct {
	Scanned   int      // 扫描到的前缀命中数
	Rewritten int      // 成功改写并写入的向量数
	NewIDs    []string // 新向量ID
	OldIDs    []string // 待删除的旧向量ID
}

// Unifier 把散落在多个历史ID前缀下的分块向量归并到规范候选人ID。
// 只做复制式改写：新ID写入成功之前绝不动旧向量，删除是独立的显式步骤。
type Unifier struct {
	store     storage.VectorStore
	namespace string
	batchSize int
	logger    zerolog.Logger
}

// UnifierOption 归并器配置选项
type UnifierOption func(*Unifier)

// WithBatchSize 设置Fetch/Upsert的批大小
func WithBatchSize(size int) UnifierOption {
	return func(u *Unifier) {
		if size > 0 {
			u.batchSize = size
		}
	}
}

// NewUnifier 创建归并器
func NewUnifier(store storage.VectorStore, namespace string, logger zerolog.Logger, opts ...UnifierOption) *Unifier {
	u := &Unifier{
		store:     store,
		namespace: namespace,
		batchSize: constants.DefaultUnifyBatchSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Unify 扫描命名空间，把fromPrefix名下的向量改挂到toID。
// 返回的Result.OldIDs留给调用方决定是否删除。
func (u *Unifier) Unify(ctx context.Context, fromPrefix, toID string) (*Result, error) {
	if fromPrefix == "" || toID == "" {
		return nil, fmt.Errorf("源前缀和目标ID都不能为空")
	}

	matched, err := u.collectMatchingIDs(ctx, fromPrefix)
	if err != nil {
		return nil, err
	}

	result := &Result{Scanned: len(matched)}
	if len(matched) == 0 {
		u.logger.Info().Str("from_prefix", fromPrefix).Msg("没有命中源前缀的向量")
		return result, nil
	}

	u.logger.Info().
		Str("from_prefix", fromPrefix).
		Str("to_id", toID).
		Int("matched", len(matched)).
		Msg("开始归并候选人向量")

	for start := 0; start < len(matched); start += u.batchSize {
		end := start + u.batchSize
		if end > len(matched) {
			end = len(matched)
		}
		batch := matched[start:end]

		vectors, err := u.store.Fetch(ctx, u.namespace, batch)
		if err != nil {
			return result, fmt.Errorf("取回向量批次失败: %w", err)
		}

		rewritten := make([]types.VectorRecord, 0, len(batch))
		oldIDs := make([]string, 0, len(batch))
		for _, oldID := range batch {
			record, ok := vectors[oldID]
			if !ok {
				// 列举和取回之间被删掉了，跳过即可
				u.logger.Warn().Str("id", oldID).Msg("向量在取回时已不存在")
				continue
			}

			newID := identity.RewriteChunkID(oldID, fromPrefix, toID)
			if newID == oldID {
				continue
			}

			metadata := record.Metadata
			if metadata == nil {
				metadata = map[string]interface{}{}
			}
			metadata["candidate_id"] = toID

			rewritten = append(rewritten, types.VectorRecord{
				ID:       newID,
				Vector:   record.Vector,
				Metadata: metadata,
			})
			oldIDs = append(oldIDs, oldID)
		}

		if len(rewritten) == 0 {
			continue
		}

		// 写入失败立即中止：旧向量还在，重跑即可，绝不先删后写
		if _, err := u.store.Upsert(ctx, u.namespace, rewritten); err != nil {
			return result, fmt.Errorf("写入改写后的向量失败: %w", err)
		}

		result.Rewritten += len(rewritten)
		for _, r := range rewritten {
			result.NewIDs = append(result.NewIDs, r.ID)
		}
		result.OldIDs = append(result.OldIDs, oldIDs...)
	}

	u.logger.Info().
		Int("scanned", result.Scanned).
		Int("rewritten", result.Rewritten).
		Msg("归并完成")
	return result, nil
}

// collectMatchingIDs 翻完所有分页，收集命中前缀的去重ID列表
func (u *Unifier) collectMatchingIDs(ctx context.Context, fromPrefix string) ([]string, error) {
	seen := make(map[string]struct{})
	var matched []string

	token := ""
	for {
		page, err := u.store.ListIDs(ctx, u.namespace, constants.DefaultListPageSize, token)
		if err != nil {
			return nil, fmt.Errorf("列举向量ID失败: %w", err)
		}
		for _, id := range page.IDs {
			if !strings.HasPrefix(id, fromPrefix) {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			matched = append(matched, id)
		}
		if page.NextToken == "" {
			return matched, nil
		}
		token = page.NextToken
	}
}

// DeleteOriginals 删除归并后的旧向量。
// confirmToken必须逐字等于ConfirmDeleteToken，其它任何输入都拒绝执行。
func (u *Unifier) DeleteOriginals(ctx context.Context, oldIDs []string, confirmToken string) error {
	if confirmToken != ConfirmDeleteToken {
		return fmt.Errorf("删除未确认: 需要逐字输入 %q", ConfirmDeleteToken)
	}
	if len(oldIDs) == 0 {
		return nil
	}

	for start := 0; start < len(oldIDs); start += u.batchSize {
		end := start + u.batchSize
		if end > len(oldIDs) {
			end = len(oldIDs)
		}
		if err := u.store.Delete(ctx, u.namespace, oldIDs[start:end]); err != nil {
			return fmt.Errorf("删除旧向量失败: %w", err)
		}
	}

	u.logger.Info().Int("deleted", len(oldIDs)).Msg("旧向量已删除")
	return nil
}
