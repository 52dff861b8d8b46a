package matching

import (
	"sort"
	"strings"

	"talent-match-go/internal/constants"
)

// ChunkRef 向量库中一个分块的引用：分块ID及其携带的candidate_id元数据
type ChunkRef struct {
	ID          string
	CandidateID string
}

// CandidateGroup 按候选人聚合后的一组分块
type CandidateGroup struct {
	CandidateID string
	ChunkIDs    []string
}

// Count 组内分块数量
func (g CandidateGroup) Count() int {
	return len(g.ChunkIDs)
}

// CandidateIDFromChunkID 当metadata缺失candidate_id时，从分块ID回推候选人ID。
// 分块ID格式固定为 <candidate_id>_chunk<idx>_<section>，取_chunk标记之前的部分。
func CandidateIDFromChunkID(chunkID string) string {
	if idx := strings.Index(chunkID, constants.ChunkIDMarker); idx >= 0 {
		return chunkID[:idx]
	}
	return chunkID
}

// GroupChunks 将平铺的分块引用按candidate_id聚合。
// 报告顺序为分块数量降序；组内保持原始摄取顺序，不按chunk索引重排，
// 因为部分摄取工具不写数字索引。数量相同的组按首次出现顺序排列。
func GroupChunks(refs []ChunkRef) []CandidateGroup {
	byID := make(map[string]int)
	groups := make([]CandidateGroup, 0)

	for _, ref := range refs {
		cid := ref.CandidateID
		if cid == "" {
			cid = CandidateIDFromChunkID(ref.ID)
		}
		pos, ok := byID[cid]
		if !ok {
			pos = len(groups)
			byID[cid] = pos
			groups = append(groups, CandidateGroup{CandidateID: cid})
		}
		groups[pos].ChunkIDs = append(groups[pos].ChunkIDs, ref.ID)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].ChunkIDs) > len(groups[j].ChunkIDs)
	})
	return groups
}
