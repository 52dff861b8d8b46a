package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupChunks(t *testing.T) {
	refs := []ChunkRef{
		{ID: "x_chunk1_summary", CandidateID: "x"},
		{ID: "x_chunk2_skills", CandidateID: "x"},
		{ID: "y_chunk1_summary", CandidateID: "y"},
	}

	groups := GroupChunks(refs)
	require.Len(t, groups, 2)

	// 分块数量降序报告
	assert.Equal(t, "x", groups[0].CandidateID)
	assert.Equal(t, 2, groups[0].Count())
	assert.Equal(t, []string{"x_chunk1_summary", "x_chunk2_skills"}, groups[0].ChunkIDs)

	assert.Equal(t, "y", groups[1].CandidateID)
	assert.Equal(t, 1, groups[1].Count())
}

func TestGroupChunksPreservesIngestionOrder(t *testing.T) {
	// 组内不得按chunk索引重排：部分摄取工具不写数字索引
	refs := []ChunkRef{
		{ID: "a_chunk3_projects", CandidateID: "a"},
		{ID: "a_chunk1_summary", CandidateID: "a"},
		{ID: "a_chunk2_skills", CandidateID: "a"},
	}

	groups := GroupChunks(refs)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a_chunk3_projects", "a_chunk1_summary", "a_chunk2_skills"}, groups[0].ChunkIDs)
}

func TestGroupChunksFallsBackToIDPrefix(t *testing.T) {
	// metadata缺失candidate_id时从分块ID回推
	refs := []ChunkRef{
		{ID: "cand9_chunk1_summary"},
		{ID: "cand9_chunk2_skills"},
		{ID: "solo-record"},
	}

	groups := GroupChunks(refs)
	require.Len(t, groups, 2)
	assert.Equal(t, "cand9", groups[0].CandidateID)
	assert.Equal(t, "solo-record", groups[1].CandidateID)
}

func TestGroupChunksTieBreakIsFirstAppearance(t *testing.T) {
	refs := []ChunkRef{
		{ID: "b_chunk1_summary", CandidateID: "b"},
		{ID: "a_chunk1_summary", CandidateID: "a"},
	}

	groups := GroupChunks(refs)
	require.Len(t, groups, 2)
	assert.Equal(t, "b", groups[0].CandidateID)
	assert.Equal(t, "a", groups[1].CandidateID)
}

func TestCandidateIDFromChunkID(t *testing.T) {
	assert.Equal(t, "cand1", CandidateIDFromChunkID("cand1_chunk2_skills"))
	assert.Equal(t, "cand1", CandidateIDFromChunkID("cand1"))
}
