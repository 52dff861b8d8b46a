package unify

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"testing"

	"talent-match-go/internal/storage"
	"talent-match-go/internal/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore 内存向量库，支持分页列举和失败注入
type fakeStore struct {
	vectors   map[string]types.VectorRecord
	order     []string
	upsertErr error
	deleted   []string
}

func newFakeStore(records ...types.VectorRecord) *fakeStore {
	s := &fakeStore{vectors: make(map[string]types.VectorRecord)}
	for _, r := range records {
		s.vectors[r.ID] = r
		s.order = append(s.order, r.ID)
	}
	return s
}

func (s *fakeStore) Upsert(ctx context.Context, namespace string, records []types.VectorRecord) (int, error) {
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	for _, r := range records {
		if _, exists := s.vectors[r.ID]; !exists {
			s.order = append(s.order, r.ID)
		}
		s.vectors[r.ID] = r
	}
	return len(records), nil
}

func (s *fakeStore) Fetch(ctx context.Context, namespace string, ids []string) (map[string]types.VectorRecord, error) {
	out := make(map[string]types.VectorRecord)
	for _, id := range ids {
		if r, ok := s.vectors[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (s *fakeStore) Query(ctx context.Context, namespace string, vector []float64, topK int, includeValues bool) ([]storage.QueryMatch, error) {
	return nil, nil
}

func (s *fakeStore) ListIDs(ctx context.Context, namespace string, limit int, paginationToken string) (storage.ListPage, error) {
	start := 0
	if paginationToken != "" {
		var err error
		start, err = strconv.Atoi(paginationToken)
		if err != nil {
			return storage.ListPage{}, err
		}
	}
	// 每页最多2条，强制走多页路径
	end := start + 2
	if end > len(s.order) {
		end = len(s.order)
	}
	page := storage.ListPage{IDs: append([]string{}, s.order[start:end]...)}
	if end < len(s.order) {
		page.NextToken = strconv.Itoa(end)
	}
	return page, nil
}

func (s *fakeStore) Delete(ctx context.Context, namespace string, ids []string) error {
	for _, id := range ids {
		delete(s.vectors, id)
		s.deleted = append(s.deleted, id)
	}
	return nil
}

func (s *fakeStore) NamespaceCount(ctx context.Context, namespace string) (int, error) {
	return len(s.vectors), nil
}

func chunk(id string, candidateID string) types.VectorRecord {
	return types.VectorRecord{
		ID:       id,
		Vector:   []float64{0.1, 0.2},
		Metadata: map[string]interface{}{"candidate_id": candidateID},
	}
}

func TestUnifyRewritesMatchingChunks(t *testing.T) {
	store := newFakeStore(
		chunk("resumes_old_chunk0_summary", "resumes_old"),
		chunk("resumes_old_chunk1_skills", "resumes_old"),
		chunk("resumes_other_chunk0_summary", "resumes_other"),
	)
	u := NewUnifier(store, "Resumes", zerolog.Nop())

	result, err := u.Unify(context.Background(), "resumes_old", "resumes_canonical")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 2, result.Rewritten)

	sort.Strings(result.NewIDs)
	assert.Equal(t, []string{
		"resumes_canonical_chunk0_summary",
		"resumes_canonical_chunk1_skills",
	}, result.NewIDs)

	// 新向量携带规范候选人ID，旧向量原封不动
	rewritten := store.vectors["resumes_canonical_chunk0_summary"]
	assert.Equal(t, "resumes_canonical", rewritten.Metadata["candidate_id"])
	assert.Equal(t, []float64{0.1, 0.2}, rewritten.Vector)
	_, oldStillThere := store.vectors["resumes_old_chunk0_summary"]
	assert.True(t, oldStillThere)

	// 无关候选人不受影响
	_, otherOK := store.vectors["resumes_other_chunk0_summary"]
	assert.True(t, otherOK)
}

func TestUnifyNoMatches(t *testing.T) {
	store := newFakeStore(chunk("resumes_other_chunk0_summary", "resumes_other"))
	u := NewUnifier(store, "Resumes", zerolog.Nop())

	result, err := u.Unify(context.Background(), "resumes_ghost", "resumes_canonical")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned)
	assert.Equal(t, 0, result.Rewritten)
}

func TestUnifySkipsAlreadyCanonical(t *testing.T) {
	store := newFakeStore(chunk("resumes_canonical_chunk0_summary", "resumes_canonical"))
	u := NewUnifier(store, "Resumes", zerolog.Nop())

	result, err := u.Unify(context.Background(), "resumes_canonical", "resumes_canonical")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 0, result.Rewritten)
}

func TestUnifyAbortsOnUpsertFailure(t *testing.T) {
	store := newFakeStore(chunk("resumes_old_chunk0_summary", "resumes_old"))
	store.upsertErr = errors.New("index unavailable")
	u := NewUnifier(store, "Resumes", zerolog.Nop())

	result, err := u.Unify(context.Background(), "resumes_old", "resumes_canonical")
	require.Error(t, err)
	assert.Equal(t, 0, result.Rewritten)

	// 写入失败时旧向量必须还在
	_, ok := store.vectors["resumes_old_chunk0_summary"]
	assert.True(t, ok)
}

func TestUnifyValidation(t *testing.T) {
	u := NewUnifier(newFakeStore(), "Resumes", zerolog.Nop())

	_, err := u.Unify(context.Background(), "", "resumes_canonical")
	assert.Error(t, err)
	_, err = u.Unify(context.Background(), "resumes_old", "")
	assert.Error(t, err)
}

func TestDeleteOriginalsRequiresExactToken(t *testing.T) {
	store := newFakeStore(chunk("resumes_old_chunk0_summary", "resumes_old"))
	u := NewUnifier(store, "Resumes", zerolog.Nop())

	// 口令不对一律拒绝
	for _, token := range []string{"", "delete", "yes", "DELETE "} {
		err := u.DeleteOriginals(context.Background(), []string{"resumes_old_chunk0_summary"}, token)
		require.Error(t, err, "token=%q", token)
	}
	assert.Empty(t, store.deleted)

	require.NoError(t, u.DeleteOriginals(context.Background(), []string{"resumes_old_chunk0_summary"}, ConfirmDeleteToken))
	assert.Equal(t, []string{"resumes_old_chunk0_summary"}, store.deleted)
}

func TestUnifyPaginatesAcrossPages(t *testing.T) {
	// 5条记录，页大小2，必须翻3页
	store := newFakeStore(
		chunk("resumes_old_chunk0_summary", "resumes_old"),
		chunk("resumes_old_chunk1_skills", "resumes_old"),
		chunk("resumes_old_chunk2_projects", "resumes_old"),
		chunk("resumes_old_chunk3_education", "resumes_old"),
		chunk("resumes_other_chunk0_summary", "resumes_other"),
	)
	u := NewUnifier(store, "Resumes", zerolog.Nop(), WithBatchSize(3))

	result, err := u.Unify(context.Background(), "resumes_old", "resumes_new")
	require.NoError(t, err)
	assert.Equal(t, 4, result.Scanned)
	assert.Equal(t, 4, result.Rewritten)
}
