package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"talent-match-go/internal/config"
	"talent-match-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPinecone(t *testing.T, handler http.HandlerFunc) *Pinecone {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewPinecone(&config.VectorStoreConfig{
		Endpoint:  server.URL,
		APIKey:    "test-key",
		Dimension: 3,
	})
	require.NoError(t, err)
	return p
}

func TestNewPineconeValidation(t *testing.T) {
	_, err := NewPinecone(nil)
	assert.Error(t, err)

	_, err = NewPinecone(&config.VectorStoreConfig{APIKey: "k"})
	assert.Error(t, err)

	_, err = NewPinecone(&config.VectorStoreConfig{Endpoint: "http://localhost"})
	assert.Error(t, err)
}

func TestPineconeUpsert(t *testing.T) {
	p := newTestPinecone(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vectors/upsert", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("Api-Key"))

		var req upsertRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Resumes", req.Namespace)
		require.Len(t, req.Vectors, 2)
		assert.Equal(t, "resumes_a_chunk0_summary", req.Vectors[0].ID)

		json.NewEncoder(w).Encode(upsertResponse{UpsertedCount: 2})
	})

	count, err := p.Upsert(context.Background(), "Resumes", []types.VectorRecord{
		{ID: "resumes_a_chunk0_summary", Vector: []float64{1, 2, 3}},
		{ID: "resumes_a_chunk1_skills", Vector: []float64{4, 5, 6}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPineconeUpsertDimensionMismatch(t *testing.T) {
	p := newTestPinecone(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("维度校验失败时不应该发请求")
	})

	_, err := p.Upsert(context.Background(), "Resumes", []types.VectorRecord{
		{ID: "v1", Vector: []float64{1, 2}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "维度")
}

func TestPineconeUpsertEmptyIsNoop(t *testing.T) {
	p := newTestPinecone(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("空记录列表不应该发请求")
	})

	count, err := p.Upsert(context.Background(), "Resumes", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPineconeFetch(t *testing.T) {
	p := newTestPinecone(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vectors/fetch", r.URL.Path)
		assert.Equal(t, []string{"v1", "missing"}, r.URL.Query()["ids"])
		assert.Equal(t, "Resumes", r.URL.Query().Get("namespace"))

		// 服务端只返回存在的ID
		json.NewEncoder(w).Encode(fetchResponse{
			Vectors: map[string]types.VectorRecord{
				"v1": {ID: "v1", Vector: []float64{1, 2, 3}, Metadata: map[string]interface{}{"candidate_id": "resumes_a"}},
			},
			Namespace: "Resumes",
		})
	})

	vectors, err := p.Fetch(context.Background(), "Resumes", []string{"v1", "missing"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, []float64{1, 2, 3}, vectors["v1"].Vector)
	assert.Equal(t, "resumes_a", vectors["v1"].Metadata["candidate_id"])
	_, found := vectors["missing"]
	assert.False(t, found)
}

func TestPineconeQuery(t *testing.T) {
	p := newTestPinecone(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)

		var req queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 5, req.TopK)
		assert.True(t, req.IncludeMetadata)
		assert.False(t, req.IncludeValues)

		json.NewEncoder(w).Encode(queryResponse{
			Matches: []QueryMatch{
				{ID: "v1", Score: 0.91, Metadata: map[string]interface{}{"skills": "Go, Java"}},
				{ID: "v2", Score: 0.63},
			},
		})
	})

	matches, err := p.Query(context.Background(), "Resumes", []float64{1, 0, 0}, 5, false)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "v1", matches[0].ID)
	assert.Equal(t, 0.91, matches[0].Score)
}

func TestPineconeQueryEmptyVector(t *testing.T) {
	p := newTestPinecone(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("空向量不应该发请求")
	})

	_, err := p.Query(context.Background(), "Resumes", nil, 5, false)
	assert.Error(t, err)
}

func TestPineconeListIDsPagination(t *testing.T) {
	p := newTestPinecone(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vectors/list", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Resumes", q.Get("namespace"))
		assert.Equal(t, "100", q.Get("limit"))

		if q.Get("paginationToken") == "" {
			w.Write([]byte(`{"vectors":[{"id":"a"},{"id":"b"}],"pagination":{"next":"tok1"}}`))
			return
		}
		assert.Equal(t, "tok1", q.Get("paginationToken"))
		w.Write([]byte(`{"vectors":[{"id":"c"}],"pagination":{}}`))
	})

	page, err := p.ListIDs(context.Background(), "Resumes", 100, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, page.IDs)
	assert.Equal(t, "tok1", page.NextToken)

	page, err = p.ListIDs(context.Background(), "Resumes", 100, page.NextToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, page.IDs)
	assert.Empty(t, page.NextToken)
}

func TestPineconeDelete(t *testing.T) {
	var gotBody deleteRequest
	p := newTestPinecone(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vectors/delete", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{}`))
	})

	require.NoError(t, p.Delete(context.Background(), "Resumes", []string{"v1", "v2"}))
	assert.Equal(t, []string{"v1", "v2"}, gotBody.IDs)
	assert.Equal(t, "Resumes", gotBody.Namespace)

	// 空ID列表不发请求
	require.NoError(t, p.Delete(context.Background(), "Resumes", nil))
}

func TestPineconeNamespaceCount(t *testing.T) {
	p := newTestPinecone(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/describe_index_stats", r.URL.Path)
		w.Write([]byte(`{"namespaces":{"Resumes":{"vectorCount":42},"Job_Descriptions":{"vectorCount":7}},"dimension":3,"totalVectorCount":49}`))
	})

	count, err := p.NamespaceCount(context.Background(), "Resumes")
	require.NoError(t, err)
	assert.Equal(t, 42, count)

	// 不存在的命名空间计为0
	count, err = p.NamespaceCount(context.Background(), "Empty")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPineconeServerError(t *testing.T) {
	p := newTestPinecone(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid api key"}`))
	})

	_, err := p.Fetch(context.Background(), "Resumes", []string{"v1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestDeterministicVectorID(t *testing.T) {
	id := DeterministicVectorID("resume body")
	assert.Equal(t, id, DeterministicVectorID("resume body"))
	assert.NotEqual(t, id, DeterministicVectorID("another body"))
}
