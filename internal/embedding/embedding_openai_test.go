package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"talent-match-go/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmbedder(t *testing.T, handler http.HandlerFunc) *OpenAIEmbedder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	e, err := NewOpenAIEmbedder(config.EmbeddingConfig{
		APIKey:           "test-key",
		BaseURL:          server.URL,
		Model:            "text-embedding-3-large",
		Dimensions:       3,
		MaxRetries:       3,
		RetryWaitSeconds: 1,
	}, zerolog.Nop())
	require.NoError(t, err)
	// 测试里不等真实退避
	e.retry.BaseDelay = time.Millisecond
	return e
}

func TestEmbedStrings(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-large", req.Model)
		assert.Equal(t, 3, req.Dimensions)

		// 乱序返回，客户端按index还原
		json.NewEncoder(w).Encode(openAIEmbeddingResponse{
			Object: "list",
			Data: []openAIDataEntry{
				{Object: "embedding", Embedding: []float64{4, 5, 6}, Index: 1},
				{Object: "embedding", Embedding: []float64{1, 2, 3}, Index: 0},
			},
		})
	})

	vectors, err := e.EmbedStrings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{1, 2, 3}, vectors[0])
	assert.Equal(t, []float64{4, 5, 6}, vectors[1])
}

func TestEmbedStringsBlankTextReplaced(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		var req openAIEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// 空字符串被替换成单个空格
		assert.Equal(t, " ", req.Input)

		json.NewEncoder(w).Encode(openAIEmbeddingResponse{
			Data: []openAIDataEntry{{Embedding: []float64{0.1, 0.2, 0.3}, Index: 0}},
		})
	})

	vectors, err := e.EmbedStrings(context.Background(), []string{""})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
}

func TestEmbedStringsEmptyInput(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("没有文本时不应该发请求")
	})

	vectors, err := e.EmbedStrings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbedStringsRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(openAIEmbeddingResponse{
			Data: []openAIDataEntry{{Embedding: []float64{1, 2, 3}, Index: 0}},
		})
	})

	vectors, err := e.EmbedStrings(context.Background(), []string{"text"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedStringsExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := e.EmbedStrings(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedStringsCountMismatch(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openAIEmbeddingResponse{
			Data: []openAIDataEntry{{Embedding: []float64{1, 2, 3}, Index: 0}},
		})
	})

	_, err := e.EmbedStrings(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "数量不符")
}

func TestNewOpenAIEmbedderRequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(config.EmbeddingConfig{}, zerolog.Nop())
	assert.Error(t, err)
}
