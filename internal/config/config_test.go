package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// 阈值只在一处配置，默认值来自原匹配脚本
	assert.Equal(t, 0.75, cfg.Matching.Thresholds.Hired)
	assert.Equal(t, 0.55, cfg.Matching.Thresholds.Shortlist)
	assert.Equal(t, 0.30, cfg.Matching.Thresholds.Rejected)

	assert.Equal(t, "Resumes", cfg.VectorStore.CandidateNamespace)
	assert.Equal(t, "Job_Descriptions", cfg.VectorStore.JobNamespace)
}

func TestLoadConfigFromFile(t *testing.T) {
	content := `
vector_store:
  endpoint: "https://test-index.svc.example.io"
  api_key: "file-key"
  dimension: 1024
matching:
  thresholds:
    hired: 0.8
    shortlist: 0.6
    rejected: 0.2
  top_k: 20
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://test-index.svc.example.io", cfg.VectorStore.Endpoint)
	assert.Equal(t, 1024, cfg.VectorStore.Dimension)
	assert.Equal(t, 0.8, cfg.Matching.Thresholds.Hired)
	assert.Equal(t, 20, cfg.Matching.TopK)
	// 未覆盖的字段保留默认值
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("PINECONE_API_KEY", "env-key")
	t.Setenv("PINECONE_ENDPOINT", "https://env-index.svc.example.io")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.VectorStore.APIKey)
	assert.Equal(t, "https://env-index.svc.example.io", cfg.VectorStore.Endpoint)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VectorStore.Endpoint = "https://test.svc.example.io"
	cfg.VectorStore.APIKey = "key"
	require.NoError(t, cfg.Validate())

	// 缺少密钥是致命配置错误
	cfg.VectorStore.APIKey = ""
	assert.Error(t, cfg.Validate())

	// 阈值顺序颠倒也必须拒绝
	cfg.VectorStore.APIKey = "key"
	cfg.Matching.Thresholds = ThresholdsConfig{Hired: 0.3, Shortlist: 0.5, Rejected: 0.7}
	assert.Error(t, cfg.Validate())
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 90*time.Second, GetDuration("90s", time.Second))
	assert.Equal(t, time.Second, GetDuration("", time.Second))
	assert.Equal(t, time.Second, GetDuration("not-a-duration", time.Second))
}
