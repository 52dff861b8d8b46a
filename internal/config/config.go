package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用程序配置
type Config struct {
	// 向量库配置
	VectorStore VectorStoreConfig `yaml:"vector_store"`

	// Embedding服务配置
	Embedding EmbeddingConfig `yaml:"embedding"`

	// 文本补全(LLM重排)服务配置
	LLM LLMConfig `yaml:"llm"`

	// Redis配置（内容哈希去重登记表）
	Redis RedisConfig `yaml:"redis"`

	// 匹配与分桶配置
	Matching MatchingConfig `yaml:"matching"`

	// 日志配置
	Logger LoggerConfig `yaml:"logger"`

	// 链路追踪配置
	Tracing TracingConfig `yaml:"tracing"`
}

// VectorStoreConfig 向量库配置
type VectorStoreConfig struct {
	Endpoint           string `yaml:"endpoint"`             // 数据面地址，例如 https://my-index-xxxx.svc.pinecone.io
	APIKey             string `yaml:"api_key,omitempty"`    // API Key，可由环境变量覆盖
	Dimension          int    `yaml:"dimension"`            // 向量维度
	CandidateNamespace string `yaml:"candidate_namespace"`  // 候选人分块命名空间
	JobNamespace       string `yaml:"job_namespace"`        // 岗位描述命名空间
	TimeoutSeconds     int    `yaml:"timeout_seconds"`      // HTTP超时(秒)
	DefaultSearchLimit int    `yaml:"default_search_limit"` // 默认查询返回数量
}

// EmbeddingConfig Embedding服务配置 (OpenAI兼容端点)
type EmbeddingConfig struct {
	APIKey           string `yaml:"api_key,omitempty"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	MaxRetries       int    `yaml:"max_retries"`        // 最大重试次数
	RetryWaitSeconds int    `yaml:"retry_wait_seconds"` // 首次重试等待时间(秒)
}

// LLMConfig 文本补全服务配置 (OpenAI兼容端点)
type LLMConfig struct {
	APIKey        string  `yaml:"api_key,omitempty"`
	BaseURL       string  `yaml:"base_url"`
	Model         string  `yaml:"model"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
	RerankTimeout string  `yaml:"rerank_timeout"` // 重排调用超时，例如 "90s"
}

// RedisConfig Redis配置
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// 连接池设置
	PoolSize     int `yaml:"pool_size"`
	MinIdleConns int `yaml:"min_idle_conns"`
	// 超时设置
	DialTimeoutSeconds  int `yaml:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
	// 内容哈希记录过期时间(天)
	ContentHashExpireDays int `yaml:"content_hash_expire_days"`
}

// MatchingConfig 匹配与分桶配置。
// 阈值只在此处配置一次，所有命令共用，不允许脚本各自携带字面量。
type MatchingConfig struct {
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	TopK       int              `yaml:"top_k"` // 相似度查询返回数量
}

// ThresholdsConfig 分桶阈值，要求 hired >= shortlist >= rejected
type ThresholdsConfig struct {
	Hired     float64 `yaml:"hired"`
	Shortlist float64 `yaml:"shortlist"`
	Rejected  float64 `yaml:"rejected"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	Format       string `yaml:"format"`        // json, pretty
	TimeFormat   string `yaml:"time_format"`   // 时间格式
	ReportCaller bool   `yaml:"report_caller"` // 是否报告调用位置
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // OTLP gRPC collector地址
}

// LoadConfig 从文件加载配置，环境变量覆盖密钥类字段
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	// 环境变量覆盖（沿用原脚本的变量名）
	if envKey := os.Getenv("PINECONE_API_KEY"); envKey != "" {
		config.VectorStore.APIKey = envKey
	}
	if envEndpoint := os.Getenv("PINECONE_ENDPOINT"); envEndpoint != "" {
		config.VectorStore.Endpoint = envEndpoint
	}
	if envKey := os.Getenv("OPENAI_API_KEY"); envKey != "" {
		if config.Embedding.APIKey == "" {
			config.Embedding.APIKey = envKey
		}
		if config.LLM.APIKey == "" {
			config.LLM.APIKey = envKey
		}
	}

	return config, nil
}

// DefaultConfig 返回带默认值的配置，测试环境直接使用
func DefaultConfig() *Config {
	config := &Config{}

	config.VectorStore.Endpoint = ""
	config.VectorStore.Dimension = 3072 // text-embedding-3-large
	config.VectorStore.CandidateNamespace = "Resumes"
	config.VectorStore.JobNamespace = "Job_Descriptions"
	config.VectorStore.TimeoutSeconds = 30
	config.VectorStore.DefaultSearchLimit = 10

	config.Embedding.BaseURL = "https://api.openai.com/v1/embeddings"
	config.Embedding.Model = "text-embedding-3-large"
	config.Embedding.Dimensions = 3072
	config.Embedding.MaxRetries = 3
	config.Embedding.RetryWaitSeconds = 2

	config.LLM.BaseURL = "https://api.openai.com/v1"
	config.LLM.Model = "gpt-4o-mini"
	config.LLM.Temperature = 0.0
	config.LLM.MaxTokens = 4096
	config.LLM.RerankTimeout = "90s"

	config.Redis.Address = "localhost:6379"
	config.Redis.PoolSize = 10
	config.Redis.MinIdleConns = 2
	config.Redis.DialTimeoutSeconds = 5
	config.Redis.ReadTimeoutSeconds = 3
	config.Redis.WriteTimeoutSeconds = 3
	config.Redis.ContentHashExpireDays = 365

	config.Matching.Thresholds = ThresholdsConfig{
		Hired:     0.75,
		Shortlist: 0.55,
		Rejected:  0.30,
	}
	config.Matching.TopK = 10

	config.Logger.Level = "info"
	config.Logger.Format = "pretty"
	config.Logger.TimeFormat = "2006-01-02 15:04:05"
	config.Logger.ReportCaller = false

	config.Tracing.Enabled = false
	config.Tracing.Endpoint = "localhost:4317"

	return config
}

// Validate 校验启动所需的配置项。
// 配置错误必须在任何外部调用发生之前暴露并终止进程。
func (c *Config) Validate() error {
	if c.VectorStore.Endpoint == "" {
		return fmt.Errorf("vector_store.endpoint 未配置 (或设置 PINECONE_ENDPOINT)")
	}
	if c.VectorStore.APIKey == "" {
		return fmt.Errorf("vector_store.api_key 未配置 (或设置 PINECONE_API_KEY)")
	}
	t := c.Matching.Thresholds
	if !(t.Hired >= t.Shortlist && t.Shortlist >= t.Rejected) {
		return fmt.Errorf("matching.thresholds 必须满足 hired(%.2f) >= shortlist(%.2f) >= rejected(%.2f)",
			t.Hired, t.Shortlist, t.Rejected)
	}
	return nil
}

// GetDuration 解析配置中的时长字符串，失败时返回默认值
func GetDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	if durationStr == "" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultDuration
	}
	return d
}
