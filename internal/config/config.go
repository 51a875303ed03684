package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/lookbook/internal/domain"
	"github.com/kailas-cloud/lookbook/internal/retry"
)

// requestSlackSec covers the query embedding and response writing on top of
// the generative calls, and separates the request deadline from the write timeout.
const requestSlackSec = 10

// Config holds the lookbook configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Recommend RecommendConfig `yaml:"recommend"`
	Cache     CacheConfig     `yaml:"cache"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port              int `yaml:"port"`
	ReadTimeoutSec    int `yaml:"read_timeout_sec"`
	WriteTimeoutSec   int `yaml:"write_timeout_sec"`   // default: request timeout + slack
	RequestTimeoutSec int `yaml:"request_timeout_sec"` // default: worst-case pipeline run
	ShutdownSec       int `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes      int `yaml:"max_body_bytes"`
}

// LLMConfig holds the generative completion provider settings.
type LLMConfig struct {
	BaseURL     string       `yaml:"base_url"`
	APIKey      string       `yaml:"api_key"`
	APIKeyEnv   string       `yaml:"api_key_env"`  // default GROQ_API_KEY
	SecretsFile string       `yaml:"secrets_file"` // dotenv file consulted before the environment
	TimeoutSec  int          `yaml:"timeout_sec"`  // per attempt
	Normalize   ModelConfig  `yaml:"normalize"`
	Rerank      ModelConfig  `yaml:"rerank"`
	Caption     ModelConfig  `yaml:"caption"`
	Budget      BudgetConfig `yaml:"budget"`
}

// BudgetConfig caps generation tokens. Counters are persisted in the cache
// store when the cache is enabled.
type BudgetConfig struct {
	DailyTokens   int64  `yaml:"daily_tokens"`   // 0 = unlimited
	MonthlyTokens int64  `yaml:"monthly_tokens"` // 0 = unlimited
	Action        string `yaml:"action"`         // warn | reject
	KeyPrefix     string `yaml:"key_prefix"`
}

// ModelConfig tunes one generative operation.
type ModelConfig struct {
	Model       string `yaml:"model"`
	MaxTokens   int    `yaml:"max_tokens"`
	Attempts    int    `yaml:"attempts"`
	BaseDelayMs int    `yaml:"base_delay_ms"`
	MaxDelayMs  int    `yaml:"max_delay_ms"`
}

// EmbeddingConfig holds embedding provider and vectorizer settings.
type EmbeddingConfig struct {
	BaseURL          string  `yaml:"base_url"`
	APIKey           string  `yaml:"api_key"`
	APIKeyEnv        string  `yaml:"api_key_env"` // default EMBEDDING_API_KEY
	SecretsFile      string  `yaml:"secrets_file"`
	Model            string  `yaml:"model"`
	Dimensions       int     `yaml:"dimensions"`
	Metric           string  `yaml:"metric"` // cosine | inner_product
	QueryInstruction string  `yaml:"query_instruction"`
	BatchSize        int     `yaml:"batch_size"`
	Workers          int     `yaml:"workers"`
	RateLimit        float64 `yaml:"rate_limit"` // provider calls per second during builds, 0 = unlimited
}

// IndexConfig locates the persisted embedding index.
type IndexConfig struct {
	Dir string `yaml:"dir"`
}

// RecommendConfig holds pipeline defaults and request bounds.
type RecommendConfig struct {
	DefaultN int `yaml:"default_n"`
	DefaultK int `yaml:"default_k"`
	MaxN     int `yaml:"max_n"`
	MaxK     int `yaml:"max_k"`
}

// CacheConfig holds the optional query-embedding cache (Redis / Valkey).
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	KeyPrefix        string   `yaml:"key_prefix"`
	TTLSec           int      `yaml:"ttl_sec"` // 0 = no expiry
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// CatalogConfig selects the Hugging Face dataset backing the catalog.
type CatalogConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Dataset     string  `yaml:"dataset"`
	Config      string  `yaml:"config"`
	Split       string  `yaml:"split"`
	TextColumn  string  `yaml:"text_column"`
	ImageColumn string  `yaml:"image_column"`
	Token       string  `yaml:"token"`
	TimeoutSec  int     `yaml:"timeout_sec"`
	RateLimit   float64 `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file by environment name (local, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 10 << 20
	}

	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = "GROQ_API_KEY"
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 30
	}
	c.LLM.Normalize.applyDefaults("meta-llama/llama-4-maverick-17b-128e-instruct", 200, 3)
	c.LLM.Rerank.applyDefaults("meta-llama/llama-4-scout-17b-16e-instruct", 1500, 5)
	c.LLM.Caption.applyDefaults("meta-llama/llama-4-scout-17b-16e-instruct", 400, 3)
	if c.LLM.Budget.Action == "" {
		c.LLM.Budget.Action = "warn"
	}
	if c.LLM.Budget.KeyPrefix == "" {
		c.LLM.Budget.KeyPrefix = "lookbook:"
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		c.HTTP.RequestTimeoutSec = ceilSeconds(c.LLM.PipelineWorstCase()) + requestSlackSec
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = c.HTTP.RequestTimeoutSec + requestSlackSec
	}

	if c.Embedding.APIKeyEnv == "" {
		c.Embedding.APIKeyEnv = "EMBEDDING_API_KEY"
	}
	vec := domain.DefaultVectorConfig()
	if c.Embedding.Model == "" {
		c.Embedding.Model = vec.Model
		// The default instruction only fits the default model.
		if c.Embedding.QueryInstruction == "" {
			c.Embedding.QueryInstruction = vec.QueryInstruction
		}
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = vec.Dimensions
	}
	if c.Embedding.Metric == "" {
		c.Embedding.Metric = vec.DistanceMetric
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 64
	}
	if c.Embedding.Workers <= 0 {
		c.Embedding.Workers = 4
	}

	if c.Index.Dir == "" {
		c.Index.Dir = "data/index"
	}

	if c.Recommend.DefaultN <= 0 {
		c.Recommend.DefaultN = 4
	}
	if c.Recommend.DefaultK <= 0 {
		c.Recommend.DefaultK = 30
	}
	if c.Recommend.MaxN <= 0 {
		c.Recommend.MaxN = 20
	}
	if c.Recommend.MaxK <= 0 {
		c.Recommend.MaxK = 200
	}

	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "lookbook:emb_cache:"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}

	if c.Catalog.TimeoutSec <= 0 {
		c.Catalog.TimeoutSec = 30
	}
}

func (m *ModelConfig) applyDefaults(model string, maxTokens, attempts int) {
	if m.Model == "" {
		m.Model = model
	}
	if m.MaxTokens <= 0 {
		m.MaxTokens = maxTokens
	}
	if m.Attempts <= 0 {
		m.Attempts = attempts
	}
	if m.BaseDelayMs <= 0 {
		m.BaseDelayMs = 1000
	}
	if m.MaxDelayMs <= 0 {
		m.MaxDelayMs = 10000
	}
}

// WorstCase is the longest one operation can take: every attempt runs into
// attemptTimeout and every backoff draws the maximum jitter.
func (m ModelConfig) WorstCase(attemptTimeout time.Duration) time.Duration {
	p := retry.Policy{
		BaseDelay: time.Duration(m.BaseDelayMs) * time.Millisecond,
		MaxDelay:  time.Duration(m.MaxDelayMs) * time.Millisecond,
	}
	total := time.Duration(m.Attempts) * attemptTimeout
	for i := 1; i < m.Attempts; i++ {
		total += p.Backoff(i) * 5 / 4
	}
	return total
}

// PipelineWorstCase bounds a recommendation seeded from an image:
// caption, normalize and rerank run back to back.
func (c LLMConfig) PipelineWorstCase() time.Duration {
	t := time.Duration(c.TimeoutSec) * time.Second
	return c.Caption.WorstCase(t) + c.Normalize.WorstCase(t) + c.Rerank.WorstCase(t)
}

func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.RequestTimeoutSec >= c.HTTP.WriteTimeoutSec {
		return fmt.Errorf("http.request_timeout_sec (%d) must be below http.write_timeout_sec (%d)",
			c.HTTP.RequestTimeoutSec, c.HTTP.WriteTimeoutSec)
	}
	switch c.Embedding.Metric {
	case "cosine", "inner_product":
	default:
		return fmt.Errorf("embedding.metric must be \"cosine\" or \"inner_product\", got %q", c.Embedding.Metric)
	}
	switch c.LLM.Budget.Action {
	case "warn", "reject":
	default:
		return fmt.Errorf("llm.budget.action must be \"warn\" or \"reject\", got %q", c.LLM.Budget.Action)
	}
	if c.LLM.Budget.DailyTokens < 0 || c.LLM.Budget.MonthlyTokens < 0 {
		return fmt.Errorf("llm.budget limits must not be negative")
	}
	if c.Embedding.RateLimit < 0 {
		return fmt.Errorf("embedding.rate_limit must not be negative")
	}
	if c.Recommend.DefaultN > c.Recommend.MaxN {
		return fmt.Errorf("recommend.default_n (%d) exceeds recommend.max_n (%d)", c.Recommend.DefaultN, c.Recommend.MaxN)
	}
	if c.Recommend.DefaultK > c.Recommend.MaxK {
		return fmt.Errorf("recommend.default_k (%d) exceeds recommend.max_k (%d)", c.Recommend.DefaultK, c.Recommend.MaxK)
	}
	if c.Recommend.DefaultK < c.Recommend.DefaultN {
		return fmt.Errorf("recommend.default_k (%d) must be at least recommend.default_n (%d)",
			c.Recommend.DefaultK, c.Recommend.DefaultN)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache.enabled is true")
	}
	if c.Cache.TTLSec < 0 {
		return fmt.Errorf("cache.ttl_sec must not be negative")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
