package model

import "time"

// Config holds the complete persona configuration.
// Hierarchy (highest first): CLI flags, PERSONA_* env vars, config file, defaults.
type Config struct {
	Source SourceConfig `yaml:"source" mapstructure:"source"`
	LLM    LLMConfig    `yaml:"llm" mapstructure:"llm"`
	Prompt PromptConfig `yaml:"prompt" mapstructure:"prompt"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// SourceConfig configures the content source (Reddit public listings)
type SourceConfig struct {
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	UserAgent      string        `yaml:"user_agent" mapstructure:"user_agent"`
	Limit          int           `yaml:"limit" mapstructure:"limit"` // Max posts and max comments each
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots  bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	RequestsPerSec float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables pacing
	HTTPProxy      string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy     string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy        string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// LLMConfig configures the completion backend
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // groq, openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
}

// PromptConfig bounds the compiled prompt
type PromptConfig struct {
	ItemChars  int `yaml:"item_chars" mapstructure:"item_chars"`
	TotalChars int `yaml:"total_chars" mapstructure:"total_chars"`
}

// CacheConfig configures listing caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Backend   string        `yaml:"backend" mapstructure:"backend"` // memory, disk, layered, redis
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	RedisAddr string        `yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
}

// StoreConfig configures run history persistence
type StoreConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP boundary
type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// BatchConfig configures multi-user analysis
type BatchConfig struct {
	Workers           int     `yaml:"workers" mapstructure:"workers"`
	RequestsPerSecond float64 `yaml:"llm_requests_per_second" mapstructure:"llm_requests_per_second"`
	Burst             int     `yaml:"llm_burst" mapstructure:"llm_burst"`
}

// LogConfig selects the logger flavour
type LogConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode"` // dev, quiet or prod
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:        "https://www.reddit.com",
			UserAgent:      "Persona/0.1 (+https://github.com/ppiankov/persona)",
			Limit:          100,
			Timeout:        30 * time.Second,
			MaxBodyBytes:   5_000_000,
			RequestsPerSec: 1,
		},
		LLM: LLMConfig{
			Provider:    "groq",
			Timeout:     60,
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Prompt: PromptConfig{
			ItemChars:  500,
			TotalChars: 8000,
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: "memory",
			Dir:     ".persona/cache",
			TTL:     15 * time.Minute,
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    ".persona/history.db",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			RequestTimeout: 3 * time.Minute,
		},
		Batch: BatchConfig{
			Workers:           4,
			RequestsPerSecond: 0.5,
			Burst:             1,
		},
		Log: LogConfig{
			Mode: "", // each command picks: quiet for the CLI, prod for serve
		},
	}
}
