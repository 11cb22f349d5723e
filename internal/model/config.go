package model

import "time"

// Config is the full application configuration.
// Loaded from (highest to lowest priority): CLI flags, CLAIMAUDIT_* env vars,
// ~/.claimaudit/config.yaml, defaults.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	LLM       LLMConfig       `yaml:"llm"`
	Fallback  LLMConfig       `yaml:"llm_fallback"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Audit     AuditConfig     `yaml:"audit"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the HTTP transport
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig configures Postgres-backed storage
type DatabaseConfig struct {
	URL string `yaml:"url"` // Empty means in-memory stores
}

// EmbeddingConfig configures the embedding service
type EmbeddingConfig struct {
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key,omitempty"`
	BaseURL   string        `yaml:"base_url,omitempty"`
	Dimension int           `yaml:"dimension"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	CacheDir  string        `yaml:"cache_dir,omitempty"` // Optional disk layer
	Timeout   int           `yaml:"timeout"`             // seconds
}

// VectorConfig configures the chunk index
type VectorConfig struct {
	// Backend: "postgres" or "memory"
	Backend    string `yaml:"backend"`
	Collection string `yaml:"collection"`
}

// LLMConfig configures one generation provider
type LLMConfig struct {
	// Provider name: "openai", "groq", "gemini", "ollama", ""
	Provider string `yaml:"provider"`

	// Model name (provider-specific)
	Model string `yaml:"model"`

	// APIKey for hosted providers
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL for custom endpoints (Groq, Ollama, proxies)
	BaseURL string `yaml:"base_url,omitempty"`

	// Timeout for API requests, seconds
	Timeout int `yaml:"timeout"`

	// MaxTokens for response generation
	MaxTokens int `yaml:"max_tokens"`
}

// RetrievalConfig bounds evidence retrieval
type RetrievalConfig struct {
	Limit int `yaml:"limit"` // Max chunks per search
}

// AuditConfig bounds the audit state machine
type AuditConfig struct {
	// MaxDraftAttempts bounds the draft/refine loop. The loop cannot run
	// forever; every run terminates within this many drafting calls.
	MaxDraftAttempts int `yaml:"max_draft_attempts"`

	// Timeout for a whole audit run, seconds
	Timeout int `yaml:"timeout"`

	PromptVersion string `yaml:"prompt_version"`
}

// IngestConfig configures document ingestion
type IngestConfig struct {
	ChunkSize         int     `yaml:"chunk_size"`    // characters
	ChunkOverlap      int     `yaml:"chunk_overlap"` // characters
	Workers           int     `yaml:"workers"`       // concurrent documents in bulk ingest
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{URL: ""},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			Dimension: 384,
			CacheTTL:  time.Hour,
			Timeout:   30,
		},
		Vector: VectorConfig{
			Backend:    "memory",
			Collection: "policy_chunks",
		},
		LLM: LLMConfig{
			Provider:  "groq",
			Model:     "llama-3.3-70b-versatile",
			Timeout:   60,
			MaxTokens: 2048,
		},
		Fallback: LLMConfig{
			Provider:  "",
			Model:     "gemini-1.5-pro",
			Timeout:   60,
			MaxTokens: 2048,
		},
		Retrieval: RetrievalConfig{Limit: 6},
		Audit: AuditConfig{
			MaxDraftAttempts: 2,
			Timeout:          120,
			PromptVersion:    "v2.1",
		},
		Ingest: IngestConfig{
			ChunkSize:         1000,
			ChunkOverlap:      200,
			Workers:           4,
			RequestsPerSecond: 2,
		},
		Log: LogConfig{Level: "info"},
	}
}
