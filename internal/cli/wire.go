package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/apca/claimaudit/internal/audit"
	"github.com/apca/claimaudit/internal/cache"
	"github.com/apca/claimaudit/internal/embed"
	"github.com/apca/claimaudit/internal/llm"
	"github.com/apca/claimaudit/internal/logging"
	"github.com/apca/claimaudit/internal/model"
	"github.com/apca/claimaudit/internal/retrieve"
	"github.com/apca/claimaudit/internal/store"
	"github.com/apca/claimaudit/internal/vector"
)

// loadConfig assembles the effective configuration: defaults, then the
// YAML config file, then environment variables.
func loadConfig() *model.Config {
	cfg := model.DefaultConfig()

	if path := viper.ConfigFileUsed(); path != "" {
		if raw, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: ignoring malformed config file %s: %v\n", path, err)
				cfg = model.DefaultConfig()
			}
		}
	}

	applyEnv(cfg)
	return cfg
}

// applyEnv layers environment variables over the file config. API keys
// are env-only in most deployments.
func applyEnv(cfg *model.Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
		cfg.Vector.Backend = "postgres"
	}
	if v := viper.GetString("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v := viper.GetString("log_level"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = v
	}

	applyProviderEnv(&cfg.LLM)
	applyProviderEnv(&cfg.Fallback)
}

func applyProviderEnv(pc *model.LLMConfig) {
	if pc.APIKey != "" {
		return
	}
	switch pc.Provider {
	case "groq":
		pc.APIKey = os.Getenv("GROQ_API_KEY")
	case "openai":
		pc.APIKey = os.Getenv("OPENAI_API_KEY")
	case "gemini", "google":
		pc.APIKey = os.Getenv("GEMINI_API_KEY")
	case "ollama":
		if v := os.Getenv("OLLAMA_BASE_URL"); v != "" && pc.BaseURL == "" {
			pc.BaseURL = v
		}
	}
}

func buildLogger(cfg *model.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logging.New(level)
}

// buildEmbedder constructs the embedding client with its cache layers.
func buildEmbedder(cfg *model.Config) (embed.Embedder, error) {
	inner, err := embed.NewOpenAIEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	ttl := cfg.Embedding.CacheTTL
	if ttl <= 0 {
		return inner, nil
	}

	var c cache.Cache
	if cfg.Embedding.CacheDir != "" {
		c = cache.NewLayeredCache(ttl, cfg.Embedding.CacheDir, 24*time.Hour)
	} else {
		c = cache.NewMemoryCache(ttl, 10*time.Minute)
	}
	return embed.NewCachedEmbedder(inner, c, ttl), nil
}

// buildStores constructs the chunk index and the record store. Both
// share one Postgres pool when a database URL is configured; otherwise
// everything lives in memory.
func buildStores(ctx context.Context, cfg *model.Config) (vector.Store, store.Store, error) {
	if cfg.Database.URL == "" || cfg.Vector.Backend == "memory" {
		chunks := vector.NewMemoryStore()
		if err := chunks.EnsureCollection(ctx, cfg.Embedding.Dimension); err != nil {
			return nil, nil, err
		}
		return chunks, store.NewMemoryStore(), nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	chunks := vector.NewPostgresStore(pool, cfg.Vector.Collection)
	if err := chunks.EnsureCollection(ctx, cfg.Embedding.Dimension); err != nil {
		pool.Close()
		return nil, nil, err
	}

	records := store.NewPostgresStore(pool)
	if err := records.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return chunks, records, nil
}

// buildProvider assembles the generation chain: primary provider first,
// fallback provider when the primary fails transiently.
func buildProvider(ctx context.Context, cfg *model.Config, logger *zap.Logger) (llm.Provider, error) {
	primary, err := llm.NewProvider(ctx, llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("failed to build primary provider: %w", err)
	}
	if primary == nil {
		return nil, fmt.Errorf("no LLM provider configured")
	}

	fallback, err := llm.NewProvider(ctx, llm.ConfigFromModel(cfg.Fallback))
	if err != nil {
		return nil, fmt.Errorf("failed to build fallback provider: %w", err)
	}
	if fallback == nil {
		return primary, nil
	}
	return llm.NewChain(logger, primary, fallback), nil
}

// buildAuditService wires retrieval, the state machine and the service
// wrapper on top of already constructed dependencies.
func buildAuditService(cfg *model.Config, embedder embed.Embedder, chunks vector.Store, provider llm.Provider, logger *zap.Logger) *audit.Service {
	retriever := retrieve.NewRetriever(embedder, chunks, cfg.Retrieval.Limit, logger)
	machine := audit.NewMachine(retriever, provider, cfg.Audit.MaxDraftAttempts, cfg.Audit.PromptVersion, logger)
	return audit.NewService(machine, time.Duration(cfg.Audit.Timeout)*time.Second, logger)
}
