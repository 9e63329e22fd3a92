package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Database  DatabaseConfig  `toml:"database"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Parser    ParserConfig    `toml:"parser"`
	Search    SearchConfig    `toml:"search"`
	Observer  ObserverConfig  `toml:"observer"`
}

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type EmbeddingConfig struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	APIKey     string `toml:"api_key"`
}

type DatabaseConfig struct {
	Driver      string `toml:"driver"` // "sqlite" or "postgres"
	Path        string `toml:"path"`
	PostgresDSN string `toml:"postgres_dsn"`
}

type ChunkingConfig struct {
	Strategy             string `toml:"strategy"` // "semantic", "fixed", "hybrid"
	MaxChunkSize         int    `toml:"max_chunk_size"`
	MinChunkSize         int    `toml:"min_chunk_size"`
	OverlapSize          int    `toml:"overlap_size"`
	BreakpointPercentile int    `toml:"breakpoint_percentile"`
	ChunkSizeWords       int    `toml:"chunk_size_words"`
	OverlapWords         int    `toml:"overlap_words"`
	MaxTableSize         int    `toml:"max_table_size"`
	ContextWindowSize    int    `toml:"context_window_size"`
	MaxSummaryLength     int    `toml:"max_summary_length"`
	Enrichment           bool   `toml:"enrichment"`
	EnrichmentWorkers    int    `toml:"enrichment_workers"`
}

type ParserConfig struct {
	ServiceURL string `toml:"service_url"`
}

type SearchConfig struct {
	Alpha float64 `toml:"alpha"`
	TopK  int     `toml:"top_k"`
}

type ObserverConfig struct {
	Enabled bool                       `toml:"enabled"`
	Pricing map[string]ObserverPricing `toml:"pricing"`
}

type ObserverPricing struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		LLM:       LLMConfig{Provider: "openai", Model: "gpt-4o-mini"},
		Embedding: EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small", Dimensions: 1536},
		Database:  DatabaseConfig{Driver: "sqlite", Path: "vexora.db"},
		Chunking: ChunkingConfig{
			Strategy:             "hybrid",
			MaxChunkSize:         2000,
			MinChunkSize:         100,
			OverlapSize:          200,
			BreakpointPercentile: 20,
			ChunkSizeWords:       300,
			OverlapWords:         50,
			MaxTableSize:         2000,
			ContextWindowSize:    3,
			MaxSummaryLength:     500,
			EnrichmentWorkers:    4,
		},
		Search: SearchConfig{Alpha: 0.3, TopK: 10},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "vexora.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("VEXORA_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("VEXORA_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("VEXORA_POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
		cfg.Database.Driver = "postgres"
	}
	if v := os.Getenv("VEXORA_PARSER_URL"); v != "" {
		cfg.Parser.ServiceURL = v
	}
	if os.Getenv("VEXORA_OBSERVER_ENABLED") == "true" || os.Getenv("VEXORA_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	// Fallbacks
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}

	return cfg
}
