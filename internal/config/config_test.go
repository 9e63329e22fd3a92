package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected openai, got %s", cfg.LLM.Provider)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("expected 1536, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Chunking.Strategy != "hybrid" {
		t.Errorf("expected hybrid, got %s", cfg.Chunking.Strategy)
	}
	if cfg.Chunking.MaxChunkSize != 2000 {
		t.Errorf("expected 2000, got %d", cfg.Chunking.MaxChunkSize)
	}
	if cfg.Search.Alpha != 0.3 {
		t.Errorf("expected alpha 0.3, got %f", cfg.Search.Alpha)
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[database]
driver = "postgres"
postgres_dsn = "postgres://localhost/vexora"

[chunking]
strategy = "semantic"
max_chunk_size = 1500
`), 0644)

	cfg := Load(path)
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected postgres, got %s", cfg.Database.Driver)
	}
	if cfg.Chunking.Strategy != "semantic" {
		t.Errorf("expected semantic, got %s", cfg.Chunking.Strategy)
	}
	if cfg.Chunking.MaxChunkSize != 1500 {
		t.Errorf("expected 1500, got %d", cfg.Chunking.MaxChunkSize)
	}
	// Defaults preserved
	if cfg.LLM.Provider != "openai" {
		t.Errorf("default should be preserved, got %s", cfg.LLM.Provider)
	}
	if cfg.Chunking.MinChunkSize != 100 {
		t.Errorf("default should be preserved, got %d", cfg.Chunking.MinChunkSize)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("VEXORA_LLM_API_KEY", "env-key")
	t.Setenv("VEXORA_PARSER_URL", "http://localhost:8500")

	cfg := Load("/nonexistent/path.toml")
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("expected env-key, got %s", cfg.LLM.APIKey)
	}
	if cfg.Parser.ServiceURL != "http://localhost:8500" {
		t.Errorf("expected parser url, got %s", cfg.Parser.ServiceURL)
	}
	// Fallback: embedding gets LLM key
	if cfg.Embedding.APIKey != "env-key" {
		t.Errorf("expected embedding fallback to env-key, got %s", cfg.Embedding.APIKey)
	}
}

func TestPostgresDSNEnvSwitchesDriver(t *testing.T) {
	t.Setenv("VEXORA_POSTGRES_DSN", "postgres://localhost/vexora")

	cfg := Load("/nonexistent/path.toml")
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected driver switched to postgres, got %s", cfg.Database.Driver)
	}
	if cfg.Database.PostgresDSN != "postgres://localhost/vexora" {
		t.Errorf("expected dsn, got %s", cfg.Database.PostgresDSN)
	}
}
