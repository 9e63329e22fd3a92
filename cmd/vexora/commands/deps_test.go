package commands

import (
	"testing"

	vexora "github.com/PeterKuehne/vexora"
	"github.com/PeterKuehne/vexora/internal/config"
)

func TestBuildProvidersSharedKey(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "key-1"
	cfg.Embedding.APIKey = "key-1"

	prov, emb := buildProviders(cfg, vexora.NopLogger())
	if prov == nil || emb == nil {
		t.Fatal("nil provider")
	}
	if prov.Name() != emb.Name() {
		t.Errorf("names differ: %q vs %q", prov.Name(), emb.Name())
	}
}

func TestBuildProvidersSeparateEmbeddingKey(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "chat-key"
	cfg.Embedding.APIKey = "embed-key"

	prov, emb := buildProviders(cfg, vexora.NopLogger())
	if prov == nil || emb == nil {
		t.Fatal("nil provider")
	}
	if emb.Dimensions() != cfg.Embedding.Dimensions {
		t.Errorf("Dimensions = %d, want %d", emb.Dimensions(), cfg.Embedding.Dimensions)
	}
}
