package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	vexora "github.com/PeterKuehne/vexora"
	"github.com/PeterKuehne/vexora/internal/config"
	"github.com/PeterKuehne/vexora/observer"
	"github.com/PeterKuehne/vexora/provider/openai"
	"github.com/PeterKuehne/vexora/store/postgres"
	"github.com/PeterKuehne/vexora/store/sqlite"
)

// deps holds everything a command needs, built from config.
type deps struct {
	cfg       config.Config
	store     vexora.ChunkStore
	meta      vexora.MetadataStore
	provider  vexora.Provider
	embedding vexora.EmbeddingProvider
	tracer    vexora.Tracer
	inst      *observer.Instruments

	shutdown func(context.Context) error
	pool     *pgxpool.Pool
}

// buildDeps loads config, opens the store, and constructs providers.
// Call deps.close when done.
func buildDeps(ctx context.Context) (*deps, error) {
	_ = godotenv.Load()
	cfg := config.Load(configPath)
	logger := newLogger()

	d := &deps{cfg: cfg}

	switch cfg.Database.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Database.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg := postgres.New(pool,
			postgres.WithEmbeddingDimension(cfg.Embedding.Dimensions),
			postgres.WithLogger(logger))
		d.pool = pool
		d.store = pg
		d.meta = pg
	case "sqlite", "":
		st := sqlite.New(cfg.Database.Path, sqlite.WithLogger(logger))
		d.store = st
		d.meta = st
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	if err := d.store.Init(ctx); err != nil {
		d.close(ctx)
		return nil, fmt.Errorf("init store: %w", err)
	}

	d.provider, d.embedding = buildProviders(cfg, logger)

	if cfg.Observer.Enabled {
		pricing := make(map[string]observer.ModelPricing, len(cfg.Observer.Pricing))
		for model, p := range cfg.Observer.Pricing {
			pricing[model] = observer.ModelPricing{InputPerMillion: p.Input, OutputPerMillion: p.Output}
		}
		inst, shutdown, err := observer.Init(ctx, pricing)
		if err != nil {
			d.close(ctx)
			return nil, fmt.Errorf("init observer: %w", err)
		}
		d.shutdown = shutdown
		d.inst = inst
		d.provider = observer.WrapProvider(d.provider, cfg.LLM.Model, inst)
		d.embedding = observer.WrapEmbedding(d.embedding, cfg.Embedding.Model, inst)
		d.tracer = observer.NewTracer()
	}

	return d, nil
}

// buildProviders constructs the retry-wrapped chat and embedding clients.
// Embeddings can run under their own key (separate account or quota);
// otherwise the chat client doubles as the embedding client.
func buildProviders(cfg config.Config, logger *slog.Logger) (vexora.Provider, vexora.EmbeddingProvider) {
	provOpts := []openai.Option{
		openai.WithChatModel(cfg.LLM.Model),
		openai.WithEmbeddingModel(cfg.Embedding.Model, cfg.Embedding.Dimensions),
		openai.WithProviderLogger(logger),
	}
	if cfg.LLM.BaseURL != "" {
		provOpts = append(provOpts, openai.WithBaseURL(cfg.LLM.BaseURL))
	}
	prov := openai.NewProvider(cfg.LLM.APIKey, provOpts...)

	embProv := prov
	if cfg.Embedding.APIKey != cfg.LLM.APIKey {
		embProv = openai.NewProvider(cfg.Embedding.APIKey, provOpts...)
	}
	return vexora.WithRetry(prov, vexora.RetryLogger(logger)),
		vexora.WithEmbeddingRetry(embProv, vexora.RetryLogger(logger))
}

func (d *deps) close(ctx context.Context) {
	if d.shutdown != nil {
		_ = d.shutdown(ctx)
	}
	if d.store != nil {
		_ = d.store.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
}
