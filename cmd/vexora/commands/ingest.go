package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	vexora "github.com/PeterKuehne/vexora"
	"github.com/PeterKuehne/vexora/ingest"
	"github.com/PeterKuehne/vexora/parser"
)

var (
	ingestStrategy    string
	ingestEnrich      bool
	ingestConcurrency int
)

// embedBatchSize caps how many chunk texts go into one embedding request.
const embedBatchSize = 64

// NewIngestCmd creates the ingest command.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Parse, chunk, embed, and store documents",
		Long: `Parse one or more documents, chunk them hierarchically, embed the
chunks, and store everything for retrieval.

Examples:
  vexora ingest report.md
  vexora ingest --strategy=fixed notes.txt handbook.pdf
  vexora ingest --enrich manual.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().StringVar(&ingestStrategy, "strategy", "", "Chunking strategy: semantic, fixed, or hybrid (default from config)")
	cmd.Flags().BoolVar(&ingestEnrich, "enrich", false, "Enable LLM contextual enrichment")
	cmd.Flags().IntVar(&ingestConcurrency, "concurrency", 2, "How many files to process in parallel")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close(ctx)

	pipeline, err := buildPipeline(d)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)
	for _, path := range args {
		g.Go(func() error {
			return ingestFile(gctx, cmd, d, pipeline, path)
		})
	}
	return g.Wait()
}

// effectiveStrategy resolves the strategy name, flag over config.
func effectiveStrategy(d *deps) string {
	if ingestStrategy != "" {
		return ingestStrategy
	}
	return d.cfg.Chunking.Strategy
}

func buildPipeline(d *deps) (*ingest.Pipeline, error) {
	strategy, err := ingest.ParseStrategy(effectiveStrategy(d))
	if err != nil {
		return nil, err
	}

	opts := []ingest.PipelineOption{
		ingest.WithStrategy(strategy),
		ingest.WithEmbedFunc(d.embedding.Embed),
		ingest.WithPipelineLogger(newLogger()),
		ingest.WithChunkerOptions(
			ingest.WithMaxChunkSize(d.cfg.Chunking.MaxChunkSize),
			ingest.WithMinChunkSize(d.cfg.Chunking.MinChunkSize),
			ingest.WithOverlapSize(d.cfg.Chunking.OverlapSize),
			ingest.WithBreakpointPercentile(d.cfg.Chunking.BreakpointPercentile),
			ingest.WithChunkSizeWords(d.cfg.Chunking.ChunkSizeWords),
			ingest.WithOverlapWords(d.cfg.Chunking.OverlapWords),
			ingest.WithMaxTableSize(d.cfg.Chunking.MaxTableSize),
			ingest.WithContextWindowSize(d.cfg.Chunking.ContextWindowSize),
			ingest.WithMaxSummaryLength(d.cfg.Chunking.MaxSummaryLength),
		),
	}
	if ingestEnrich || d.cfg.Chunking.Enrichment {
		opts = append(opts,
			ingest.WithEnrichment(d.provider),
			ingest.WithEnrichmentWorkers(d.cfg.Chunking.EnrichmentWorkers))
	}
	if d.tracer != nil {
		opts = append(opts, ingest.WithPipelineTracer(d.tracer))
	}
	return ingest.NewPipeline(opts...), nil
}

func ingestFile(ctx context.Context, cmd *cobra.Command, d *deps, pipeline *ingest.Pipeline, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var doc parser.ParsedDocument
	if d.cfg.Parser.ServiceURL != "" {
		doc, err = parser.NewClient(d.cfg.Parser.ServiceURL).Parse(ctx, filepath.Base(path), content)
	} else {
		doc, err = parser.ParseFile(content, filepath.Base(path))
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	out, err := pipeline.ProcessDocument(ctx, doc.Input())
	if err != nil {
		return fmt.Errorf("chunk %s: %w", path, err)
	}

	if err := embedChunks(ctx, d.embedding, out.Chunks); err != nil {
		return fmt.Errorf("embed %s: %w", path, err)
	}

	info := vexora.DocumentInfo{
		ID:           doc.DocumentID,
		Filename:     doc.Metadata.Filename,
		OriginalName: doc.Metadata.OriginalName,
		PageCount:    doc.Metadata.PageCount,
		CreatedAt:    time.Now().Unix(),
	}
	if err := d.store.StoreChunks(ctx, info, out.Chunks); err != nil {
		return fmt.Errorf("store %s: %w", path, err)
	}

	// Relational mirror is best-effort.
	records := make([]vexora.ChunkRecord, len(out.Chunks))
	for i, c := range out.Chunks {
		records[i] = vexora.RecordFromChunk(c)
	}
	if err := d.meta.StoreChunkRecords(ctx, records); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: metadata mirror write failed for %s: %v\n", path, err)
	}

	d.inst.RecordIngest(ctx, effectiveStrategy(d), out.Stats.TotalChunks,
		time.Duration(out.Stats.ProcessingMs)*time.Millisecond)

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d chunks, %d tables, %dms)\n",
		path, doc.DocumentID, out.Stats.TotalChunks, out.Stats.TablesExtracted, out.Stats.ProcessingMs)
	return nil
}

// embedChunks fills in embeddings for every chunk in batches.
func embedChunks(ctx context.Context, provider vexora.EmbeddingProvider, chunks []vexora.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Content
		}
		vecs, err := provider.Embed(ctx, texts)
		if err != nil {
			return err
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vecs), len(texts))
		}
		for i := start; i < end; i++ {
			chunks[i].Embedding = vecs[i-start]
		}
	}
	return nil
}
