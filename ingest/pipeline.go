package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	vexora "github.com/PeterKuehne/vexora"
)

// Pipeline runs a parsed document through table extraction, text chunking,
// hierarchy construction, and optional contextual enrichment. Embedding of
// the final chunks and storage are NOT handled here — the caller is
// responsible.
type Pipeline struct {
	strategy Strategy
	embed    EmbedFunc
	provider vexora.Provider
	enrich   bool
	workers  int
	docBytes int
	logger   *slog.Logger
	tracer   vexora.Tracer

	chunkerOpts []ChunkerOption
	cfg         chunkerConfig
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithStrategy selects the text chunking strategy. Default hybrid.
func WithStrategy(s Strategy) PipelineOption {
	return func(p *Pipeline) { p.strategy = s }
}

// WithEmbedFunc provides the embedding function used by semantic chunking.
// Without one, semantic chunking degrades to uniform grouping and the
// hybrid strategy goes straight to fixed windows.
func WithEmbedFunc(f EmbedFunc) PipelineOption {
	return func(p *Pipeline) { p.embed = f }
}

// WithEnrichment enables contextual enrichment of paragraph chunks through
// the given LLM provider.
func WithEnrichment(provider vexora.Provider) PipelineOption {
	return func(p *Pipeline) {
		p.provider = provider
		p.enrich = provider != nil
	}
}

// WithEnrichmentWorkers bounds the enrichment worker pool. Default 4.
func WithEnrichmentWorkers(n int) PipelineOption {
	return func(p *Pipeline) { p.workers = n }
}

// WithMaxDocTextBytes caps the document text sent with each enrichment
// prompt. Default 100000. Zero disables the cap.
func WithMaxDocTextBytes(n int) PipelineOption {
	return func(p *Pipeline) { p.docBytes = n }
}

// WithPipelineLogger sets a structured logger. Default: discard.
func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithPipelineTracer sets an optional tracer for pipeline stage spans.
func WithPipelineTracer(t vexora.Tracer) PipelineOption {
	return func(p *Pipeline) { p.tracer = t }
}

// WithChunkerOptions forwards options to the chunkers and the hierarchical
// indexer.
func WithChunkerOptions(opts ...ChunkerOption) PipelineOption {
	return func(p *Pipeline) { p.chunkerOpts = append(p.chunkerOpts, opts...) }
}

// NewPipeline creates a pipeline with the given options.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		strategy: StrategyHybrid,
		workers:  4,
		docBytes: 100000,
		logger:   vexora.NopLogger(),
	}
	for _, o := range opts {
		o(p)
	}
	p.cfg = defaultChunkerConfig()
	for _, o := range p.chunkerOpts {
		o(&p.cfg)
	}
	return p
}

// ProcessDocument chunks one parsed document. The returned output holds all
// chunks in final index order: the document summary chunk first, then the
// section summaries, then the content chunks ordered by source position.
func (p *Pipeline) ProcessDocument(ctx context.Context, input vexora.ChunkingInput) (vexora.ChunkingOutput, error) {
	start := time.Now()
	if p.tracer != nil {
		var span vexora.Span
		ctx, span = p.tracer.Start(ctx, "ingest.process_document",
			vexora.StringAttr("document_id", input.DocumentID),
			vexora.IntAttr("block_count", len(input.Blocks)))
		defer span.End()
	}
	if input.DocumentID == "" {
		return vexora.ChunkingOutput{}, fmt.Errorf("process document: empty document id")
	}

	const basePath = "doc"

	tableChunks := NewTableChunker(p.chunkerOpts...).ChunkTables(input.DocumentID, input.Blocks, "", basePath)

	textChunks, err := p.chunkText(ctx, input.DocumentID, input.Blocks, basePath)
	if err != nil {
		return vexora.ChunkingOutput{}, err
	}

	content := mergeBySourcePosition(textChunks, tableChunks)

	hier := NewHierarchicalIndexer(p.chunkerOpts...).CreateHierarchy(
		input.DocumentID, input.Blocks, content, input.Metadata.Title)

	all := assemble(hier)

	if p.enrich {
		docText := input.FullText
		if docText == "" {
			docText = joinBlockText(input.Blocks)
		}
		docText = truncateDocText(docText, p.docBytes)
		enrichChunksWithContext(ctx, p.provider, all, docText, p.workers, p.logger)
	}

	syncTableChunks(all, tableChunks)

	out := vexora.ChunkingOutput{
		DocumentID:  input.DocumentID,
		Chunks:      all,
		TableChunks: tableChunks,
		Hierarchy:   hier.Hierarchy,
		Stats:       computeStats(all, tableChunks, time.Since(start)),
	}

	p.logger.Info("document processed",
		"document_id", input.DocumentID,
		"chunks", len(all),
		"tables", out.Stats.TablesExtracted,
		"strategy", string(p.strategy),
		"elapsed_ms", out.Stats.ProcessingMs)
	return out, nil
}

// chunkText produces the paragraph-level text chunks per the configured
// strategy. Hybrid tries semantic first and falls back to fixed windows when
// no embedder is configured or the semantic pass fails.
func (p *Pipeline) chunkText(ctx context.Context, documentID string, blocks []vexora.ContentBlock, basePath string) ([]vexora.Chunk, error) {
	switch p.strategy {
	case StrategyFixed:
		return NewFixedChunker(p.chunkerOpts...).ChunkBlocks(documentID, blocks, "", basePath), nil
	case StrategySemantic:
		chunks, err := NewSemanticChunker(p.embed, p.chunkerOpts...).ChunkBlocks(ctx, documentID, blocks, "", basePath)
		if err != nil {
			return nil, fmt.Errorf("semantic chunking: %w", err)
		}
		return chunks, nil
	default: // hybrid
		if p.embed == nil {
			return NewFixedChunker(p.chunkerOpts...).ChunkBlocks(documentID, blocks, "", basePath), nil
		}
		chunks, err := NewSemanticChunker(p.embed, p.chunkerOpts...).ChunkBlocks(ctx, documentID, blocks, "", basePath)
		if err != nil {
			p.logger.Warn("semantic chunking failed, falling back to fixed windows",
				"document_id", documentID, "err", err)
			return NewFixedChunker(p.chunkerOpts...).ChunkBlocks(documentID, blocks, "", basePath), nil
		}
		return chunks, nil
	}
}

// mergeBySourcePosition interleaves text and table chunks by the position of
// their first source block, so reading order survives into chunk order.
func mergeBySourcePosition(text []vexora.Chunk, tables []vexora.TableChunk) []vexora.Chunk {
	merged := make([]vexora.Chunk, 0, len(text)+len(tables))
	merged = append(merged, text...)
	for _, t := range tables {
		merged = append(merged, t.Chunk)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return firstSourcePos(&merged[i]) < firstSourcePos(&merged[j])
	})
	return merged
}

// assemble flattens a hierarchy result into final document order and assigns
// contiguous chunk indexes: document chunk, section chunks, content chunks.
func assemble(hier HierarchyResult) []vexora.Chunk {
	var all []vexora.Chunk
	if hier.DocChunk != nil {
		all = append(all, *hier.DocChunk)
	}
	all = append(all, hier.SectionChunks...)
	all = append(all, hier.UpdatedChunks...)

	total := len(all)
	for i := range all {
		all[i].ChunkIndex = i
		all[i].TotalChunks = total
	}
	return all
}

// syncTableChunks copies final index, parent, path, and content state back
// onto the structured table chunk views.
func syncTableChunks(all []vexora.Chunk, tables []vexora.TableChunk) {
	byID := make(map[string]vexora.Chunk, len(all))
	for _, c := range all {
		byID[c.ID] = c
	}
	for i := range tables {
		if c, ok := byID[tables[i].ID]; ok {
			tables[i].Chunk = c
		}
	}
}

func computeStats(all []vexora.Chunk, tables []vexora.TableChunk, elapsed time.Duration) vexora.ChunkingStats {
	stats := vexora.ChunkingStats{
		TotalChunks:  len(all),
		ByLevel:      make(map[int]int),
		ByMethod:     make(map[vexora.ChunkingMethod]int),
		ProcessingMs: elapsed.Milliseconds(),
	}

	sourceTables := make(map[int]bool)
	for _, t := range tables {
		sourceTables[t.TableIndex] = true
	}
	stats.TablesExtracted = len(sourceTables)

	var sum int
	for i, c := range all {
		stats.ByLevel[c.Level]++
		stats.ByMethod[c.Method]++
		sum += c.CharCount
		if i == 0 || c.CharCount < stats.MinChunkSize {
			stats.MinChunkSize = c.CharCount
		}
		if c.CharCount > stats.MaxChunkSize {
			stats.MaxChunkSize = c.CharCount
		}
	}
	if len(all) > 0 {
		stats.AvgChunkSize = float64(sum) / float64(len(all))
	}
	return stats
}
