package vexora

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"
)

// Retrieval defaults, tuned for keyword-heavy non-English corpora where the
// vector signal alone over-ranks paraphrases.
const (
	DefaultAlpha     = 0.3
	DefaultLimit     = 10
	sectionCtxMaxLen = 200
)

// RetrieverOption configures a HybridRetriever.
type RetrieverOption func(*retrieverConfig)

type retrieverConfig struct {
	alpha     float32
	limit     int
	perDocCap int
	logger    *slog.Logger
	tracer    Tracer
	metaStore MetadataStore
}

// WithDefaultAlpha overrides the keyword/vector blend used when a request
// does not set one.
func WithDefaultAlpha(alpha float32) RetrieverOption {
	return func(c *retrieverConfig) { c.alpha = alpha }
}

// WithDefaultLimit overrides the result cap used when a request does not
// set one.
func WithDefaultLimit(n int) RetrieverOption {
	return func(c *retrieverConfig) { c.limit = n }
}

// WithPerDocumentCap limits how many chunks document expansion returns per
// document. Default 200.
func WithPerDocumentCap(n int) RetrieverOption {
	return func(c *retrieverConfig) { c.perDocCap = n }
}

// WithRetrieverLogger sets a structured logger. Default: discard.
func WithRetrieverLogger(l *slog.Logger) RetrieverOption {
	return func(c *retrieverConfig) { c.logger = l }
}

// WithRetrieverTracer sets an optional tracer for search spans.
func WithRetrieverTracer(t Tracer) RetrieverOption {
	return func(c *retrieverConfig) { c.tracer = t }
}

// WithMetadataStore attaches the relational mirror so document deletion
// cascades there too. Mirror failures are logged, never fatal.
func WithMetadataStore(m MetadataStore) RetrieverOption {
	return func(c *retrieverConfig) { c.metaStore = m }
}

// HybridRetriever searches stored chunks with fused keyword+vector queries,
// applies permission and level filters, and optionally reconstructs parent
// section context or expands whole documents.
type HybridRetriever struct {
	store     ChunkStore
	embedding EmbeddingProvider
	cfg       retrieverConfig
}

// NewHybridRetriever creates a retriever over the given store and embedding
// provider.
func NewHybridRetriever(store ChunkStore, embedding EmbeddingProvider, opts ...RetrieverOption) *HybridRetriever {
	cfg := retrieverConfig{
		alpha:     DefaultAlpha,
		limit:     DefaultLimit,
		perDocCap: 200,
		logger:    NopLogger(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &HybridRetriever{store: store, embedding: embedding, cfg: cfg}
}

// Search runs one hybrid retrieval call. The store's relevance ordering is
// preserved; results below req.Threshold are dropped and at most req.Limit
// results are returned.
func (h *HybridRetriever) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = h.cfg.limit
	}
	alpha := h.cfg.alpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}

	if h.cfg.tracer != nil {
		var span Span
		ctx, span = h.cfg.tracer.Start(ctx, "retriever.search",
			StringAttr("query", req.Query), IntAttr("limit", limit))
		defer span.End()
	}

	embs, err := h.embedding.Embed(ctx, []string{req.Query})
	if err != nil {
		return SearchResponse{}, fmt.Errorf("embed query: %w", err)
	}
	if len(embs) == 0 {
		return SearchResponse{}, fmt.Errorf("embed query: no embedding returned")
	}

	// Parent-context enrichment can collapse results; over-fetch for headroom.
	fetchK := limit
	if req.IncludeParentContext {
		fetchK = limit * 2
	}

	var filters []ChunkFilter
	if len(req.AllowedDocumentIDs) > 0 {
		filters = append(filters, ByDocumentIDs(req.AllowedDocumentIDs))
	}
	if req.LevelFilter != nil {
		filters = append(filters, ByLevel(*req.LevelFilter))
	}

	results, err := h.store.HybridSearch(ctx, req.Query, embs[0], alpha, fetchK, filters...)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("hybrid search: %w", err)
	}

	if req.Threshold > 0 {
		filtered := results[:0]
		for _, r := range results {
			if r.Score >= req.Threshold {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	if req.IncludeParentContext {
		results = h.attachParentContext(ctx, results)
	}

	if len(results) > limit {
		results = results[:limit]
	}

	h.cfg.logger.Debug("search completed",
		"query", req.Query, "returned", len(results), "alpha", alpha)

	return SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Query:        req.Query,
	}, nil
}

// attachParentContext prepends each level-2 result's section summary,
// derived from its hierarchy path. Fetch failures degrade gracefully: the
// results pass through unmodified.
func (h *HybridRetriever) attachParentContext(ctx context.Context, results []ScoredChunk) []ScoredChunk {
	paths := make(map[string]bool)
	var distinct []string
	for _, r := range results {
		if r.Level != LevelParagraph {
			continue
		}
		parent, ok := ParentPath(r.Path)
		if !ok {
			continue
		}
		if !paths[parent] {
			paths[parent] = true
			distinct = append(distinct, parent)
		}
	}
	if len(distinct) == 0 {
		return results
	}

	parents, err := h.store.GetChunksByPaths(ctx, distinct)
	if err != nil {
		h.cfg.logger.Warn("parent context fetch failed", "err", err)
		return results
	}
	// Hierarchy paths repeat across documents; key on both so a result never
	// picks up another document's section summary.
	type parentKey struct{ doc, path string }
	byPath := make(map[parentKey]Chunk, len(parents))
	for _, p := range parents {
		byPath[parentKey{p.DocumentID, p.Path}] = p
	}

	for i, r := range results {
		if r.Level != LevelParagraph {
			continue
		}
		parentPath, ok := ParentPath(r.Path)
		if !ok {
			continue
		}
		parent, ok := byPath[parentKey{r.DocumentID, parentPath}]
		if !ok {
			continue
		}
		results[i].Content = "[Section Context: " + truncateRunes(parent.Content, sectionCtxMaxLen) + "]\n\n" + r.Content
	}
	return results
}

// truncateRunes cuts s to at most max bytes without splitting a UTF-8
// sequence.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// ParentPath strips the last /-segment of a hierarchy path. The second
// return is false when the path has no parent segment.
func ParentPath(path string) (string, bool) {
	idx := strings.LastIndexByte(path, '/')
	if idx <= 0 {
		return "", false
	}
	return path[:idx], true
}

// ExpandOptions configures GetChunksByDocumentIDs.
type ExpandOptions struct {
	// Level, when set, restricts expansion to chunks at that level.
	Level *int
	// PerDocumentCap overrides the retriever default when > 0.
	PerDocumentCap int
}

// GetChunksByDocumentIDs fetches all chunks for the given documents
// regardless of query relevance (document expansion). Results are sorted by
// document id, then chunk index, and every score is fixed at 1.0 since these
// are not relevance-ranked.
func (h *HybridRetriever) GetChunksByDocumentIDs(ctx context.Context, documentIDs []string, opts ExpandOptions) ([]ScoredChunk, error) {
	perDoc := h.cfg.perDocCap
	if opts.PerDocumentCap > 0 {
		perDoc = opts.PerDocumentCap
	}
	var filters []ChunkFilter
	if opts.Level != nil {
		filters = append(filters, ByLevel(*opts.Level))
	}

	var out []ScoredChunk
	for _, docID := range documentIDs {
		chunks, err := h.store.GetChunksByDocument(ctx, docID, perDoc, filters...)
		if err != nil {
			return nil, fmt.Errorf("expand document %s: %w", docID, err)
		}
		for _, c := range chunks {
			out = append(out, ScoredChunk{Chunk: c, Score: 1.0})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].ChunkIndex < out[j].ChunkIndex
	})
	return out, nil
}

// DeleteDocument removes a document's chunks from the store, cascading to
// the relational mirror when one is attached.
func (h *HybridRetriever) DeleteDocument(ctx context.Context, documentID string) error {
	if err := h.store.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if h.cfg.metaStore != nil {
		if _, err := h.cfg.metaStore.DeleteChunkRecords(ctx, documentID); err != nil {
			h.cfg.logger.Warn("metadata mirror delete failed", "document_id", documentID, "err", err)
		}
	}
	return nil
}
