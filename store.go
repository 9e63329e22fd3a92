package vexora

import "context"

// DocumentInfo describes a stored document. The chunk collection mirrors
// these fields onto every chunk row so search results carry provenance.
type DocumentInfo struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name,omitempty"`
	PageCount    int    `json:"page_count,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// FilterOp is a comparison operator for chunk filters.
type FilterOp int

const (
	OpEq FilterOp = iota
	OpIn
	OpPrefix
)

// ChunkFilter restricts which chunks a store query considers. Filters
// combine conjunctively.
type ChunkFilter struct {
	Field string // "document_id", "level", "path"
	Op    FilterOp
	Value any
}

// ByDocumentIDs restricts a query to chunks of the given documents.
func ByDocumentIDs(ids []string) ChunkFilter {
	return ChunkFilter{Field: "document_id", Op: OpIn, Value: ids}
}

// ByLevel restricts a query to chunks at one hierarchy level.
func ByLevel(level int) ChunkFilter {
	return ChunkFilter{Field: "level", Op: OpEq, Value: level}
}

// ByPathPrefix restricts a query to chunks whose path starts with prefix.
func ByPathPrefix(prefix string) ChunkFilter {
	return ChunkFilter{Field: "path", Op: OpPrefix, Value: prefix}
}

// ChunkStore abstracts the vector/keyword store the retrieval layer reads
// from. The store owns write ordering and consistency; chunk records are
// append-only and deleted only as a document-level cascade.
type ChunkStore interface {
	// StoreChunks persists a document and all its chunks in one batch.
	StoreChunks(ctx context.Context, doc DocumentInfo, chunks []Chunk) error

	// HybridSearch runs a fused keyword+vector query. alpha blends the two
	// signals (0 = pure keyword, 1 = pure vector) using relative-score
	// fusion. Results are sorted by fused score descending, trimmed to topK.
	HybridSearch(ctx context.Context, query string, embedding []float32, alpha float32, topK int, filters ...ChunkFilter) ([]ScoredChunk, error)

	// GetChunksByPaths returns the chunks whose path matches any of the
	// given hierarchy paths.
	GetChunksByPaths(ctx context.Context, paths []string) ([]Chunk, error)

	// GetChunksByDocument returns a document's chunks ordered by chunk
	// index. A limit of 0 means no cap.
	GetChunksByDocument(ctx context.Context, documentID string, limit int, filters ...ChunkFilter) ([]Chunk, error)

	// DeleteDocument removes a document and all its chunks.
	DeleteDocument(ctx context.Context, documentID string) error

	// Init creates collections/tables. Safe to call repeatedly.
	Init(ctx context.Context) error
	Close() error
}

// ChunkRecord is one row of the relational chunk metadata mirror,
// unique on (DocumentID, ChunkID).
type ChunkRecord struct {
	DocumentID    string
	ChunkID       string
	ChunkIndex    int
	Level         int
	ParentChunkID string
	Path          string
	Method        ChunkingMethod
	PageStart     int
	PageEnd       int
	TokenCount    int
	CharCount     int
}

// MetadataStore mirrors chunk identity and structure into a relational
// table. Writes here are best-effort secondary writes: callers log and
// swallow failures rather than failing the pipeline.
type MetadataStore interface {
	StoreChunkRecords(ctx context.Context, records []ChunkRecord) error
	ListChunkRecords(ctx context.Context, documentID string) ([]ChunkRecord, error)
	DeleteChunkRecords(ctx context.Context, documentID string) (int, error)
}

// RecordFromChunk builds the relational mirror row for a chunk.
func RecordFromChunk(c Chunk) ChunkRecord {
	return ChunkRecord{
		DocumentID:    c.DocumentID,
		ChunkID:       c.ID,
		ChunkIndex:    c.ChunkIndex,
		Level:         c.Level,
		ParentChunkID: c.ParentChunkID,
		Path:          c.Path,
		Method:        c.Method,
		PageStart:     c.PageStart,
		PageEnd:       c.PageEnd,
		TokenCount:    c.TokenCount,
		CharCount:     c.CharCount,
	}
}
