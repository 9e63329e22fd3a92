// Package postgres implements vexora.ChunkStore using PostgreSQL with
// pgvector for native vector similarity search and tsvector for full-text
// keyword search.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	vexora "github.com/PeterKuehne/vexora"
)

// Store implements vexora.ChunkStore backed by PostgreSQL with pgvector.
// Vector search uses HNSW indexes with cosine distance.
type Store struct {
	pool   *pgxpool.Pool
	cfg    pgConfig
	logger *slog.Logger
}

// pgConfig holds store configuration set via Option functions.
type pgConfig struct {
	embeddingDimension int    // 0 = untyped vector
	hnswM              int    // 0 = pgvector default (16)
	hnswEFConstruction int    // 0 = pgvector default (64)
	hnswEFSearch       int    // 0 = pgvector default (40)
	textSearchConfig   string // "" = english
}

// Option configures a PostgreSQL Store.
type Option func(*Store)

// WithEmbeddingDimension sets the vector column dimension (e.g. 1536, 768).
// When set, CREATE TABLE uses vector(N) instead of untyped vector, enabling
// better index optimization and catching dimension mismatches at insert time.
// Only affects new table creation (no ALTER on existing tables).
func WithEmbeddingDimension(dim int) Option {
	return func(s *Store) { s.cfg.embeddingDimension = dim }
}

// WithHNSWM sets the HNSW m parameter (max connections per node).
// Higher values improve recall at the cost of memory. Default: pgvector's 16.
// Only affects index creation (CREATE INDEX IF NOT EXISTS).
func WithHNSWM(m int) Option {
	return func(s *Store) { s.cfg.hnswM = m }
}

// WithEFConstruction sets the HNSW ef_construction parameter (build-time
// candidate list size). Higher values improve index quality at the cost of
// slower builds. Default: pgvector's 64.
// Only affects index creation (CREATE INDEX IF NOT EXISTS).
func WithEFConstruction(ef int) Option {
	return func(s *Store) { s.cfg.hnswEFConstruction = ef }
}

// WithEFSearch sets the HNSW ef_search parameter (query-time candidate list
// size). Higher values improve recall at the cost of latency. Default:
// pgvector's 40. Applied via SET during Init().
func WithEFSearch(ef int) Option {
	return func(s *Store) { s.cfg.hnswEFSearch = ef }
}

// WithTextSearchConfig sets the tsvector regconfig ("english", "simple",
// "german", ...). "simple" disables stemming, which keyword-heavy
// non-English corpora need. Default "english".
func WithTextSearchConfig(cfg string) Option {
	return func(s *Store) { s.cfg.textSearchConfig = cfg }
}

// WithLogger sets a structured logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

var _ vexora.ChunkStore = (*Store)(nil)
var _ vexora.MetadataStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, logger: vexora.NopLogger()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// vectorType returns "vector" or "vector(N)" depending on config.
func (s *Store) vectorType() string {
	if s.cfg.embeddingDimension > 0 {
		return fmt.Sprintf("vector(%d)", s.cfg.embeddingDimension)
	}
	return "vector"
}

// hnswWithClause returns the WITH (...) clause for HNSW index creation,
// or an empty string if no tuning params are set.
func (s *Store) hnswWithClause() string {
	var parts []string
	if s.cfg.hnswM > 0 {
		parts = append(parts, fmt.Sprintf("m = %d", s.cfg.hnswM))
	}
	if s.cfg.hnswEFConstruction > 0 {
		parts = append(parts, fmt.Sprintf("ef_construction = %d", s.cfg.hnswEFConstruction))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WITH (" + strings.Join(parts, ", ") + ")"
}

func (s *Store) tsConfig() string {
	if s.cfg.textSearchConfig != "" {
		return s.cfg.textSearchConfig
	}
	return "english"
}

// Init creates the pgvector extension, all required tables, and indexes.
// Safe to call multiple times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	vtype := s.vectorType()
	hnswWith := s.hnswWithClause()
	ts := s.tsConfig()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			original_name TEXT NOT NULL DEFAULT '',
			page_count INTEGER NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			char_count INTEGER NOT NULL,
			token_count INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			total_chunks INTEGER NOT NULL,
			level INTEGER NOT NULL,
			parent_chunk_id TEXT,
			path TEXT NOT NULL,
			method TEXT NOT NULL,
			page_start INTEGER NOT NULL DEFAULT 0,
			page_end INTEGER NOT NULL DEFAULT 0,
			embedding %s,
			metadata JSONB
		)`, vtype),
		`CREATE INDEX IF NOT EXISTS chunks_document_idx ON chunks(document_id)`,
		`CREATE INDEX IF NOT EXISTS chunks_path_idx ON chunks(path)`,
		`CREATE INDEX IF NOT EXISTS chunks_level_idx ON chunks(level)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks USING hnsw (embedding vector_cosine_ops)%s`, hnswWith),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS chunks_fts_idx ON chunks USING gin(to_tsvector('%s', content))`, ts),

		`CREATE TABLE IF NOT EXISTS chunk_records (
			document_id TEXT NOT NULL,
			chunk_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			level INTEGER NOT NULL,
			parent_chunk_id TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL,
			method TEXT NOT NULL,
			page_start INTEGER NOT NULL DEFAULT 0,
			page_end INTEGER NOT NULL DEFAULT 0,
			token_count INTEGER NOT NULL,
			char_count INTEGER NOT NULL,
			UNIQUE(document_id, chunk_id)
		)`,
		`CREATE INDEX IF NOT EXISTS chunk_records_document_idx ON chunk_records(document_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}

	if s.cfg.hnswEFSearch > 0 {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("SET hnsw.ef_search = %d", s.cfg.hnswEFSearch)); err != nil {
			return fmt.Errorf("postgres: set ef_search: %w", err)
		}
	}

	return nil
}

// StoreChunks inserts a document and all its chunks in one transaction.
func (s *Store) StoreChunks(ctx context.Context, doc vexora.DocumentInfo, chunks []vexora.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO documents (id, filename, original_name, page_count, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   filename = EXCLUDED.filename,
		   original_name = EXCLUDED.original_name,
		   page_count = EXCLUDED.page_count,
		   created_at = EXCLUDED.created_at`,
		doc.ID, doc.Filename, doc.OriginalName, doc.PageCount, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert document: %w", err)
	}

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		var embStr *string
		if len(chunk.Embedding) > 0 {
			v := serializeEmbedding(chunk.Embedding)
			embStr = &v
		}
		var parentID *string
		if chunk.ParentChunkID != "" {
			parentID = &chunk.ParentChunkID
		}
		var metaJSON []byte
		if chunk.Metadata != nil {
			metaJSON, _ = json.Marshal(chunk.Metadata)
		}
		batch.Queue(
			`INSERT INTO chunks (id, document_id, content, char_count, token_count, chunk_index, total_chunks, level, parent_chunk_id, path, method, page_start, page_end, embedding, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::vector, $15)
			 ON CONFLICT (id) DO UPDATE SET
			   content = EXCLUDED.content,
			   char_count = EXCLUDED.char_count,
			   token_count = EXCLUDED.token_count,
			   chunk_index = EXCLUDED.chunk_index,
			   total_chunks = EXCLUDED.total_chunks,
			   level = EXCLUDED.level,
			   parent_chunk_id = EXCLUDED.parent_chunk_id,
			   path = EXCLUDED.path,
			   method = EXCLUDED.method,
			   page_start = EXCLUDED.page_start,
			   page_end = EXCLUDED.page_end,
			   embedding = EXCLUDED.embedding,
			   metadata = EXCLUDED.metadata`,
			chunk.ID, chunk.DocumentID, chunk.Content, chunk.CharCount, chunk.TokenCount,
			chunk.ChunkIndex, chunk.TotalChunks, chunk.Level, parentID, chunk.Path,
			string(chunk.Method), chunk.PageStart, chunk.PageEnd, embStr, metaJSON)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	s.logger.Debug("postgres: store chunks ok", "document_id", doc.ID, "chunks", len(chunks))
	return nil
}

const chunkColumns = `c.id, c.document_id, c.content, c.char_count, c.token_count, c.chunk_index, c.total_chunks, c.level, c.parent_chunk_id, c.path, c.method, c.page_start, c.page_end, c.metadata`

// buildChunkFilters translates ChunkFilter values into SQL WHERE clauses
// using numbered placeholders starting at startParam. The returned clause
// includes a leading " AND ..." for each filter.
func buildChunkFilters(filters []vexora.ChunkFilter, startParam int) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	var clauses []string
	var args []any
	p := startParam

	for _, f := range filters {
		switch f.Field {
		case "document_id":
			switch f.Op {
			case vexora.OpIn:
				ids, ok := f.Value.([]string)
				if !ok || len(ids) == 0 {
					continue
				}
				clauses = append(clauses, fmt.Sprintf("c.document_id = ANY($%d)", p))
				p++
				args = append(args, ids)
			case vexora.OpEq:
				clauses = append(clauses, fmt.Sprintf("c.document_id = $%d", p))
				p++
				args = append(args, f.Value)
			}

		case "level":
			if f.Op != vexora.OpEq {
				continue
			}
			clauses = append(clauses, fmt.Sprintf("c.level = $%d", p))
			p++
			args = append(args, f.Value)

		case "path":
			if f.Op != vexora.OpPrefix {
				continue
			}
			prefix, ok := f.Value.(string)
			if !ok {
				continue
			}
			clauses = append(clauses, fmt.Sprintf("c.path LIKE $%d", p))
			p++
			args = append(args, escapeLike(prefix)+"%")
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// HybridSearch fuses pgvector cosine similarity with tsvector keyword rank
// using relative-score fusion.
func (s *Store) HybridSearch(ctx context.Context, query string, embedding []float32, alpha float32, topK int, filters ...vexora.ChunkFilter) ([]vexora.ScoredChunk, error) {
	fetchK := topK * 2
	if fetchK < topK {
		fetchK = topK
	}

	vector, err := s.searchVector(ctx, embedding, fetchK, filters)
	if err != nil {
		return nil, err
	}
	keyword, err := s.searchKeyword(ctx, query, fetchK, filters)
	if err != nil {
		return nil, err
	}

	results := vexora.FuseRelative(vector, keyword, alpha)
	if len(results) > topK {
		results = results[:topK]
	}
	s.logger.Debug("postgres: hybrid search ok",
		"vector", len(vector), "keyword", len(keyword), "returned", len(results))
	return results, nil
}

// searchVector performs vector similarity search using pgvector's cosine
// distance operator with the HNSW index.
func (s *Store) searchVector(ctx context.Context, embedding []float32, topK int, filters []vexora.ChunkFilter) ([]vexora.ScoredChunk, error) {
	embStr := serializeEmbedding(embedding)
	whereExtra, filterArgs := buildChunkFilters(filters, 3) // $1=embedding, $2=topK

	q := `SELECT ` + chunkColumns + `,
	        1 - (c.embedding <=> $1::vector) AS score
	 FROM chunks c
	 WHERE c.embedding IS NOT NULL` + whereExtra + `
	 ORDER BY c.embedding <=> $1::vector
	 LIMIT $2`

	allArgs := []any{embStr, topK}
	allArgs = append(allArgs, filterArgs...)

	rows, err := s.pool.Query(ctx, q, allArgs...)
	if err != nil {
		return nil, fmt.Errorf("postgres: vector search: %w", err)
	}
	defer rows.Close()

	return scanScoredChunks(rows)
}

// searchKeyword performs full-text keyword search using PostgreSQL
// tsvector/tsquery with the GIN index.
func (s *Store) searchKeyword(ctx context.Context, query string, topK int, filters []vexora.ChunkFilter) ([]vexora.ScoredChunk, error) {
	whereExtra, filterArgs := buildChunkFilters(filters, 3) // $1=query, $2=topK
	ts := s.tsConfig()

	q := `SELECT ` + chunkColumns + `,
	        ts_rank(to_tsvector('` + ts + `', c.content), plainto_tsquery('` + ts + `', $1)) AS score
	 FROM chunks c
	 WHERE to_tsvector('` + ts + `', c.content) @@ plainto_tsquery('` + ts + `', $1)` + whereExtra + `
	 ORDER BY score DESC
	 LIMIT $2`

	allArgs := []any{query, topK}
	allArgs = append(allArgs, filterArgs...)

	rows, err := s.pool.Query(ctx, q, allArgs...)
	if err != nil {
		return nil, fmt.Errorf("postgres: keyword search: %w", err)
	}
	defer rows.Close()

	return scanScoredChunks(rows)
}

// GetChunksByPaths returns the chunks whose path matches any of the given
// hierarchy paths.
func (s *Store) GetChunksByPaths(ctx context.Context, paths []string) ([]vexora.Chunk, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+chunkColumns+` FROM chunks c WHERE c.path = ANY($1)`, paths)
	if err != nil {
		return nil, fmt.Errorf("postgres: get chunks by paths: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// GetChunksByDocument returns a document's chunks ordered by chunk index.
func (s *Store) GetChunksByDocument(ctx context.Context, documentID string, limit int, filters ...vexora.ChunkFilter) ([]vexora.Chunk, error) {
	whereExtra, filterArgs := buildChunkFilters(filters, 2) // $1=documentID
	q := `SELECT ` + chunkColumns + ` FROM chunks c WHERE c.document_id = $1` +
		whereExtra + ` ORDER BY c.chunk_index`
	args := append([]any{documentID}, filterArgs...)
	if limit > 0 {
		q += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: get chunks by document: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// DeleteDocument removes a document, its chunks, and the relational mirror
// rows in one transaction.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete document chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chunk_records WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete chunk records: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete document: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	s.logger.Debug("postgres: delete document ok", "id", id)
	return nil
}

// --- MetadataStore ---

// StoreChunkRecords upserts relational mirror rows in one batch.
func (s *Store) StoreChunkRecords(ctx context.Context, records []vexora.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(
			`INSERT INTO chunk_records (document_id, chunk_id, chunk_index, level, parent_chunk_id, path, method, page_start, page_end, token_count, char_count)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (document_id, chunk_id) DO UPDATE SET
			   chunk_index = EXCLUDED.chunk_index,
			   level = EXCLUDED.level,
			   parent_chunk_id = EXCLUDED.parent_chunk_id,
			   path = EXCLUDED.path,
			   method = EXCLUDED.method,
			   page_start = EXCLUDED.page_start,
			   page_end = EXCLUDED.page_end,
			   token_count = EXCLUDED.token_count,
			   char_count = EXCLUDED.char_count`,
			r.DocumentID, r.ChunkID, r.ChunkIndex, r.Level, r.ParentChunkID,
			r.Path, string(r.Method), r.PageStart, r.PageEnd, r.TokenCount, r.CharCount)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: store chunk records: %w", err)
	}
	return nil
}

// ListChunkRecords returns a document's mirror rows ordered by chunk index.
func (s *Store) ListChunkRecords(ctx context.Context, documentID string) ([]vexora.ChunkRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT document_id, chunk_id, chunk_index, level, parent_chunk_id, path, method, page_start, page_end, token_count, char_count
		 FROM chunk_records WHERE document_id = $1 ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list chunk records: %w", err)
	}
	defer rows.Close()

	var records []vexora.ChunkRecord
	for rows.Next() {
		var r vexora.ChunkRecord
		var method string
		if err := rows.Scan(&r.DocumentID, &r.ChunkID, &r.ChunkIndex, &r.Level, &r.ParentChunkID, &r.Path, &method, &r.PageStart, &r.PageEnd, &r.TokenCount, &r.CharCount); err != nil {
			return nil, fmt.Errorf("postgres: scan chunk record: %w", err)
		}
		r.Method = vexora.ChunkingMethod(method)
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteChunkRecords removes a document's mirror rows, returning the count.
func (s *Store) DeleteChunkRecords(ctx context.Context, documentID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chunk_records WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete chunk records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Close is a no-op: the pool is externally owned.
func (s *Store) Close() error { return nil }

// --- Scanning ---

func scanChunkRow(rows pgx.Rows, c *vexora.Chunk, score *float32) error {
	var parentID *string
	var method string
	var metaJSON []byte
	dest := []any{&c.ID, &c.DocumentID, &c.Content, &c.CharCount, &c.TokenCount,
		&c.ChunkIndex, &c.TotalChunks, &c.Level, &parentID, &c.Path, &method,
		&c.PageStart, &c.PageEnd, &metaJSON}
	if score != nil {
		dest = append(dest, score)
	}
	if err := rows.Scan(dest...); err != nil {
		return fmt.Errorf("postgres: scan chunk: %w", err)
	}
	if parentID != nil {
		c.ParentChunkID = *parentID
	}
	c.Method = vexora.ChunkingMethod(method)
	if metaJSON != nil {
		c.Metadata = &vexora.ChunkMeta{}
		_ = json.Unmarshal(metaJSON, c.Metadata)
	}
	return nil
}

func scanChunks(rows pgx.Rows) ([]vexora.Chunk, error) {
	var chunks []vexora.Chunk
	for rows.Next() {
		var c vexora.Chunk
		if err := scanChunkRow(rows, &c, nil); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func scanScoredChunks(rows pgx.Rows) ([]vexora.ScoredChunk, error) {
	var results []vexora.ScoredChunk
	for rows.Next() {
		var c vexora.Chunk
		var score float32
		if err := scanChunkRow(rows, &c, &score); err != nil {
			return nil, err
		}
		results = append(results, vexora.ScoredChunk{Chunk: c, Score: score})
	}
	return results, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// serializeEmbedding formats a vector as a pgvector literal, e.g. "[1,2,3]".
func serializeEmbedding(embedding []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
