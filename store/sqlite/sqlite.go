// Package sqlite implements vexora.ChunkStore using pure-Go SQLite with
// FTS5 keyword search and in-process brute-force vector search. Zero CGO
// required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	vexora "github.com/PeterKuehne/vexora"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
// When set, the store emits debug logs for every operation including
// timing, row counts, and key parameters. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements vexora.ChunkStore backed by a local SQLite file.
// Embeddings are stored as JSON text and vector search is done in-process
// using brute-force cosine similarity, fused with FTS5 keyword rank.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ vexora.ChunkStore = (*Store)(nil)
var _ vexora.MetadataStore = (*Store)(nil)

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: vexora.NopLogger()}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates all required tables.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug("sqlite: init started")
	tables := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			original_name TEXT,
			page_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
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
			page_start INTEGER,
			page_end INTEGER,
			embedding TEXT,
			metadata TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS chunk_records (
			document_id TEXT NOT NULL,
			chunk_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			level INTEGER NOT NULL,
			parent_chunk_id TEXT,
			path TEXT NOT NULL,
			method TEXT NOT NULL,
			page_start INTEGER,
			page_end INTEGER,
			token_count INTEGER NOT NULL,
			char_count INTEGER NOT NULL,
			UNIQUE(document_id, chunk_id)
		)`,
	}

	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	// Indexes on frequently queried columns.
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(path)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_chunks_level ON chunks(level)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_chunk_records_document ON chunk_records(document_id)`)

	// FTS5 full-text index for keyword search over chunks.
	_, _ = s.db.ExecContext(ctx, `CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(chunk_id UNINDEXED, content)`)

	s.logger.Info("sqlite: init completed", "duration", time.Since(start))
	return nil
}

// StoreChunks inserts a document and all its chunks in a single transaction,
// keeping the FTS index in sync.
func (s *Store) StoreChunks(ctx context.Context, doc vexora.DocumentInfo, chunks []vexora.Chunk) error {
	start := time.Now()
	s.logger.Debug("sqlite: store chunks", "document_id", doc.ID, "filename", doc.Filename, "chunks", len(chunks))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, filename, original_name, page_count, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.OriginalName, doc.PageCount, doc.CreatedAt,
	)
	if err != nil {
		s.logger.Error("sqlite: insert document failed", "id", doc.ID, "error", err)
		return fmt.Errorf("insert document: %w", err)
	}

	for _, chunk := range chunks {
		var embJSON *string
		if len(chunk.Embedding) > 0 {
			v := serializeEmbedding(chunk.Embedding)
			embJSON = &v
		}
		var parentID *string
		if chunk.ParentChunkID != "" {
			parentID = &chunk.ParentChunkID
		}
		var metaJSON *string
		if chunk.Metadata != nil {
			data, _ := json.Marshal(chunk.Metadata)
			v := string(data)
			metaJSON = &v
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO chunks (id, document_id, content, char_count, token_count, chunk_index, total_chunks, level, parent_chunk_id, path, method, page_start, page_end, embedding, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			chunk.ID, chunk.DocumentID, chunk.Content, chunk.CharCount, chunk.TokenCount,
			chunk.ChunkIndex, chunk.TotalChunks, chunk.Level, parentID, chunk.Path,
			string(chunk.Method), chunk.PageStart, chunk.PageEnd, embJSON, metaJSON,
		)
		if err != nil {
			s.logger.Error("sqlite: insert chunk failed", "chunk_id", chunk.ID, "document_id", doc.ID, "error", err)
			return fmt.Errorf("insert chunk: %w", err)
		}

		// Keep FTS index in sync.
		_, _ = tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE chunk_id = ?`, chunk.ID)
		if _, err2 := tx.ExecContext(ctx, `INSERT INTO chunks_fts(chunk_id, content) VALUES (?, ?)`, chunk.ID, chunk.Content); err2 != nil {
			return fmt.Errorf("insert chunk fts: %w", err2)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("sqlite: store chunks commit failed", "id", doc.ID, "error", err)
		return fmt.Errorf("commit tx: %w", err)
	}
	s.logger.Debug("sqlite: store chunks ok", "document_id", doc.ID, "chunks", len(chunks), "duration", time.Since(start))
	return nil
}

const chunkColumns = `c.id, c.document_id, c.content, c.char_count, c.token_count, c.chunk_index, c.total_chunks, c.level, c.parent_chunk_id, c.path, c.method, c.page_start, c.page_end, c.metadata`

// buildChunkFilters translates ChunkFilter values into SQL WHERE clauses.
// The returned clause includes a leading " AND ..." for each filter.
func buildChunkFilters(filters []vexora.ChunkFilter) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	var clauses []string
	var args []any

	for _, f := range filters {
		switch f.Field {
		case "document_id":
			switch f.Op {
			case vexora.OpIn:
				ids, ok := f.Value.([]string)
				if !ok || len(ids) == 0 {
					continue
				}
				placeholders := make([]string, len(ids))
				for i, id := range ids {
					placeholders[i] = "?"
					args = append(args, id)
				}
				clauses = append(clauses, "c.document_id IN ("+strings.Join(placeholders, ",")+")")
			case vexora.OpEq:
				clauses = append(clauses, "c.document_id = ?")
				args = append(args, f.Value)
			}

		case "level":
			if f.Op != vexora.OpEq {
				continue
			}
			clauses = append(clauses, "c.level = ?")
			args = append(args, f.Value)

		case "path":
			if f.Op != vexora.OpPrefix {
				continue
			}
			prefix, ok := f.Value.(string)
			if !ok {
				continue
			}
			clauses = append(clauses, `c.path LIKE ? ESCAPE '\'`)
			args = append(args, escapeLike(prefix)+"%")
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// HybridSearch fuses brute-force cosine similarity with FTS5 keyword rank
// using relative-score fusion.
func (s *Store) HybridSearch(ctx context.Context, query string, embedding []float32, alpha float32, topK int, filters ...vexora.ChunkFilter) ([]vexora.ScoredChunk, error) {
	start := time.Now()
	s.logger.Debug("sqlite: hybrid search", "query", query, "top_k", topK, "alpha", alpha, "filters", len(filters))

	// Over-fetch each signal so fusion has material to rerank.
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
	s.logger.Debug("sqlite: hybrid search ok",
		"vector", len(vector), "keyword", len(keyword), "returned", len(results),
		"duration", time.Since(start))
	return results, nil
}

// searchVector performs brute-force cosine similarity search over chunks.
func (s *Store) searchVector(ctx context.Context, embedding []float32, topK int, filters []vexora.ChunkFilter) ([]vexora.ScoredChunk, error) {
	whereExtra, filterArgs := buildChunkFilters(filters)

	query := `SELECT ` + chunkColumns + `, c.embedding
		FROM chunks c WHERE c.embedding IS NOT NULL` + whereExtra

	rows, err := s.db.QueryContext(ctx, query, filterArgs...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []vexora.ScoredChunk
	for rows.Next() {
		var c vexora.Chunk
		var embJSON string
		if err := scanChunk(rows, &c, &embJSON); err != nil {
			return nil, err
		}
		stored, err := deserializeEmbedding(embJSON)
		if err != nil {
			continue
		}
		results = append(results, vexora.ScoredChunk{Chunk: c, Score: cosineSimilarity(embedding, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// searchKeyword performs full-text keyword search using SQLite FTS5.
func (s *Store) searchKeyword(ctx context.Context, query string, topK int, filters []vexora.ChunkFilter) ([]vexora.ScoredChunk, error) {
	whereExtra, filterArgs := buildChunkFilters(filters)

	q := `SELECT ` + chunkColumns + `, f.rank
		FROM chunks_fts f
		JOIN chunks c ON c.id = f.chunk_id
		WHERE chunks_fts MATCH ?` + whereExtra + `
		ORDER BY f.rank LIMIT ?`
	args := append([]any{ftsQuery(query)}, filterArgs...)
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var results []vexora.ScoredChunk
	for rows.Next() {
		var c vexora.Chunk
		var rank float64
		if err := scanChunkWithRank(rows, &c, &rank); err != nil {
			return nil, err
		}
		// FTS5 rank is negative (closer to 0 = better). Use -rank as score.
		score := float32(-rank)
		if score < 0 {
			score = 0
		}
		results = append(results, vexora.ScoredChunk{Chunk: c, Score: score})
	}
	return results, rows.Err()
}

// ftsQuery quotes each term so user punctuation cannot break FTS5 syntax.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// GetChunksByPaths returns the chunks whose path matches any of the given
// hierarchy paths.
func (s *Store) GetChunksByPaths(ctx context.Context, paths []string) ([]vexora.Chunk, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	start := time.Now()
	s.logger.Debug("sqlite: get chunks by paths", "count", len(paths))

	placeholders := make([]string, len(paths))
	args := make([]any, len(paths))
	for i, p := range paths {
		placeholders[i] = "?"
		args[i] = p
	}
	query := `SELECT ` + chunkColumns + ` FROM chunks c WHERE c.path IN (` +
		strings.Join(placeholders, ",") + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks by paths: %w", err)
	}
	defer rows.Close()

	var chunks []vexora.Chunk
	for rows.Next() {
		var c vexora.Chunk
		if err := scanChunk(rows, &c, nil); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	s.logger.Debug("sqlite: get chunks by paths ok", "requested", len(paths), "returned", len(chunks), "duration", time.Since(start))
	return chunks, rows.Err()
}

// GetChunksByDocument returns a document's chunks ordered by chunk index.
func (s *Store) GetChunksByDocument(ctx context.Context, documentID string, limit int, filters ...vexora.ChunkFilter) ([]vexora.Chunk, error) {
	start := time.Now()
	s.logger.Debug("sqlite: get chunks by document", "document_id", documentID, "limit", limit)

	whereExtra, filterArgs := buildChunkFilters(filters)
	query := `SELECT ` + chunkColumns + ` FROM chunks c WHERE c.document_id = ?` +
		whereExtra + ` ORDER BY c.chunk_index`
	args := append([]any{documentID}, filterArgs...)
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks by document: %w", err)
	}
	defer rows.Close()

	var chunks []vexora.Chunk
	for rows.Next() {
		var c vexora.Chunk
		if err := scanChunk(rows, &c, nil); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	s.logger.Debug("sqlite: get chunks by document ok", "document_id", documentID, "count", len(chunks), "duration", time.Since(start))
	return chunks, rows.Err()
}

// DeleteDocument removes a document, its chunks, associated FTS entries, and
// the relational mirror rows.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	start := time.Now()
	s.logger.Debug("sqlite: delete document", "id", id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`DELETE FROM chunks_fts WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)`, id)
	if err != nil {
		return fmt.Errorf("delete document fts: %w", err)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM chunk_records WHERE document_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chunk records: %w", err)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("sqlite: delete document commit failed", "id", id, "error", err)
		return err
	}
	s.logger.Debug("sqlite: delete document ok", "id", id, "duration", time.Since(start))
	return nil
}

// --- MetadataStore ---

// StoreChunkRecords upserts relational mirror rows in one transaction.
func (s *Store) StoreChunkRecords(ctx context.Context, records []vexora.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()
	s.logger.Debug("sqlite: store chunk records", "count", len(records))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, r := range records {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO chunk_records (document_id, chunk_id, chunk_index, level, parent_chunk_id, path, method, page_start, page_end, token_count, char_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.DocumentID, r.ChunkID, r.ChunkIndex, r.Level, r.ParentChunkID,
			r.Path, string(r.Method), r.PageStart, r.PageEnd, r.TokenCount, r.CharCount,
		)
		if err != nil {
			return fmt.Errorf("store chunk record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	s.logger.Debug("sqlite: store chunk records ok", "count", len(records), "duration", time.Since(start))
	return nil
}

// ListChunkRecords returns a document's mirror rows ordered by chunk index.
func (s *Store) ListChunkRecords(ctx context.Context, documentID string) ([]vexora.ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, chunk_id, chunk_index, level, parent_chunk_id, path, method, page_start, page_end, token_count, char_count
		 FROM chunk_records WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunk records: %w", err)
	}
	defer rows.Close()

	var records []vexora.ChunkRecord
	for rows.Next() {
		var r vexora.ChunkRecord
		var parentID sql.NullString
		var method string
		if err := rows.Scan(&r.DocumentID, &r.ChunkID, &r.ChunkIndex, &r.Level, &parentID, &r.Path, &method, &r.PageStart, &r.PageEnd, &r.TokenCount, &r.CharCount); err != nil {
			return nil, fmt.Errorf("scan chunk record: %w", err)
		}
		if parentID.Valid {
			r.ParentChunkID = parentID.String
		}
		r.Method = vexora.ChunkingMethod(method)
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteChunkRecords removes a document's mirror rows, returning the count.
func (s *Store) DeleteChunkRecords(ctx context.Context, documentID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunk_records WHERE document_id = ?`, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete chunk records: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.logger.Debug("sqlite: closing store")
	err := s.db.Close()
	if err != nil {
		s.logger.Error("sqlite: close failed", "error", err)
	}
	return err
}

// --- Scanning ---

// scanChunk scans one row in chunkColumns order, optionally followed by an
// embedding column when embJSON is non-nil.
func scanChunk(rows *sql.Rows, c *vexora.Chunk, embJSON *string) error {
	var parentID, metaJSON sql.NullString
	var method string
	dest := []any{&c.ID, &c.DocumentID, &c.Content, &c.CharCount, &c.TokenCount,
		&c.ChunkIndex, &c.TotalChunks, &c.Level, &parentID, &c.Path, &method,
		&c.PageStart, &c.PageEnd, &metaJSON}
	if embJSON != nil {
		dest = append(dest, embJSON)
	}
	if err := rows.Scan(dest...); err != nil {
		return fmt.Errorf("scan chunk: %w", err)
	}
	if parentID.Valid {
		c.ParentChunkID = parentID.String
	}
	c.Method = vexora.ChunkingMethod(method)
	if metaJSON.Valid {
		c.Metadata = &vexora.ChunkMeta{}
		_ = json.Unmarshal([]byte(metaJSON.String), c.Metadata)
	}
	return nil
}

func scanChunkWithRank(rows *sql.Rows, c *vexora.Chunk, rank *float64) error {
	var parentID, metaJSON sql.NullString
	var method string
	if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &c.CharCount, &c.TokenCount,
		&c.ChunkIndex, &c.TotalChunks, &c.Level, &parentID, &c.Path, &method,
		&c.PageStart, &c.PageEnd, &metaJSON, rank); err != nil {
		return fmt.Errorf("scan chunk: %w", err)
	}
	if parentID.Valid {
		c.ParentChunkID = parentID.String
	}
	c.Method = vexora.ChunkingMethod(method)
	if metaJSON.Valid {
		c.Metadata = &vexora.ChunkMeta{}
		_ = json.Unmarshal([]byte(metaJSON.String), c.Metadata)
	}
	return nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// --- Vector math ---

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

// serializeEmbedding converts []float32 to a JSON array string.
func serializeEmbedding(embedding []float32) string {
	data, _ := json.Marshal(embedding)
	return string(data)
}

// deserializeEmbedding parses a JSON array string back to []float32.
func deserializeEmbedding(s string) ([]float32, error) {
	var v []float32
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
