package vexora

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeStore is an in-memory ChunkStore returning canned search results.
type fakeStore struct {
	results   []ScoredChunk
	parents   []Chunk
	docChunks map[string][]Chunk

	searchErr error
	parentErr error

	lastQuery   string
	lastAlpha   float32
	lastTopK    int
	lastFilters []ChunkFilter
	deleted     []string
}

func (s *fakeStore) StoreChunks(context.Context, DocumentInfo, []Chunk) error { return nil }

func (s *fakeStore) HybridSearch(_ context.Context, query string, _ []float32, alpha float32, topK int, filters ...ChunkFilter) ([]ScoredChunk, error) {
	s.lastQuery = query
	s.lastAlpha = alpha
	s.lastTopK = topK
	s.lastFilters = filters
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.results, nil
}

func (s *fakeStore) GetChunksByPaths(context.Context, []string) ([]Chunk, error) {
	if s.parentErr != nil {
		return nil, s.parentErr
	}
	return s.parents, nil
}

func (s *fakeStore) GetChunksByDocument(_ context.Context, documentID string, limit int, _ ...ChunkFilter) ([]Chunk, error) {
	chunks := s.docChunks[documentID]
	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

func (s *fakeStore) DeleteDocument(_ context.Context, documentID string) error {
	s.deleted = append(s.deleted, documentID)
	return nil
}

func (s *fakeStore) Init(context.Context) error { return nil }
func (s *fakeStore) Close() error               { return nil }

type fakeEmbedding struct {
	err error
}

func (f *fakeEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (f *fakeEmbedding) Dimensions() int { return 2 }
func (f *fakeEmbedding) Name() string    { return "fake" }

type fakeMetaStore struct {
	deleted []string
	err     error
}

func (m *fakeMetaStore) StoreChunkRecords(context.Context, []ChunkRecord) error { return nil }
func (m *fakeMetaStore) ListChunkRecords(context.Context, string) ([]ChunkRecord, error) {
	return nil, nil
}
func (m *fakeMetaStore) DeleteChunkRecords(_ context.Context, documentID string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.deleted = append(m.deleted, documentID)
	return 1, nil
}

func resultChunk(id, path string, level int, score float32) ScoredChunk {
	return ScoredChunk{
		Chunk: Chunk{ID: id, DocumentID: "doc-1", Path: path, Level: level, Content: "content of " + id},
		Score: score,
	}
}

func TestSearchDefaults(t *testing.T) {
	store := &fakeStore{results: []ScoredChunk{
		resultChunk("a", "doc/section-0/chunk-0", LevelParagraph, 0.9),
	}}
	h := NewHybridRetriever(store, &fakeEmbedding{})

	resp, err := h.Search(context.Background(), SearchRequest{Query: "growth"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if store.lastAlpha != DefaultAlpha {
		t.Errorf("alpha = %v, want %v", store.lastAlpha, DefaultAlpha)
	}
	if store.lastTopK != DefaultLimit {
		t.Errorf("topK = %d, want %d", store.lastTopK, DefaultLimit)
	}
	if resp.Query != "growth" || resp.TotalResults != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSearchRequestOverrides(t *testing.T) {
	store := &fakeStore{}
	h := NewHybridRetriever(store, &fakeEmbedding{},
		WithDefaultAlpha(0.5), WithDefaultLimit(3))

	alpha := float32(0.8)
	level := LevelParagraph
	_, err := h.Search(context.Background(), SearchRequest{
		Query:              "q",
		Limit:              7,
		Alpha:              &alpha,
		AllowedDocumentIDs: []string{"doc-1", "doc-2"},
		LevelFilter:        &level,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if store.lastAlpha != 0.8 {
		t.Errorf("alpha = %v, want 0.8", store.lastAlpha)
	}
	if store.lastTopK != 7 {
		t.Errorf("topK = %d, want 7", store.lastTopK)
	}
	if len(store.lastFilters) != 2 {
		t.Fatalf("got %d filters, want 2", len(store.lastFilters))
	}
	if store.lastFilters[0].Field != "document_id" || store.lastFilters[0].Op != OpIn {
		t.Errorf("filter[0] = %+v", store.lastFilters[0])
	}
	if store.lastFilters[1].Field != "level" || store.lastFilters[1].Op != OpEq {
		t.Errorf("filter[1] = %+v", store.lastFilters[1])
	}
}

func TestSearchThresholdAndLimit(t *testing.T) {
	store := &fakeStore{results: []ScoredChunk{
		resultChunk("a", "doc/chunk-0", LevelParagraph, 0.9),
		resultChunk("b", "doc/chunk-1", LevelParagraph, 0.6),
		resultChunk("c", "doc/chunk-2", LevelParagraph, 0.2),
	}}
	h := NewHybridRetriever(store, &fakeEmbedding{})

	resp, err := h.Search(context.Background(), SearchRequest{
		Query: "q", Limit: 1, Threshold: 0.5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "a" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchEmbedFailure(t *testing.T) {
	h := NewHybridRetriever(&fakeStore{}, &fakeEmbedding{err: errors.New("quota")})
	if _, err := h.Search(context.Background(), SearchRequest{Query: "q"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearchStoreFailure(t *testing.T) {
	store := &fakeStore{searchErr: errors.New("connection refused")}
	h := NewHybridRetriever(store, &fakeEmbedding{})
	if _, err := h.Search(context.Background(), SearchRequest{Query: "q"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearchParentContext(t *testing.T) {
	longSummary := strings.Repeat("s", 300)
	store := &fakeStore{
		results: []ScoredChunk{
			resultChunk("a", "doc/section-0/chunk-0", LevelParagraph, 0.9),
			resultChunk("sec", "doc/section-1", LevelSection, 0.8),
		},
		parents: []Chunk{
			{ID: "p", DocumentID: "doc-1", Path: "doc/section-0", Level: LevelSection, Content: longSummary},
		},
	}
	h := NewHybridRetriever(store, &fakeEmbedding{})

	resp, err := h.Search(context.Background(), SearchRequest{
		Query: "q", IncludeParentContext: true,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Over-fetch headroom for the context pass.
	if store.lastTopK != DefaultLimit*2 {
		t.Errorf("topK = %d, want %d", store.lastTopK, DefaultLimit*2)
	}

	got := resp.Results[0].Content
	wantPrefix := "[Section Context: " + strings.Repeat("s", 200) + "]\n\n"
	if !strings.HasPrefix(got, wantPrefix) {
		t.Errorf("content = %q", got[:min(len(got), 240)])
	}
	if !strings.HasSuffix(got, "content of a") {
		t.Errorf("original content lost: %q", got)
	}
	// Non-paragraph results pass through untouched.
	if resp.Results[1].Content != "content of sec" {
		t.Errorf("section result modified: %q", resp.Results[1].Content)
	}
}

func TestSearchParentContextMatchesDocument(t *testing.T) {
	// Hierarchy paths repeat across documents. A result must only ever get
	// the section summary from its own document, whatever order the store
	// returns matching parents in.
	store := &fakeStore{
		results: []ScoredChunk{
			resultChunk("a", "doc/section-0/chunk-0", LevelParagraph, 0.9),
		},
		parents: []Chunk{
			{ID: "pa", DocumentID: "doc-1", Path: "doc/section-0", Level: LevelSection, Content: "summary of doc-1"},
			{ID: "pb", DocumentID: "doc-2", Path: "doc/section-0", Level: LevelSection, Content: "summary of doc-2"},
		},
	}
	h := NewHybridRetriever(store, &fakeEmbedding{})

	resp, err := h.Search(context.Background(), SearchRequest{
		Query: "q", IncludeParentContext: true,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := "[Section Context: summary of doc-1]\n\ncontent of a"
	if resp.Results[0].Content != want {
		t.Errorf("content = %q, want %q", resp.Results[0].Content, want)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		s    string
		max  int
		want string
	}{
		{"short stays whole", "abc", 10, "abc"},
		{"ascii cut", "abcdef", 3, "abc"},
		{"no mid-rune cut", "aé", 2, "a"}, // é is 2 bytes starting at offset 1
		{"cjk boundary", "日本語", 7, "日本"},
		{"exact rune edge", "日本語", 6, "日本"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateRunes(tt.s, tt.max); got != tt.want {
				t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.s, tt.max, got, tt.want)
			}
		})
	}
}

func TestSearchParentContextFetchFailureDegrades(t *testing.T) {
	store := &fakeStore{
		results: []ScoredChunk{
			resultChunk("a", "doc/section-0/chunk-0", LevelParagraph, 0.9),
		},
		parentErr: errors.New("timeout"),
	}
	h := NewHybridRetriever(store, &fakeEmbedding{})
	resp, err := h.Search(context.Background(), SearchRequest{
		Query: "q", IncludeParentContext: true,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Results[0].Content != "content of a" {
		t.Errorf("content = %q", resp.Results[0].Content)
	}
}

func TestParentPath(t *testing.T) {
	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"doc/section-0/chunk-3", "doc/section-0", true},
		{"doc/chunk-1", "doc", true},
		{"doc", "", false},
		{"", "", false},
		{"/chunk", "", false},
	}
	for _, tt := range tests {
		got, ok := ParentPath(tt.path)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParentPath(%q) = %q, %v, want %q, %v", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestGetChunksByDocumentIDs(t *testing.T) {
	store := &fakeStore{docChunks: map[string][]Chunk{
		"doc-b": {
			{ID: "b1", DocumentID: "doc-b", ChunkIndex: 1},
			{ID: "b0", DocumentID: "doc-b", ChunkIndex: 0},
		},
		"doc-a": {
			{ID: "a0", DocumentID: "doc-a", ChunkIndex: 0},
		},
	}}
	h := NewHybridRetriever(store, &fakeEmbedding{})

	got, err := h.GetChunksByDocumentIDs(context.Background(), []string{"doc-b", "doc-a"}, ExpandOptions{})
	if err != nil {
		t.Fatalf("GetChunksByDocumentIDs: %v", err)
	}
	wantIDs := []string{"a0", "b0", "b1"}
	if len(got) != len(wantIDs) {
		t.Fatalf("len = %d, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, id)
		}
		if got[i].Score != 1.0 {
			t.Errorf("got[%d].Score = %v, want 1.0", i, got[i].Score)
		}
	}
}

func TestGetChunksByDocumentIDsPerDocCap(t *testing.T) {
	store := &fakeStore{docChunks: map[string][]Chunk{
		"doc-a": {
			{ID: "a0", DocumentID: "doc-a", ChunkIndex: 0},
			{ID: "a1", DocumentID: "doc-a", ChunkIndex: 1},
			{ID: "a2", DocumentID: "doc-a", ChunkIndex: 2},
		},
	}}
	h := NewHybridRetriever(store, &fakeEmbedding{})
	got, err := h.GetChunksByDocumentIDs(context.Background(), []string{"doc-a"},
		ExpandOptions{PerDocumentCap: 2})
	if err != nil {
		t.Fatalf("GetChunksByDocumentIDs: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestDeleteDocumentCascadesToMetadataStore(t *testing.T) {
	store := &fakeStore{}
	meta := &fakeMetaStore{}
	h := NewHybridRetriever(store, &fakeEmbedding{}, WithMetadataStore(meta))

	if err := h.DeleteDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "doc-1" {
		t.Errorf("store deletions = %v", store.deleted)
	}
	if len(meta.deleted) != 1 || meta.deleted[0] != "doc-1" {
		t.Errorf("mirror deletions = %v", meta.deleted)
	}
}

func TestDeleteDocumentMirrorFailureIsNonFatal(t *testing.T) {
	store := &fakeStore{}
	meta := &fakeMetaStore{err: errors.New("table locked")}
	h := NewHybridRetriever(store, &fakeEmbedding{}, WithMetadataStore(meta))
	if err := h.DeleteDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("mirror failure must not fail deletion: %v", err)
	}
}

func TestRecordFromChunk(t *testing.T) {
	c := Chunk{
		ID: "c1", DocumentID: "d1", ChunkIndex: 4, Level: LevelParagraph,
		ParentChunkID: "p1", Path: "doc/section-0/chunk-4",
		Method: MethodSemantic, PageStart: 2, PageEnd: 3,
		TokenCount: 50, CharCount: 200,
	}
	r := RecordFromChunk(c)
	if r.ChunkID != "c1" || r.DocumentID != "d1" || r.ChunkIndex != 4 {
		t.Errorf("record = %+v", r)
	}
	if r.Path != c.Path || r.Method != MethodSemantic || r.PageEnd != 3 {
		t.Errorf("record = %+v", r)
	}
}
