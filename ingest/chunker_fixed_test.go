package ingest

import (
	"strings"
	"testing"

	vexora "github.com/PeterKuehne/vexora"
)

func TestFixedChunkerWindows(t *testing.T) {
	blocks := []vexora.ContentBlock{
		{Type: vexora.BlockParagraph, Content: "w1 w2 w3 w4 w5 w6 w7 w8 w9 w10", Position: 0, PageNumber: 1},
	}
	fc := NewFixedChunker(WithChunkSizeWords(4), WithOverlapWords(1))
	chunks := fc.ChunkBlocks("doc-1", blocks, "", "doc")

	// 10 words, window 4, advance 3: [0:4], [3:7], [6:10].
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	wantContents := []string{
		"w1 w2 w3 w4",
		"w4 w5 w6 w7",
		"w7 w8 w9 w10",
	}
	for i, want := range wantContents {
		c := chunks[i]
		if c.Content != want {
			t.Errorf("chunk[%d].Content = %q, want %q", i, c.Content, want)
		}
		if c.ChunkIndex != i {
			t.Errorf("chunk[%d].ChunkIndex = %d", i, c.ChunkIndex)
		}
		if c.TotalChunks != 3 {
			t.Errorf("chunk[%d].TotalChunks = %d, want 3", i, c.TotalChunks)
		}
		if c.Method != vexora.MethodFixed {
			t.Errorf("chunk[%d].Method = %q", i, c.Method)
		}
		if c.Level != vexora.LevelParagraph {
			t.Errorf("chunk[%d].Level = %d", i, c.Level)
		}
		if want := "doc/chunk-" + string(rune('0'+i)); c.Path != want {
			t.Errorf("chunk[%d].Path = %q, want %q", i, c.Path, want)
		}
		if c.DocumentID != "doc-1" {
			t.Errorf("chunk[%d].DocumentID = %q", i, c.DocumentID)
		}
		if c.CharCount != len(c.Content) {
			t.Errorf("chunk[%d].CharCount = %d, want %d", i, c.CharCount, len(c.Content))
		}
	}
}

func TestFixedChunkerNoOverlapExactFit(t *testing.T) {
	blocks := []vexora.ContentBlock{
		{Type: vexora.BlockParagraph, Content: "a b c d e f", Position: 0},
	}
	chunks := NewFixedChunker(WithChunkSizeWords(3), WithOverlapWords(0)).
		ChunkBlocks("d", blocks, "", "doc")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Content != "a b c" || chunks[1].Content != "d e f" {
		t.Errorf("contents = %q, %q", chunks[0].Content, chunks[1].Content)
	}
}

func TestFixedChunkerProvenance(t *testing.T) {
	blocks := []vexora.ContentBlock{
		{Type: vexora.BlockHeading, Content: "Results Overview", Position: 0, PageNumber: 2, HeadingLevel: 1},
		{Type: vexora.BlockParagraph, Content: "measurement data follows", Position: 1, PageNumber: 3},
		{Type: vexora.BlockTable, Content: "| skip | me |", Position: 2, PageNumber: 3},
		{Type: vexora.BlockList, ListItems: []string{"alpha", "beta"}, Position: 3, PageNumber: 4},
	}
	chunks := NewFixedChunker(WithChunkSizeWords(100), WithOverlapWords(0)).
		ChunkBlocks("d", blocks, "parent-1", "doc")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.ParentChunkID != "parent-1" {
		t.Errorf("ParentChunkID = %q", c.ParentChunkID)
	}
	if !strings.Contains(c.Content, "alpha") {
		t.Errorf("list items missing from content: %q", c.Content)
	}
	if strings.Contains(c.Content, "skip") {
		t.Errorf("table content leaked into chunk: %q", c.Content)
	}
	wantPos := []int{0, 1, 3}
	got := c.Metadata.SourceBlockPositions
	if len(got) != len(wantPos) {
		t.Fatalf("SourceBlockPositions = %v, want %v", got, wantPos)
	}
	for i := range wantPos {
		if got[i] != wantPos[i] {
			t.Errorf("SourceBlockPositions[%d] = %d, want %d", i, got[i], wantPos[i])
		}
	}
	if c.PageStart != 2 || c.PageEnd != 4 {
		t.Errorf("page range = %d-%d, want 2-4", c.PageStart, c.PageEnd)
	}
}

func TestFixedChunkerEmptyInput(t *testing.T) {
	if chunks := NewFixedChunker().ChunkBlocks("d", nil, "", "doc"); chunks != nil {
		t.Errorf("got %d chunks, want none", len(chunks))
	}
}

func TestFixedChunkerOverlapAtLeastOneAdvance(t *testing.T) {
	blocks := []vexora.ContentBlock{
		{Type: vexora.BlockParagraph, Content: "x1 x2 x3 x4", Position: 0},
	}
	// Overlap >= window size would never advance; the chunker clamps to 1.
	chunks := NewFixedChunker(WithChunkSizeWords(2), WithOverlapWords(5)).
		ChunkBlocks("d", blocks, "", "doc")
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[2].Content != "x3 x4" {
		t.Errorf("last chunk = %q, want %q", chunks[2].Content, "x3 x4")
	}
}
