package ingest

import (
	"fmt"
	"strings"
	"testing"

	vexora "github.com/PeterKuehne/vexora"
)

func inventoryTable() *vexora.TableStructure {
	return &vexora.TableStructure{
		Rows:      3,
		Cols:      2,
		Headers:   []string{"Name", "Qty"},
		HasHeader: true,
		Cells: []vexora.TableCell{
			{Content: "Name", Row: 0, Col: 0, IsHeader: true},
			{Content: "Qty", Row: 0, Col: 1, IsHeader: true},
			{Content: "bolts", Row: 1, Col: 0},
			{Content: "40", Row: 1, Col: 1},
			{Content: "nuts", Row: 2, Col: 0},
			{Content: "25", Row: 2, Col: 1},
		},
	}
}

func TestRenderTableMarkdown(t *testing.T) {
	got := RenderTableMarkdown(*inventoryTable())
	want := "| Name | Qty |\n| --- | --- |\n| bolts | 40 |\n| nuts | 25 |"
	if got != want {
		t.Errorf("RenderTableMarkdown =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderTableMarkdownEscapesPipes(t *testing.T) {
	table := vexora.TableStructure{
		Rows: 1, Cols: 1,
		Cells: []vexora.TableCell{{Content: "a|b", Row: 0, Col: 0}},
	}
	got := RenderTableMarkdown(table)
	if !strings.Contains(got, `a\|b`) {
		t.Errorf("pipe not escaped: %q", got)
	}
}

func TestRenderTableMarkdownHeadersFromCells(t *testing.T) {
	table := vexora.TableStructure{
		Rows: 2, Cols: 1, HasHeader: true,
		Cells: []vexora.TableCell{
			{Content: "Col", Row: 0, Col: 0, IsHeader: true},
			{Content: "val", Row: 1, Col: 0},
		},
	}
	got := RenderTableMarkdown(table)
	want := "| Col |\n| --- |\n| val |"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTableChunkerSingleChunkWithCaption(t *testing.T) {
	blocks := []vexora.ContentBlock{
		{Type: vexora.BlockParagraph, Content: "The table below lists inventory counts for the quarter.", Position: 0, PageNumber: 3},
		{Type: vexora.BlockTable, Table: inventoryTable(), Position: 1, PageNumber: 3},
	}
	tc := NewTableChunker()
	chunks := tc.ChunkTables("doc-1", blocks, "parent-1", "doc")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.Path != "doc/table-0" {
		t.Errorf("Path = %q", c.Path)
	}
	if c.TableIndex != 0 {
		t.Errorf("TableIndex = %d", c.TableIndex)
	}
	if c.Caption != "The table below lists inventory counts for the quarter." {
		t.Errorf("Caption = %q", c.Caption)
	}
	if !strings.HasPrefix(c.Content, c.Caption+"\n\n| Name | Qty |") {
		t.Errorf("Content = %q", c.Content)
	}
	if c.Method != vexora.MethodTable || c.Level != vexora.LevelParagraph {
		t.Errorf("Method = %q, Level = %d", c.Method, c.Level)
	}
	if c.ParentChunkID != "parent-1" {
		t.Errorf("ParentChunkID = %q", c.ParentChunkID)
	}
	if c.PageStart != 3 || c.PageEnd != 3 {
		t.Errorf("page range = %d-%d", c.PageStart, c.PageEnd)
	}
	if c.Metadata == nil || len(c.Metadata.SourceBlockPositions) != 1 || c.Metadata.SourceBlockPositions[0] != 1 {
		t.Errorf("SourceBlockPositions = %+v", c.Metadata)
	}
}

func TestTableChunkerCaptionBlockWins(t *testing.T) {
	blocks := []vexora.ContentBlock{
		{Type: vexora.BlockParagraph, Content: "Earlier discussion of the data goes here.", Position: 0},
		{Type: vexora.BlockCaption, Content: "Table 1: Quarterly inventory.", Position: 1},
		{Type: vexora.BlockTable, Table: inventoryTable(), Position: 2},
	}
	chunks := NewTableChunker().ChunkTables("doc-1", blocks, "", "doc")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Caption != "Table 1: Quarterly inventory." {
		t.Errorf("Caption = %q", chunks[0].Caption)
	}
}

func TestTableChunkerContextAfterTable(t *testing.T) {
	blocks := []vexora.ContentBlock{
		{Type: vexora.BlockTable, Table: inventoryTable(), Position: 0},
		{Type: vexora.BlockParagraph, Content: "The counts above exclude returns. Returns are tracked separately.", Position: 1},
	}
	chunks := NewTableChunker().ChunkTables("doc-1", blocks, "", "doc")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	want := "The counts above exclude returns. Returns are tracked separately."
	if chunks[0].Caption != want {
		t.Errorf("Caption = %q, want %q", chunks[0].Caption, want)
	}
}

func TestTableChunkerSplitsOversizedTable(t *testing.T) {
	table := &vexora.TableStructure{
		Rows: 5, Cols: 1,
		Headers:   []string{"H"},
		HasHeader: true,
		Cells: []vexora.TableCell{
			{Content: "H", Row: 0, Col: 0, IsHeader: true},
			{Content: "r1", Row: 1, Col: 0},
			{Content: "r2", Row: 2, Col: 0},
			{Content: "r3", Row: 3, Col: 0},
			{Content: "r4", Row: 4, Col: 0},
		},
	}
	blocks := []vexora.ContentBlock{
		{Type: vexora.BlockParagraph, Content: "All measurements were taken at room temperature.", Position: 0},
		{Type: vexora.BlockTable, Table: table, Position: 1},
	}
	tc := NewTableChunker(WithMaxTableSize(28))
	chunks := tc.ChunkTables("doc-1", blocks, "", "doc")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}

	if chunks[0].Path != "doc/table-0-part-0" || chunks[1].Path != "doc/table-0-part-1" {
		t.Errorf("paths = %q, %q", chunks[0].Path, chunks[1].Path)
	}
	for i, c := range chunks {
		if c.TableIndex != 0 {
			t.Errorf("chunk[%d].TableIndex = %d, want 0", i, c.TableIndex)
		}
		if c.ChunkIndex != i || c.TotalChunks != 2 {
			t.Errorf("chunk[%d] index/total = %d/%d", i, c.ChunkIndex, c.TotalChunks)
		}
		if !c.Table.HasHeader || len(c.Table.Headers) != 1 {
			t.Errorf("chunk[%d] lost its header", i)
		}
	}

	// Each part renders as a standalone table with the shared header.
	if want := "| H |\n| --- |\n| r1 |\n| r2 |"; chunks[0].Table.Markdown != want {
		t.Errorf("part 0 markdown = %q, want %q", chunks[0].Table.Markdown, want)
	}
	if want := "| H |\n| --- |\n| r3 |\n| r4 |"; chunks[1].Table.Markdown != want {
		t.Errorf("part 1 markdown = %q, want %q", chunks[1].Table.Markdown, want)
	}

	// Cell rows are renumbered relative to each part.
	for _, c := range chunks[1].Table.Cells {
		if c.IsHeader {
			if c.Row != 0 {
				t.Errorf("header cell row = %d", c.Row)
			}
			continue
		}
		if c.Row != 1 && c.Row != 2 {
			t.Errorf("data cell row = %d, want 1 or 2", c.Row)
		}
	}

	// Context is attached to the first part only.
	if chunks[0].Caption == "" {
		t.Error("first part missing caption")
	}
	if chunks[1].Caption != "" {
		t.Errorf("second part has caption %q", chunks[1].Caption)
	}
	if !strings.HasPrefix(chunks[0].Content, "All measurements") {
		t.Errorf("part 0 content = %q", chunks[0].Content)
	}
	if strings.HasPrefix(chunks[1].Content, "All measurements") {
		t.Errorf("caption leaked into part 1: %q", chunks[1].Content)
	}
}

func TestTableChunkerOversizedTableAlwaysSplits(t *testing.T) {
	// Markdown barely over the limit: the floored average row size would
	// let one group hold every data row, which must not collapse the split.
	cells := make([]vexora.TableCell, 10)
	for i := range cells {
		cells[i] = vexora.TableCell{Content: fmt.Sprintf("cell-%d", i), Row: i, Col: 0}
	}
	table := &vexora.TableStructure{Rows: 10, Cols: 1, Cells: cells}
	blocks := []vexora.ContentBlock{
		{Type: vexora.BlockTable, Table: table, Position: 0},
	}

	markdown := RenderTableMarkdown(*table)
	limit := len(markdown) - 1
	chunks := NewTableChunker(WithMaxTableSize(limit)).ChunkTables("doc-1", blocks, "", "doc")
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks for a table %d bytes over the limit, want >= 2", len(chunks), len(markdown)-limit)
	}
	if chunks[0].Path != "doc/table-0-part-0" {
		t.Errorf("first part path = %q", chunks[0].Path)
	}
	var rows int
	for _, c := range chunks {
		rows += c.Table.Rows
	}
	if rows != 10 {
		t.Errorf("parts cover %d rows, want 10", rows)
	}
}

func TestTableChunkerMultipleTables(t *testing.T) {
	blocks := []vexora.ContentBlock{
		{Type: vexora.BlockTable, Table: inventoryTable(), Position: 0},
		{Type: vexora.BlockParagraph, Content: "Narrative text separates the two tables in this document.", Position: 1},
		{Type: vexora.BlockTable, Table: inventoryTable(), Position: 2},
	}
	chunks := NewTableChunker().ChunkTables("doc-1", blocks, "", "doc")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].TableIndex != 0 || chunks[1].TableIndex != 1 {
		t.Errorf("table indexes = %d, %d", chunks[0].TableIndex, chunks[1].TableIndex)
	}
	if chunks[0].Path != "doc/table-0" || chunks[1].Path != "doc/table-1" {
		t.Errorf("paths = %q, %q", chunks[0].Path, chunks[1].Path)
	}
}

func TestTableChunkerIgnoresNonTables(t *testing.T) {
	blocks := []vexora.ContentBlock{
		{Type: vexora.BlockParagraph, Content: "No tables anywhere in this document at all.", Position: 0},
		{Type: vexora.BlockTable, Position: 1}, // nil Table pointer
	}
	if chunks := NewTableChunker().ChunkTables("doc-1", blocks, "", "doc"); len(chunks) != 0 {
		t.Errorf("got %d chunks, want 0", len(chunks))
	}
}
