package parser

import (
	"strings"
	"testing"

	vexora "github.com/PeterKuehne/vexora"
)

const sampleMarkdown = `# Annual Report

Revenue grew steadily across all regions.

## Breakdown

- north region
- south region

` + "```go\nfmt.Println(\"hi\")\n```" + `

| Region | Total |
| ------ | ----- |
| North  | 120   |
| South  | 80    |
`

func TestParseMarkdown(t *testing.T) {
	doc, err := ParseMarkdown([]byte(sampleMarkdown), "report.md")
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}

	if doc.DocumentID == "" {
		t.Error("missing document id")
	}
	if doc.Metadata.Filename != "report.md" || doc.Metadata.Title != "report" {
		t.Errorf("metadata = %+v", doc.Metadata)
	}
	if doc.Metadata.PageCount != 1 {
		t.Errorf("PageCount = %d", doc.Metadata.PageCount)
	}

	wantTypes := []vexora.BlockType{
		vexora.BlockHeading,
		vexora.BlockParagraph,
		vexora.BlockHeading,
		vexora.BlockList,
		vexora.BlockCode,
		vexora.BlockTable,
	}
	if len(doc.Blocks) != len(wantTypes) {
		t.Fatalf("got %d blocks, want %d: %+v", len(doc.Blocks), len(wantTypes), doc.Blocks)
	}
	for i, want := range wantTypes {
		b := doc.Blocks[i]
		if b.Type != want {
			t.Errorf("block[%d].Type = %q, want %q", i, b.Type, want)
		}
		if b.Position != i {
			t.Errorf("block[%d].Position = %d", i, b.Position)
		}
		if b.PageNumber != 1 {
			t.Errorf("block[%d].PageNumber = %d", i, b.PageNumber)
		}
	}

	h := doc.Blocks[0]
	if h.Content != "Annual Report" || h.HeadingLevel != 1 {
		t.Errorf("heading = %q level %d", h.Content, h.HeadingLevel)
	}
	if doc.Blocks[2].HeadingLevel != 2 {
		t.Errorf("second heading level = %d", doc.Blocks[2].HeadingLevel)
	}

	list := doc.Blocks[3]
	if len(list.ListItems) != 2 || list.ListItems[0] != "north region" {
		t.Errorf("list items = %v", list.ListItems)
	}
	if list.ListType != "unordered" {
		t.Errorf("list type = %q", list.ListType)
	}

	code := doc.Blocks[4]
	if code.CodeLanguage != "go" || !strings.Contains(code.Content, "Println") {
		t.Errorf("code block = %+v", code)
	}

	if !strings.Contains(doc.FullText, "Revenue grew steadily") {
		t.Errorf("FullText = %q", doc.FullText)
	}
	if strings.Contains(doc.FullText, "Println") {
		t.Error("code leaked into FullText")
	}
}

func TestParseMarkdownTable(t *testing.T) {
	doc, err := ParseMarkdown([]byte(sampleMarkdown), "report.md")
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}
	var table *vexora.TableStructure
	for _, b := range doc.Blocks {
		if b.Type == vexora.BlockTable {
			table = b.Table
			break
		}
	}
	if table == nil {
		t.Fatal("no table block")
	}
	if !table.HasHeader {
		t.Error("HasHeader = false")
	}
	if table.Rows != 3 || table.Cols != 2 {
		t.Errorf("dimensions = %dx%d, want 3x2", table.Rows, table.Cols)
	}
	if len(table.Headers) != 2 || table.Headers[0] != "Region" || table.Headers[1] != "Total" {
		t.Errorf("headers = %v", table.Headers)
	}
	if len(table.Cells) != 6 {
		t.Fatalf("got %d cells, want 6", len(table.Cells))
	}
	if c := table.Cells[2]; c.Content != "North" || c.Row != 1 || c.Col != 0 || c.IsHeader {
		t.Errorf("cell[2] = %+v", c)
	}
	if !strings.HasPrefix(table.Markdown, "| Region | Total |") {
		t.Errorf("markdown = %q", table.Markdown)
	}
}

func TestParseMarkdownOrderedList(t *testing.T) {
	doc, err := ParseMarkdown([]byte("1. first step\n2. second step\n"), "steps.md")
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}
	if len(doc.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(doc.Blocks))
	}
	b := doc.Blocks[0]
	if b.Type != vexora.BlockList || b.ListType != "ordered" {
		t.Errorf("block = %+v", b)
	}
	if len(b.ListItems) != 2 || b.ListItems[1] != "second step" {
		t.Errorf("items = %v", b.ListItems)
	}
}

func TestParseMarkdownEmpty(t *testing.T) {
	doc, err := ParseMarkdown(nil, "empty.md")
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}
	if len(doc.Blocks) != 0 {
		t.Errorf("got %d blocks, want 0", len(doc.Blocks))
	}
}
