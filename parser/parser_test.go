package parser

import (
	"errors"
	"strings"
	"testing"

	vexora "github.com/PeterKuehne/vexora"
)

func TestParseFileDispatch(t *testing.T) {
	md := []byte("# Title\n\nbody text\n")
	doc, err := ParseFile(md, "notes.MD")
	if err != nil {
		t.Fatalf("ParseFile(.MD): %v", err)
	}
	if doc.Blocks[0].Type != vexora.BlockHeading {
		t.Errorf("block[0].Type = %q", doc.Blocks[0].Type)
	}

	if _, err := ParseFile([]byte("x"), "slides.pptx"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestParseText(t *testing.T) {
	content := "First paragraph spans\ntwo lines.\n\nSecond paragraph.\n\n\n"
	doc, err := ParseFile([]byte(content), "notes.txt")
	if err != nil {
		t.Fatalf("ParseFile(.txt): %v", err)
	}
	if len(doc.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2: %+v", len(doc.Blocks), doc.Blocks)
	}
	for i, b := range doc.Blocks {
		if b.Type != vexora.BlockParagraph {
			t.Errorf("block[%d].Type = %q", i, b.Type)
		}
		if b.Position != i || b.PageNumber != 1 {
			t.Errorf("block[%d] position/page = %d/%d", i, b.Position, b.PageNumber)
		}
	}
	if doc.Blocks[1].Content != "Second paragraph." {
		t.Errorf("block[1].Content = %q", doc.Blocks[1].Content)
	}
	if doc.Metadata.Title != "notes" || doc.Metadata.PageCount != 1 {
		t.Errorf("metadata = %+v", doc.Metadata)
	}
	if !strings.HasPrefix(doc.FullText, "First paragraph") {
		t.Errorf("FullText = %q", doc.FullText)
	}
}

func TestParsePDFEmptyContent(t *testing.T) {
	_, err := ParsePDF(nil, "scan.pdf")
	if err == nil {
		t.Fatal("expected error for empty content")
	}
	var perr *vexora.ErrParse
	if !errors.As(err, &perr) {
		t.Errorf("error type = %T", err)
	}
}

func TestParsedDocumentInput(t *testing.T) {
	doc := ParsedDocument{
		DocumentID: "d1",
		FullText:   "full text",
		Metadata:   vexora.DocumentMeta{Filename: "a.md"},
		Blocks:     []vexora.ContentBlock{{Type: vexora.BlockParagraph, Content: "p"}},
	}
	in := doc.Input()
	if in.DocumentID != "d1" || in.FullText != "full text" || len(in.Blocks) != 1 {
		t.Errorf("Input() = %+v", in)
	}
	if in.Metadata.Filename != "a.md" {
		t.Errorf("metadata = %+v", in.Metadata)
	}
}
