package parser

import (
	"bytes"
	"fmt"
	"strings"

	vexora "github.com/PeterKuehne/vexora"
	"github.com/ledongthuc/pdf"
)

// ParsePDF extracts text page-by-page and emits one paragraph block per
// blank-line-separated run of text, tagged with its page number. Layout-aware
// structure (headings, tables) requires the parser service; local PDF parsing
// is text-only.
func ParsePDF(content []byte, filename string) (ParsedDocument, error) {
	if len(content) == 0 {
		return ParsedDocument{}, &vexora.ErrParse{Filename: filename, Message: "empty PDF content"}
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("open pdf %s: %w", filename, err)
	}

	doc := newParsedDocument(filename)
	doc.Metadata.PageCount = r.NumPage()

	var fullText strings.Builder
	pos := 0
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}

		if fullText.Len() > 0 {
			fullText.WriteString("\n\n")
		}
		fullText.WriteString(pageText)

		for _, para := range strings.Split(pageText, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			doc.Blocks = append(doc.Blocks, vexora.ContentBlock{
				Type:       vexora.BlockParagraph,
				Content:    para,
				PageNumber: i,
				Position:   pos,
			})
			pos++
		}
	}

	if len(doc.Blocks) == 0 {
		return ParsedDocument{}, &vexora.ErrParse{Filename: filename, Message: "no extractable text"}
	}
	doc.FullText = fullText.String()
	return doc, nil
}
