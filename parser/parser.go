// Package parser turns raw document bytes into the position-ordered content
// blocks the ingest pipeline consumes. Markdown and PDF are parsed locally;
// everything else goes through the parser microservice via Client.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	vexora "github.com/PeterKuehne/vexora"
)

// ParsedDocument is the block-level representation of one parsed file.
type ParsedDocument struct {
	DocumentID string                `json:"documentId"`
	Metadata   vexora.DocumentMeta   `json:"metadata"`
	Blocks     []vexora.ContentBlock `json:"blocks"`
	FullText   string                `json:"fullText"`
}

// Input converts a parsed document into pipeline input.
func (d ParsedDocument) Input() vexora.ChunkingInput {
	return vexora.ChunkingInput{
		DocumentID: d.DocumentID,
		Blocks:     d.Blocks,
		FullText:   d.FullText,
		Metadata:   d.Metadata,
	}
}

// ParseFile parses content locally based on the filename extension.
// Supported: .md, .markdown, .txt, .pdf.
func ParseFile(content []byte, filename string) (ParsedDocument, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return ParseMarkdown(content, filename)
	case ".txt":
		return parseText(content, filename), nil
	case ".pdf":
		return ParsePDF(content, filename)
	}
	return ParsedDocument{}, fmt.Errorf("parse %s: unsupported extension (use the parser service for this format)", filename)
}

// parseText wraps plain text as paragraph blocks split on blank lines.
func parseText(content []byte, filename string) ParsedDocument {
	doc := newParsedDocument(filename)
	pos := 0
	for _, para := range strings.Split(string(content), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		doc.Blocks = append(doc.Blocks, vexora.ContentBlock{
			Type:       vexora.BlockParagraph,
			Content:    para,
			PageNumber: 1,
			Position:   pos,
		})
		pos++
	}
	doc.FullText = strings.TrimSpace(string(content))
	doc.Metadata.PageCount = 1
	return doc
}

func newParsedDocument(filename string) ParsedDocument {
	base := filepath.Base(filename)
	return ParsedDocument{
		DocumentID: vexora.NewID(),
		Metadata: vexora.DocumentMeta{
			Filename:     base,
			OriginalName: base,
			Title:        strings.TrimSuffix(base, filepath.Ext(base)),
		},
	}
}
