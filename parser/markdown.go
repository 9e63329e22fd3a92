package parser

import (
	"bytes"
	"strings"

	vexora "github.com/PeterKuehne/vexora"
	"github.com/PeterKuehne/vexora/ingest"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// ParseMarkdown parses markdown into content blocks using the goldmark AST.
// GFM pipe tables become table blocks with full cell structure; headings,
// paragraphs, lists, and fenced code map to their block types. Markdown has
// no pagination, so every block reports page 1.
func ParseMarkdown(content []byte, filename string) (ParsedDocument, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	root := md.Parser().Parse(text.NewReader(content))

	doc := newParsedDocument(filename)
	doc.Metadata.PageCount = 1

	var fullText []string
	pos := 0
	add := func(b vexora.ContentBlock) {
		b.PageNumber = 1
		b.Position = pos
		pos++
		doc.Blocks = append(doc.Blocks, b)
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := inlineText(node, content)
			if title == "" {
				continue
			}
			add(vexora.ContentBlock{
				Type:         vexora.BlockHeading,
				Content:      title,
				HeadingLevel: node.Level,
			})
			fullText = append(fullText, title)

		case *ast.List:
			items := listItems(node, content)
			if len(items) == 0 {
				continue
			}
			listType := "unordered"
			if node.IsOrdered() {
				listType = "ordered"
			}
			add(vexora.ContentBlock{
				Type:      vexora.BlockList,
				Content:   strings.Join(items, "\n"),
				ListType:  listType,
				ListItems: items,
			})
			fullText = append(fullText, strings.Join(items, "\n"))

		case *ast.FencedCodeBlock:
			code := blockLines(node, content)
			if code == "" {
				continue
			}
			add(vexora.ContentBlock{
				Type:         vexora.BlockCode,
				Content:      code,
				CodeLanguage: string(node.Language(content)),
			})

		case *east.Table:
			table := parseTable(node, content)
			add(vexora.ContentBlock{
				Type:  vexora.BlockTable,
				Table: &table,
			})

		default:
			t := blockLines(n, content)
			if t == "" {
				t = inlineText(n, content)
			}
			if t == "" {
				continue
			}
			add(vexora.ContentBlock{
				Type:    vexora.BlockParagraph,
				Content: t,
			})
			fullText = append(fullText, t)
		}
	}

	doc.FullText = strings.Join(fullText, "\n\n")
	return doc, nil
}

// parseTable converts a GFM table node into a TableStructure, regenerating
// normalized markdown from the cell grid.
func parseTable(t *east.Table, src []byte) vexora.TableStructure {
	table := vexora.TableStructure{HasHeader: false}

	row := 0
	for r := t.FirstChild(); r != nil; r = r.NextSibling() {
		isHeader := false
		if _, ok := r.(*east.TableHeader); ok {
			isHeader = true
			table.HasHeader = true
		}
		col := 0
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			cellText := inlineText(c, src)
			if isHeader {
				table.Headers = append(table.Headers, cellText)
			}
			table.Cells = append(table.Cells, vexora.TableCell{
				Content:  cellText,
				Row:      row,
				Col:      col,
				RowSpan:  1,
				ColSpan:  1,
				IsHeader: isHeader,
			})
			col++
		}
		if col > table.Cols {
			table.Cols = col
		}
		row++
	}
	table.Rows = row
	table.Markdown = ingest.RenderTableMarkdown(table)
	return table
}

func listItems(list *ast.List, src []byte) []string {
	var items []string
	for li := list.FirstChild(); li != nil; li = li.NextSibling() {
		var parts []string
		for c := li.FirstChild(); c != nil; c = c.NextSibling() {
			if t := blockLines(c, src); t != "" {
				parts = append(parts, t)
			} else if t := inlineText(c, src); t != "" {
				parts = append(parts, t)
			}
		}
		if item := strings.TrimSpace(strings.Join(parts, " ")); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// blockLines reads a block node's raw source lines.
func blockLines(n ast.Node, src []byte) string {
	if n.Type() != ast.TypeBlock {
		return ""
	}
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return strings.TrimSpace(buf.String())
}

// inlineText collects the text of a node's inline children.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(inlineText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
