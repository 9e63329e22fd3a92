package ingest

import (
	"fmt"
	"strings"

	vexora "github.com/PeterKuehne/vexora"
)

// TableChunker extracts table blocks into independent chunks with
// surrounding-text context, splitting oversized tables by rows.
type TableChunker struct {
	cfg chunkerConfig
}

// NewTableChunker creates a TableChunker with the given options.
func NewTableChunker(opts ...ChunkerOption) *TableChunker {
	cfg := defaultChunkerConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &TableChunker{cfg: cfg}
}

// ChunkTables emits one or more chunks per table block. A table whose
// rendered markdown fits maxTableSize becomes a single chunk; larger tables
// are partitioned into consecutive row groups, each rendered as a standalone
// table sharing the source headers. The row-group size is an estimate from
// the average row size — a best-effort bound, not a hard guarantee.
func (tc *TableChunker) ChunkTables(documentID string, blocks []vexora.ContentBlock, parentChunkID, basePath string) []vexora.TableChunk {
	var out []vexora.TableChunk
	tableIndex := 0
	for i, b := range blocks {
		if b.Type != vexora.BlockTable || b.Table == nil {
			continue
		}
		out = append(out, tc.chunkOne(documentID, blocks, i, tableIndex, parentChunkID, basePath)...)
		tableIndex++
	}
	total := len(out)
	for i := range out {
		out[i].ChunkIndex = i
		out[i].TotalChunks = total
	}
	return out
}

func (tc *TableChunker) chunkOne(documentID string, blocks []vexora.ContentBlock, blockIdx, tableIndex int, parentChunkID, basePath string) []vexora.TableChunk {
	block := blocks[blockIdx]
	table := *block.Table

	markdown := table.Markdown
	if markdown == "" {
		markdown = RenderTableMarkdown(table)
		table.Markdown = markdown
	}
	caption := tc.gatherContext(blocks, blockIdx)

	newChunk := func(content string, t vexora.TableStructure, path, capText string) vexora.TableChunk {
		return vexora.TableChunk{
			Chunk: vexora.Chunk{
				ID:            vexora.NewID(),
				DocumentID:    documentID,
				Content:       content,
				CharCount:     len(content),
				TokenCount:    vexora.TokenEstimate(content),
				Level:         vexora.LevelParagraph,
				ParentChunkID: parentChunkID,
				Path:          path,
				Method:        vexora.MethodTable,
				PageStart:     block.PageNumber,
				PageEnd:       block.PageNumber,
				Metadata: &vexora.ChunkMeta{
					SourceBlockPositions: []int{block.Position},
					Caption:              capText,
				},
			},
			Table:      t,
			Caption:    capText,
			TableIndex: tableIndex,
		}
	}

	if len(markdown) <= tc.cfg.maxTableSize {
		content := markdown
		if caption != "" {
			content = caption + "\n\n" + markdown
		}
		path := fmt.Sprintf("%s/table-%d", basePath, tableIndex)
		return []vexora.TableChunk{newChunk(content, table, path, caption)}
	}

	return tc.splitByRows(table, caption, tableIndex, basePath, newChunk)
}

// splitByRows partitions a table's data rows into consecutive groups sized
// by the average row length, renumbers cell rows per group, and regenerates
// markdown per group. Only the first part carries the surrounding context.
func (tc *TableChunker) splitByRows(table vexora.TableStructure, caption string, tableIndex int, basePath string, newChunk func(string, vexora.TableStructure, string, string) vexora.TableChunk) []vexora.TableChunk {
	headerRows := 0
	if table.HasHeader {
		headerRows = 1
	}
	dataRows := table.Rows - headerRows
	if dataRows < 1 {
		dataRows = 1
	}

	headerOverhead := headerMarkdownLen(table)
	avgRowSize := (len(table.Markdown) - headerOverhead) / dataRows
	if avgRowSize < 1 {
		avgRowSize = 1
	}
	rowsPerChunk := (tc.cfg.maxTableSize - headerOverhead) / avgRowSize
	if rowsPerChunk < 1 {
		rowsPerChunk = 1
	}
	// The average floors low enough that one group could swallow every data
	// row; an oversized table must still split into at least two parts.
	if rowsPerChunk >= dataRows && dataRows > 1 {
		rowsPerChunk = dataRows - 1
	}

	// Bucket cells by source row, keeping header cells aside.
	cellsByRow := make(map[int][]vexora.TableCell)
	var headerCells []vexora.TableCell
	for _, c := range table.Cells {
		if table.HasHeader && c.Row == 0 {
			headerCells = append(headerCells, c)
			continue
		}
		cellsByRow[c.Row] = append(cellsByRow[c.Row], c)
	}

	var out []vexora.TableChunk
	part := 0
	for start := headerRows; start < table.Rows; start += rowsPerChunk {
		end := start + rowsPerChunk
		if end > table.Rows {
			end = table.Rows
		}

		sub := vexora.TableStructure{
			Rows:      (end - start) + headerRows,
			Cols:      table.Cols,
			Headers:   table.Headers,
			HasHeader: table.HasHeader,
		}
		sub.Cells = append(sub.Cells, headerCells...)
		for srcRow := start; srcRow < end; srcRow++ {
			for _, c := range cellsByRow[srcRow] {
				c.Row = headerRows + (srcRow - start)
				sub.Cells = append(sub.Cells, c)
			}
		}
		sub.Markdown = RenderTableMarkdown(sub)

		content := sub.Markdown
		capText := ""
		if part == 0 && caption != "" {
			capText = caption
			content = caption + "\n\n" + sub.Markdown
		}
		path := fmt.Sprintf("%s/table-%d-part-%d", basePath, tableIndex, part)
		out = append(out, newChunk(content, sub, path, capText))
		part++
	}
	return out
}

// gatherContext collects up to contextWindowSize sentences of text around a
// table block, scanning 3 blocks back and 2 forward. An adjacent caption
// block wins over a nearby paragraph.
func (tc *TableChunker) gatherContext(blocks []vexora.ContentBlock, idx int) string {
	n := tc.cfg.contextWindowSize

	var before string
	for off := 1; off <= 3 && idx-off >= 0; off++ {
		b := blocks[idx-off]
		if off == 1 && b.Type == vexora.BlockCaption {
			before = strings.TrimSpace(b.Content)
			break
		}
		if b.Type == vexora.BlockParagraph || b.Type == vexora.BlockCaption {
			before = lastSentences(b.Content, n)
			break
		}
	}

	var after string
	for off := 1; off <= 2 && idx+off < len(blocks); off++ {
		b := blocks[idx+off]
		if b.Type == vexora.BlockParagraph || b.Type == vexora.BlockCaption {
			after = firstSentences(b.Content, n)
			break
		}
	}

	switch {
	case before != "" && after != "":
		return before + "\n" + after
	case before != "":
		return before
	default:
		return after
	}
}

func lastSentences(text string, n int) string {
	sents := splitSentences(text)
	if len(sents) > n {
		sents = sents[len(sents)-n:]
	}
	return strings.Join(sents, " ")
}

func firstSentences(text string, n int) string {
	sents := splitSentences(text)
	if len(sents) > n {
		sents = sents[:n]
	}
	return strings.Join(sents, " ")
}

// headerMarkdownLen estimates the bytes the header and separator rows
// contribute to a table's markdown rendering.
func headerMarkdownLen(table vexora.TableStructure) int {
	if !table.HasHeader || len(table.Headers) == 0 {
		return 0
	}
	n := 1 // leading pipe
	for _, h := range table.Headers {
		n += len(h) + 3 // " h |"
	}
	n++ // newline
	n += len(table.Headers)*5 + 2 // "| --- " per column, closing pipe, newline
	return n
}

// RenderTableMarkdown renders a TableStructure as a GitHub-style markdown
// table. Cell content is read from the row/col-addressed cells; missing
// cells render empty.
func RenderTableMarkdown(table vexora.TableStructure) string {
	if table.Cols == 0 {
		return ""
	}

	grid := make(map[[2]int]string, len(table.Cells))
	for _, c := range table.Cells {
		grid[[2]int{c.Row, c.Col}] = c.Content
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for _, c := range cells {
			sb.WriteString(" ")
			sb.WriteString(strings.ReplaceAll(c, "|", "\\|"))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	headers := table.Headers
	if len(headers) == 0 && table.HasHeader {
		headers = make([]string, table.Cols)
		for col := 0; col < table.Cols; col++ {
			headers[col] = grid[[2]int{0, col}]
		}
	}

	startRow := 0
	if table.HasHeader {
		startRow = 1
	}
	if len(headers) > 0 {
		writeRow(headers)
		sb.WriteString("|")
		for range headers {
			sb.WriteString(" --- |")
		}
		sb.WriteString("\n")
	}

	for row := startRow; row < table.Rows; row++ {
		cells := make([]string, table.Cols)
		for col := 0; col < table.Cols; col++ {
			cells[col] = grid[[2]int{row, col}]
		}
		writeRow(cells)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
