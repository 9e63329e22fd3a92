package ingest

import (
	"fmt"
	"strings"

	vexora "github.com/PeterKuehne/vexora"
)

// HierarchicalIndexer builds the document/section/paragraph hierarchy on top
// of already-produced content chunks. It synthesizes a document-level summary
// chunk and one summary chunk per heading-delimited section, then reparents
// the content chunks under the section covering their source blocks.
type HierarchicalIndexer struct {
	cfg chunkerConfig
}

// NewHierarchicalIndexer creates an indexer with the given options.
func NewHierarchicalIndexer(opts ...ChunkerOption) *HierarchicalIndexer {
	cfg := defaultChunkerConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &HierarchicalIndexer{cfg: cfg}
}

// HierarchyResult is the output of CreateHierarchy. UpdatedChunks carries the
// input chunks with parent IDs and paths rewritten; the caller is responsible
// for the final document-wide index renumbering.
type HierarchyResult struct {
	DocChunk      *vexora.Chunk
	SectionChunks []vexora.Chunk
	Hierarchy     *vexora.ChunkHierarchyNode
	UpdatedChunks []vexora.Chunk
}

// section is a heading-delimited span of block positions.
type section struct {
	title    string
	headPos  int
	startPos int
	endPos   int
	pageFrom int
	pageTo   int
}

// CreateHierarchy detects sections from heading blocks, synthesizes summary
// chunks for the document and each section, and assigns each content chunk a
// parent by its recorded source-block positions. Chunks covered by no section
// stay parented to the document chunk.
func (hi *HierarchicalIndexer) CreateHierarchy(documentID string, blocks []vexora.ContentBlock, chunks []vexora.Chunk, title string) HierarchyResult {
	res := HierarchyResult{UpdatedChunks: chunks}

	// ParentChunkID for sections and orphans; empty when no document chunk
	// is stored. The tree still gets a root so callers can walk it: a
	// synthetic id stands in for the missing document chunk.
	var parentID string
	if hi.cfg.createDocChunk {
		docText := joinBlockText(blocks)
		summary := extractiveSummary(docText, hi.cfg.maxSummaryLength)
		if title != "" {
			summary = title + "\n\n" + summary
		}
		doc := vexora.Chunk{
			ID:         vexora.NewID(),
			DocumentID: documentID,
			Content:    summary,
			CharCount:  len(summary),
			TokenCount: vexora.TokenEstimate(summary),
			Level:      vexora.LevelDocument,
			Path:       "doc",
			Method:     vexora.MethodHybrid,
			PageStart:  pageOf(blocks, 0),
			PageEnd:    pageOf(blocks, len(blocks)-1),
		}
		res.DocChunk = &doc
		res.Hierarchy = &vexora.ChunkHierarchyNode{ChunkID: doc.ID, Level: vexora.LevelDocument}
		parentID = doc.ID
	} else {
		res.Hierarchy = &vexora.ChunkHierarchyNode{ChunkID: vexora.NewID(), Level: vexora.LevelDocument}
	}

	var sections []section
	if hi.cfg.createSectionChunks {
		sections = hi.detectSections(blocks)
	}

	sectionNodes := make([]*vexora.ChunkHierarchyNode, len(sections))
	for i, sec := range sections {
		text := joinBlockRange(blocks, sec.startPos, sec.endPos)
		content := sec.title + "\n\n" + extractiveSummary(text, hi.cfg.maxSummaryLength)
		sc := vexora.Chunk{
			ID:            vexora.NewID(),
			DocumentID:    documentID,
			Content:       content,
			CharCount:     len(content),
			TokenCount:    vexora.TokenEstimate(content),
			Level:         vexora.LevelSection,
			ParentChunkID: parentID,
			Path:          fmt.Sprintf("doc/section-%d", i),
			Method:        vexora.MethodHybrid,
			PageStart:     sec.pageFrom,
			PageEnd:       sec.pageTo,
			Metadata: &vexora.ChunkMeta{
				SourceBlockPositions: []int{sec.headPos},
			},
		}
		res.SectionChunks = append(res.SectionChunks, sc)
		sectionNodes[i] = res.Hierarchy.AddChild(sc.ID, vexora.LevelSection)
	}

	for ci := range res.UpdatedChunks {
		c := &res.UpdatedChunks[ci]
		c.Level = vexora.LevelParagraph
		last := lastPathSegment(c.Path)

		si := sectionForChunk(sections, c)
		if si < 0 {
			c.ParentChunkID = parentID
			c.Path = "doc/" + last
			res.Hierarchy.AddChild(c.ID, vexora.LevelParagraph)
			continue
		}
		c.ParentChunkID = res.SectionChunks[si].ID
		c.Path = fmt.Sprintf("doc/section-%d/%s", si, last)
		sectionNodes[si].AddChild(c.ID, vexora.LevelParagraph)
	}
	return res
}

// detectSections returns heading-delimited spans for headings whose level is
// in sectionHeadingLevels. A section runs from its heading block to the block
// before the next qualifying heading.
func (hi *HierarchicalIndexer) detectSections(blocks []vexora.ContentBlock) []section {
	levels := make(map[int]bool, len(hi.cfg.sectionHeadingLevels))
	for _, l := range hi.cfg.sectionHeadingLevels {
		levels[l] = true
	}

	var sections []section
	for i, b := range blocks {
		if b.Type != vexora.BlockHeading || !levels[b.HeadingLevel] {
			continue
		}
		if n := len(sections); n > 0 {
			sections[n-1].endPos = b.Position - 1
			sections[n-1].pageTo = pageOf(blocks, i-1)
		}
		sections = append(sections, section{
			title:    strings.TrimSpace(b.Content),
			headPos:  b.Position,
			startPos: b.Position,
			endPos:   blocks[len(blocks)-1].Position,
			pageFrom: b.PageNumber,
			pageTo:   pageOf(blocks, len(blocks)-1),
		})
	}
	return sections
}

// sectionForChunk finds the first section covering any of the chunk's
// recorded source-block positions. A chunk straddling a section boundary
// belongs to the earliest section it touches.
func sectionForChunk(sections []section, c *vexora.Chunk) int {
	if c.Metadata == nil {
		return -1
	}
	for _, pos := range c.Metadata.SourceBlockPositions {
		if i := sectionFor(sections, pos); i >= 0 {
			return i
		}
	}
	return -1
}

func sectionFor(sections []section, pos int) int {
	if pos < 0 {
		return -1
	}
	for i, s := range sections {
		if pos >= s.startPos && pos <= s.endPos {
			return i
		}
	}
	return -1
}

func firstSourcePos(c *vexora.Chunk) int {
	if c.Metadata == nil || len(c.Metadata.SourceBlockPositions) == 0 {
		return -1
	}
	return c.Metadata.SourceBlockPositions[0]
}

func lastPathSegment(path string) string {
	if path == "" {
		return "chunk-0"
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func pageOf(blocks []vexora.ContentBlock, i int) int {
	if i < 0 || i >= len(blocks) {
		return 0
	}
	return blocks[i].PageNumber
}

func joinBlockText(blocks []vexora.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if t := blockText(b); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

func joinBlockRange(blocks []vexora.ContentBlock, startPos, endPos int) string {
	var parts []string
	for _, b := range blocks {
		if b.Position < startPos || b.Position > endPos {
			continue
		}
		if t := blockText(b); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

func blockText(b vexora.ContentBlock) string {
	switch b.Type {
	case vexora.BlockTable, vexora.BlockImage, vexora.BlockCode:
		return ""
	case vexora.BlockList:
		if b.Content == "" && len(b.ListItems) > 0 {
			return strings.Join(b.ListItems, "\n")
		}
	}
	return strings.TrimSpace(b.Content)
}

// extractiveSummary truncates text to maxLen, preferring a sentence boundary
// past the halfway point, then a word boundary past 80%, then a hard cut.
// Truncation other than at a sentence boundary appends an ellipsis.
func extractiveSummary(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxLen {
		return text
	}

	window := text[:maxLen]
	if cut := lastSentenceEnd(window); cut > maxLen/2 {
		return strings.TrimSpace(window[:cut])
	}
	if cut := strings.LastIndexAny(window, " \t\n"); cut > maxLen*4/5 {
		return strings.TrimSpace(window[:cut]) + "..."
	}
	return strings.TrimSpace(window) + "..."
}

func lastSentenceEnd(s string) int {
	for i := len(s) - 1; i > 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			if i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\n' {
				return i + 1
			}
		}
	}
	return -1
}
