package ingest

import (
	"fmt"
	"strings"

	vexora "github.com/PeterKuehne/vexora"
)

// FixedChunker splits concatenated prose into deterministic word-count
// windows. It needs no embeddings and cannot fail, which makes it the
// fallback half of the hybrid strategy.
type FixedChunker struct {
	cfg chunkerConfig
}

// NewFixedChunker creates a FixedChunker with the given options.
func NewFixedChunker(opts ...ChunkerOption) *FixedChunker {
	cfg := defaultChunkerConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &FixedChunker{cfg: cfg}
}

// taggedWord carries a word together with its source block provenance.
type taggedWord struct {
	text     string
	position int
	page     int
}

// ChunkBlocks splits paragraph, heading and list text into windows of
// chunkSizeWords words, each window advancing by chunkSizeWords −
// overlapWords.
func (fc *FixedChunker) ChunkBlocks(documentID string, blocks []vexora.ContentBlock, parentChunkID, basePath string) []vexora.Chunk {
	var words []taggedWord
	for _, b := range blocks {
		switch b.Type {
		case vexora.BlockParagraph, vexora.BlockHeading, vexora.BlockList:
		default:
			continue
		}
		text := b.Content
		if text == "" && len(b.ListItems) > 0 {
			text = strings.Join(b.ListItems, "\n")
		}
		for _, w := range strings.Fields(text) {
			words = append(words, taggedWord{text: w, position: b.Position, page: b.PageNumber})
		}
	}
	if len(words) == 0 {
		return nil
	}

	size := fc.cfg.chunkSizeWords
	if size <= 0 {
		size = 1
	}
	advance := size - fc.cfg.overlapWords
	if advance < 1 {
		advance = 1
	}

	var chunks []vexora.Chunk
	for start := 0; start < len(words); start += advance {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		window := words[start:end]

		parts := make([]string, len(window))
		positions := make(map[int]bool)
		var posList []int
		pageStart, pageEnd := 0, 0
		for i, w := range window {
			parts[i] = w.text
			if !positions[w.position] {
				positions[w.position] = true
				posList = append(posList, w.position)
			}
			if w.page > 0 {
				if pageStart == 0 || w.page < pageStart {
					pageStart = w.page
				}
				if w.page > pageEnd {
					pageEnd = w.page
				}
			}
		}
		content := strings.Join(parts, " ")

		i := len(chunks)
		chunks = append(chunks, vexora.Chunk{
			ID:            vexora.NewID(),
			DocumentID:    documentID,
			Content:       content,
			CharCount:     len(content),
			TokenCount:    vexora.TokenEstimate(content),
			ChunkIndex:    i,
			Level:         vexora.LevelParagraph,
			ParentChunkID: parentChunkID,
			Path:          fmt.Sprintf("%s/chunk-%d", basePath, i),
			Method:        vexora.MethodFixed,
			PageStart:     pageStart,
			PageEnd:       pageEnd,
			Metadata:      &vexora.ChunkMeta{SourceBlockPositions: posList},
		})

		if end == len(words) {
			break
		}
	}

	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks
}
