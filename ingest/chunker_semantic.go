package ingest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	vexora "github.com/PeterKuehne/vexora"
)

// neutralSimilarity is assumed for any sentence pair where an embedding is
// missing. It sits above typical breakpoint thresholds, so degraded pairs
// never split — the chunker degrades toward fewer, larger chunks instead of
// failing.
const neutralSimilarity = 0.5

// SemanticChunker groups sentences into paragraph-level chunks using
// embedding similarity breakpoints: adjacent sentences whose cosine
// similarity falls below the configured percentile of all adjacent
// similarities become chunk boundaries.
type SemanticChunker struct {
	embed EmbedFunc
	cfg   chunkerConfig
}

// NewSemanticChunker creates a SemanticChunker. The embed function is called
// once per ChunkBlocks call with all sentences batched. Pass
// provider.Embed directly — the signature matches EmbedFunc.
func NewSemanticChunker(embed EmbedFunc, opts ...ChunkerOption) *SemanticChunker {
	cfg := defaultChunkerConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &SemanticChunker{embed: embed, cfg: cfg}
}

// ChunkBlocks splits the text content of blocks into level-2 chunks at
// semantic boundaries. Table, image and code blocks are ignored. Documents
// of three or fewer sentences skip the embedding call entirely.
func (sc *SemanticChunker) ChunkBlocks(ctx context.Context, documentID string, blocks []vexora.ContentBlock, parentChunkID, basePath string) ([]vexora.Chunk, error) {
	sentences := ExtractSentences(blocks)
	if len(sentences) == 0 {
		return nil, nil
	}

	if len(sentences) <= 3 {
		group := sentenceGroup{sentences: sentences}
		return sc.finalize(documentID, []sentenceGroup{group}, parentChunkID, basePath), nil
	}

	similarities := sc.adjacentSimilarities(ctx, sentences)
	threshold := percentileOf(similarities, sc.cfg.breakpointPercentile)

	groups := groupAtBreakpoints(sentences, similarities, threshold)
	groups = sc.enforceSize(groups)

	return sc.finalize(documentID, groups, parentChunkID, basePath), nil
}

// adjacentSimilarities embeds all sentences in one batched call and returns
// the cosine similarity of each adjacent pair. Embedding failures — total or
// per-sentence — degrade the affected pairs to neutralSimilarity rather than
// propagating an error.
func (sc *SemanticChunker) adjacentSimilarities(ctx context.Context, sentences []Sentence) []float32 {
	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Text
	}

	sims := make([]float32, len(sentences)-1)
	embeddings, err := sc.embed(ctx, texts)
	if err != nil || len(embeddings) != len(sentences) {
		if err != nil {
			sc.cfg.logger.Warn("sentence embedding failed, using neutral similarities", "err", err)
		} else {
			sc.cfg.logger.Warn("embedding count mismatch, using neutral similarities",
				"want", len(sentences), "got", len(embeddings))
		}
		for i := range sims {
			sims[i] = neutralSimilarity
		}
		return sims
	}

	for i := 0; i < len(sentences)-1; i++ {
		a, b := embeddings[i], embeddings[i+1]
		if len(a) == 0 || len(b) == 0 {
			sims[i] = neutralSimilarity
			continue
		}
		sims[i] = cosineSim(a, b)
	}
	return sims
}

// sentenceGroup is a run of consecutive sentences forming one candidate
// chunk.
type sentenceGroup struct {
	sentences []Sentence
}

func (g sentenceGroup) text() string {
	parts := make([]string, len(g.sentences))
	for i, s := range g.sentences {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

func (g sentenceGroup) charLen() int {
	n := 0
	for i, s := range g.sentences {
		if i > 0 {
			n++
		}
		n += len(s.Text)
	}
	return n
}

// groupAtBreakpoints splits the sentence sequence after every pair whose
// similarity is strictly below threshold.
func groupAtBreakpoints(sentences []Sentence, similarities []float32, threshold float32) []sentenceGroup {
	var groups []sentenceGroup
	var current []Sentence
	for i, s := range sentences {
		current = append(current, s)
		if i < len(similarities) && similarities[i] < threshold {
			groups = append(groups, sentenceGroup{sentences: current})
			current = nil
		}
	}
	if len(current) > 0 {
		groups = append(groups, sentenceGroup{sentences: current})
	}
	return groups
}

// enforceSize re-splits groups above maxChunkSize sentence-by-sentence and
// merges groups below minChunkSize into their predecessor when the merge
// still fits.
func (sc *SemanticChunker) enforceSize(groups []sentenceGroup) []sentenceGroup {
	var sized []sentenceGroup
	for _, g := range groups {
		if g.charLen() <= sc.cfg.maxChunkSize {
			sized = append(sized, g)
			continue
		}
		sized = append(sized, splitGreedy(g, sc.cfg.maxChunkSize)...)
	}

	var merged []sentenceGroup
	for _, g := range sized {
		if len(merged) > 0 && g.charLen() < sc.cfg.minChunkSize {
			prev := &merged[len(merged)-1]
			if prev.charLen()+1+g.charLen() <= sc.cfg.maxChunkSize {
				prev.sentences = append(prev.sentences, g.sentences...)
				continue
			}
		}
		merged = append(merged, g)
	}
	return merged
}

// splitGreedy packs sentences into sub-groups of at most maxSize characters.
// A single sentence longer than maxSize stays whole — sentence boundaries
// are never broken here.
func splitGreedy(g sentenceGroup, maxSize int) []sentenceGroup {
	var out []sentenceGroup
	var current []Sentence
	currentLen := 0
	for _, s := range g.sentences {
		needed := len(s.Text)
		if len(current) > 0 {
			needed += currentLen + 1
		}
		if len(current) > 0 && needed > maxSize {
			out = append(out, sentenceGroup{sentences: current})
			current = nil
			currentLen = 0
		}
		if len(current) > 0 {
			currentLen++
		}
		current = append(current, s)
		currentLen += len(s.Text)
	}
	if len(current) > 0 {
		out = append(out, sentenceGroup{sentences: current})
	}
	return out
}

// finalize materializes groups into chunks: ids, ordering, hierarchy path,
// provenance, and overlap metadata.
func (sc *SemanticChunker) finalize(documentID string, groups []sentenceGroup, parentChunkID, basePath string) []vexora.Chunk {
	chunks := make([]vexora.Chunk, 0, len(groups))
	for i, g := range groups {
		content := g.text()
		meta := &vexora.ChunkMeta{SourceBlockPositions: blockPositions(g.sentences)}
		pageStart, pageEnd := pageRange(g.sentences)

		chunks = append(chunks, vexora.Chunk{
			ID:            vexora.NewID(),
			DocumentID:    documentID,
			Content:       content,
			CharCount:     len(content),
			TokenCount:    vexora.TokenEstimate(content),
			ChunkIndex:    i,
			TotalChunks:   len(groups),
			Level:         vexora.LevelParagraph,
			ParentChunkID: parentChunkID,
			Path:          fmt.Sprintf("%s/chunk-%d", basePath, i),
			Method:        vexora.MethodSemantic,
			PageStart:     pageStart,
			PageEnd:       pageEnd,
			Metadata:      meta,
		})
	}

	applyOverlap(chunks, sc.cfg.overlapSize)
	return chunks
}

// applyOverlap records up to overlapSize characters of adjacent-chunk text
// as metadata on each side of every boundary, trimmed to word boundaries.
func applyOverlap(chunks []vexora.Chunk, overlapSize int) {
	if overlapSize <= 0 {
		return
	}
	for i := 1; i < len(chunks); i++ {
		prefix := overlapTail(chunks[i-1].Content, overlapSize)
		suffix := overlapHead(chunks[i].Content, overlapSize)
		if prefix != "" {
			chunks[i].Metadata.OverlapPrefix = prefix
		}
		if suffix != "" {
			chunks[i-1].Metadata.OverlapSuffix = suffix
		}
	}
}

// overlapTail returns up to n trailing characters of text, trimmed forward
// to the nearest word boundary so no word is cut in half.
func overlapTail(text string, n int) string {
	if len(text) <= n {
		return text
	}
	suffix := text[len(text)-n:]
	if idx := strings.IndexByte(suffix, ' '); idx >= 0 {
		return strings.TrimSpace(suffix[idx+1:])
	}
	return strings.TrimSpace(suffix)
}

// overlapHead returns up to n leading characters of text, trimmed back to
// the nearest word boundary.
func overlapHead(text string, n int) string {
	if len(text) <= n {
		return text
	}
	prefix := text[:n]
	if idx := strings.LastIndexByte(prefix, ' '); idx >= 0 {
		return strings.TrimSpace(prefix[:idx])
	}
	return strings.TrimSpace(prefix)
}

func blockPositions(sentences []Sentence) []int {
	seen := make(map[int]bool)
	var out []int
	for _, s := range sentences {
		if !seen[s.BlockPosition] {
			seen[s.BlockPosition] = true
			out = append(out, s.BlockPosition)
		}
	}
	return out
}

func pageRange(sentences []Sentence) (int, int) {
	start, end := 0, 0
	for _, s := range sentences {
		if s.PageNumber == 0 {
			continue
		}
		if start == 0 || s.PageNumber < start {
			start = s.PageNumber
		}
		if s.PageNumber > end {
			end = s.PageNumber
		}
	}
	return start, end
}

// cosineSim computes cosine similarity between two vectors, 0 when either
// norm is 0 or the lengths differ.
func cosineSim(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

// percentileOf computes the Nth percentile of a float32 slice with linear
// interpolation.
func percentileOf(values []float32, percentile int) float32 {
	if len(values) == 0 {
		return 0
	}
	percentile = max(0, min(percentile, 100))
	sorted := make([]float32, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := float64(percentile) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := float32(idx - float64(lower))
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
