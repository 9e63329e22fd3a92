package ingest

import (
	"context"
	"log/slog"

	vexora "github.com/PeterKuehne/vexora"
)

// EmbedFunc embeds texts into vectors. Matches the EmbeddingProvider.Embed
// method signature so provider.Embed can be passed directly.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// ChunkerOption configures the chunkers and the hierarchical indexer.
type ChunkerOption func(*chunkerConfig)

type chunkerConfig struct {
	maxChunkSize         int
	minChunkSize         int
	overlapSize          int
	breakpointPercentile int

	chunkSizeWords int
	overlapWords   int

	maxTableSize      int
	contextWindowSize int

	sectionHeadingLevels []int
	maxSummaryLength     int
	createDocChunk       bool
	createSectionChunks  bool

	logger *slog.Logger
}

func defaultChunkerConfig() chunkerConfig {
	return chunkerConfig{
		maxChunkSize:         2000,
		minChunkSize:         100,
		overlapSize:          200,
		breakpointPercentile: 20,
		chunkSizeWords:       300,
		overlapWords:         50,
		maxTableSize:         2000,
		contextWindowSize:    3,
		sectionHeadingLevels: []int{1, 2},
		maxSummaryLength:     500,
		createDocChunk:       true,
		createSectionChunks:  true,
		logger:               vexora.NopLogger(),
	}
}

// WithMaxChunkSize sets the maximum chunk size in characters.
func WithMaxChunkSize(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.maxChunkSize = n }
}

// WithMinChunkSize sets the size below which a chunk is merged into its
// predecessor when the merge fits.
func WithMinChunkSize(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.minChunkSize = n }
}

// WithOverlapSize sets the inter-chunk overlap in characters. Overlap is
// recorded as chunk metadata, not duplicated into content.
func WithOverlapSize(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.overlapSize = n }
}

// WithBreakpointPercentile sets the similarity percentile below which an
// adjacent sentence pair becomes a breakpoint. Default 20: the lowest fifth
// of similarities split.
func WithBreakpointPercentile(p int) ChunkerOption {
	return func(c *chunkerConfig) { c.breakpointPercentile = p }
}

// WithChunkSizeWords sets the fixed-strategy window size in words.
func WithChunkSizeWords(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.chunkSizeWords = n }
}

// WithOverlapWords sets the fixed-strategy window overlap in words.
func WithOverlapWords(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.overlapWords = n }
}

// WithMaxTableSize sets the rendered-markdown size above which a table is
// split by rows.
func WithMaxTableSize(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.maxTableSize = n }
}

// WithContextWindowSize sets how many sentences of surrounding text are
// attached to a table chunk.
func WithContextWindowSize(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.contextWindowSize = n }
}

// WithSectionHeadingLevels sets which heading levels start a new section.
func WithSectionHeadingLevels(levels ...int) ChunkerOption {
	return func(c *chunkerConfig) { c.sectionHeadingLevels = levels }
}

// WithMaxSummaryLength sets the extractive summary length in characters.
func WithMaxSummaryLength(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.maxSummaryLength = n }
}

// WithDocChunk toggles synthesis of the level-0 document chunk.
func WithDocChunk(enabled bool) ChunkerOption {
	return func(c *chunkerConfig) { c.createDocChunk = enabled }
}

// WithSectionChunks toggles synthesis of level-1 section chunks.
func WithSectionChunks(enabled bool) ChunkerOption {
	return func(c *chunkerConfig) { c.createSectionChunks = enabled }
}

// WithLogger sets a structured logger. Default: discard.
func WithLogger(l *slog.Logger) ChunkerOption {
	return func(c *chunkerConfig) { c.logger = l }
}
