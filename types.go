package vexora

// --- Chunk hierarchy levels ---

const (
	// LevelDocument is the synthesized document-summary chunk.
	LevelDocument = 0
	// LevelSection is a synthesized section-summary chunk.
	LevelSection = 1
	// LevelParagraph is a paragraph or table chunk produced from content.
	LevelParagraph = 2
)

// ChunkingMethod records how a chunk's boundaries were determined.
type ChunkingMethod string

const (
	MethodSemantic ChunkingMethod = "semantic"
	MethodFixed    ChunkingMethod = "fixed"
	MethodTable    ChunkingMethod = "table"
	MethodHybrid   ChunkingMethod = "hybrid"
)

// Chunk is the atomic retrieval unit. Chunks are immutable once handed to
// the retrieval layer; the pipeline sets ParentChunkID and Path exactly once
// during hierarchy assignment.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`

	Content    string `json:"content"`
	CharCount  int    `json:"char_count"`
	TokenCount int    `json:"token_count"`

	// ChunkIndex is 0-based and unique within a document. TotalChunks is the
	// count of all chunks produced for the document, identical on every chunk.
	ChunkIndex  int `json:"chunk_index"`
	TotalChunks int `json:"total_chunks"`

	// Level 0 = document, 1 = section, 2 = paragraph/table. ParentChunkID
	// references a chunk at Level-1, or is empty for roots. Path is the
	// slash-delimited hierarchy address, e.g. "doc/section-2/chunk-5".
	Level         int    `json:"level"`
	ParentChunkID string `json:"parent_chunk_id,omitempty"`
	Path          string `json:"path"`

	Method    ChunkingMethod `json:"chunking_method"`
	PageStart int            `json:"page_start,omitempty"`
	PageEnd   int            `json:"page_end,omitempty"`

	Embedding []float32  `json:"-"`
	Metadata  *ChunkMeta `json:"metadata,omitempty"`
}

// ChunkMeta holds auxiliary facts about a chunk that are not part of the
// core schema.
type ChunkMeta struct {
	// SourceBlockPositions are the content-block positions this chunk's text
	// came from. The hierarchical indexer matches these against section
	// block ranges when assigning parents.
	SourceBlockPositions []int `json:"source_block_positions,omitempty"`

	// OverlapPrefix/OverlapSuffix carry inter-chunk overlap text. Overlap is
	// stored here rather than duplicated into Content so embedding cost stays
	// linear in true content.
	OverlapPrefix string `json:"overlap_prefix,omitempty"`
	OverlapSuffix string `json:"overlap_suffix,omitempty"`

	// OriginalContent preserves the pre-enrichment content when contextual
	// enrichment rewrites Content. Enriched is set alongside it.
	OriginalContent string `json:"original_content,omitempty"`
	Enriched        bool   `json:"enriched,omitempty"`

	// Caption is the surrounding-text context attached to a table chunk.
	Caption string `json:"caption,omitempty"`
}

// TokenEstimate approximates the token count of text as len/4, rounded up.
func TokenEstimate(text string) int {
	return (len(text) + 3) / 4
}

// --- Tables ---

// TableCell is a single cell in a parsed table.
type TableCell struct {
	Content  string `json:"content"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	RowSpan  int    `json:"row_span,omitempty"`
	ColSpan  int    `json:"col_span,omitempty"`
	IsHeader bool   `json:"is_header,omitempty"`
}

// TableStructure is the structured form of a parsed table block.
type TableStructure struct {
	Rows      int         `json:"rows"`
	Cols      int         `json:"cols"`
	Headers   []string    `json:"headers"`
	Cells     []TableCell `json:"cells"`
	Markdown  string      `json:"markdown"`
	HasHeader bool        `json:"has_header"`
}

// TableChunk is a Chunk carrying the structured table it was built from.
// TableIndex identifies the logical source table; a table split into parts
// yields several TableChunks sharing one TableIndex.
type TableChunk struct {
	Chunk
	Table      TableStructure `json:"table"`
	Caption    string         `json:"caption,omitempty"`
	TableIndex int            `json:"table_index"`
}

// --- Content blocks (parser output) ---

// BlockType identifies the kind of a parsed content block.
type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockList      BlockType = "list"
	BlockTable     BlockType = "table"
	BlockImage     BlockType = "image"
	BlockCode      BlockType = "code"
	BlockCaption   BlockType = "caption"
)

// ContentBlock is one ordered unit of parsed document content, as produced
// by the document parser.
type ContentBlock struct {
	Type         BlockType       `json:"type"`
	Content      string          `json:"content"`
	Position     int             `json:"position"`
	PageNumber   int             `json:"pageNumber,omitempty"`
	HeadingLevel int             `json:"headingLevel,omitempty"`
	ListType     string          `json:"listType,omitempty"` // "ordered" or "unordered"
	ListItems    []string        `json:"listItems,omitempty"`
	Table        *TableStructure `json:"table,omitempty"`
	CodeLanguage string          `json:"codeLanguage,omitempty"`
}

// --- Hierarchy ---

// ChunkHierarchyNode is a tree node in the document→section→paragraph
// structure, rooted at the document chunk (or a synthetic root id when no
// document chunk exists).
type ChunkHierarchyNode struct {
	ChunkID  string                `json:"chunk_id"`
	Level    int                   `json:"level"`
	Children []*ChunkHierarchyNode `json:"children,omitempty"`
}

// AddChild appends a child node and returns it.
func (n *ChunkHierarchyNode) AddChild(chunkID string, level int) *ChunkHierarchyNode {
	child := &ChunkHierarchyNode{ChunkID: chunkID, Level: level}
	n.Children = append(n.Children, child)
	return child
}

// --- Pipeline input/output ---

// DocumentMeta describes the source document being chunked.
type DocumentMeta struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name,omitempty"`
	Title        string `json:"title,omitempty"`
	PageCount    int    `json:"page_count,omitempty"`
}

// ChunkingInput is the full input to one pipeline run.
type ChunkingInput struct {
	DocumentID string
	Blocks     []ContentBlock
	FullText   string
	Metadata   DocumentMeta
}

// ChunkingStats summarizes one completed pipeline run.
type ChunkingStats struct {
	TotalChunks     int                    `json:"total_chunks"`
	ByLevel         map[int]int            `json:"by_level"`
	ByMethod        map[ChunkingMethod]int `json:"by_method"`
	AvgChunkSize    float64                `json:"avg_chunk_size"`
	MinChunkSize    int                    `json:"min_chunk_size"`
	MaxChunkSize    int                    `json:"max_chunk_size"`
	TablesExtracted int                    `json:"tables_extracted"`
	ProcessingMs    int64                  `json:"processing_ms"`
}

// ChunkingOutput is the result of one pipeline run. Chunks holds every chunk
// of the document (levels 0-2, tables included) in final index order;
// TableChunks additionally exposes the table chunks with their structure.
type ChunkingOutput struct {
	DocumentID  string              `json:"document_id"`
	Chunks      []Chunk             `json:"chunks"`
	TableChunks []TableChunk        `json:"table_chunks,omitempty"`
	Hierarchy   *ChunkHierarchyNode `json:"hierarchy,omitempty"`
	Stats       ChunkingStats       `json:"stats"`
}

// --- Retrieval ---

// ScoredChunk is a chunk with a relevance score in [0, 1].
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}

// SearchRequest describes one hybrid search call.
type SearchRequest struct {
	Query string `json:"query"`
	// Limit caps the number of returned results. Zero means DefaultLimit.
	Limit int `json:"limit,omitempty"`
	// Threshold drops results whose fused score falls below it.
	Threshold float32 `json:"threshold,omitempty"`
	// Alpha blends keyword and vector signals: 0 = pure keyword,
	// 1 = pure vector. Nil means DefaultAlpha.
	Alpha *float32 `json:"alpha,omitempty"`
	// AllowedDocumentIDs, when non-empty, restricts results to those
	// documents (permission scoping).
	AllowedDocumentIDs []string `json:"allowed_document_ids,omitempty"`
	// LevelFilter, when set, restricts results to chunks at that level.
	LevelFilter *int `json:"level_filter,omitempty"`
	// IncludeParentContext prepends each level-2 result's section summary.
	IncludeParentContext bool `json:"include_parent_context,omitempty"`
}

// SearchResponse is the result of one hybrid search call.
type SearchResponse struct {
	Results      []ScoredChunk `json:"results"`
	TotalResults int           `json:"total_results"`
	Query        string        `json:"query"`
}

// --- LLM protocol types (contextual enrichment) ---

type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

type ChatResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// UserMessage builds a user-role chat message.
func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

// SystemMessage builds a system-role chat message.
func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}
