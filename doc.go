// Package vexora turns parsed documents into a tree of semantically
// coherent, size-bounded chunks and searches them with fused keyword+vector
// retrieval.
//
// The root package holds the domain model and the retrieval layer:
//
//   - [Chunk], [TableChunk], [ContentBlock] — the data model
//   - [HybridRetriever] — fused search, parent-context reconstruction,
//     document expansion
//   - [ChunkStore], [MetadataStore] — persistence contracts
//   - [EmbeddingProvider], [Provider] — external model contracts
//
// Chunking lives in the ingest subpackage; store implementations live under
// store/sqlite and store/postgres; provider/openai implements the model
// contracts; parser produces content blocks from raw files or the parser
// service.
//
// A typical flow:
//
//	pipe := ingest.NewPipeline(ingest.WithEmbedFunc(embedding.Embed))
//	out, err := pipe.ProcessDocument(ctx, vexora.ChunkingInput{
//		DocumentID: vexora.NewID(),
//		Blocks:     blocks,
//	})
//	// persist out.Chunks, then:
//	ret := vexora.NewHybridRetriever(store, embedding)
//	resp, err := ret.Search(ctx, vexora.SearchRequest{Query: "..."})
package vexora
