// Package ingest turns parsed content blocks into hierarchical chunks.
//
// The pipeline runs in strict stage order: table extraction, text chunking
// (semantic, fixed, or hybrid with fallback), merge and global reindexing,
// hierarchical indexing, optional contextual enrichment, statistics.
// Embedding and storage are the caller's concern — ProcessDocument returns
// fully-formed chunks ready for batch embedding and persistence.
package ingest
