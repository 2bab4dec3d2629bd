// Package rag implements the two retrieval services of the core: document
// vectorization and semantic section search.
//
// # Overview
//
//	markdown document
//	     |
//	     v
//	chunk.Parse (heading hierarchy)
//	     |
//	     v
//	Vectorizer ── embeds each section ──> knowledge.Store (pgvector)
//	                                          ^
//	                                          |
//	Retriever ── embeds the query, ranks sections by cosine similarity,
//	             optionally expands hits with structural context
//
// # Context expansion
//
// The retrieval unit (one section) is often too small to be self-contained
// for answer generation. Retriever can attach structural neighbors to each
// hit: a linear window of adjacent sections, the hierarchical family
// (parent, children, optionally siblings), or both. Context sections are
// fetched by position and parent id; they carry no similarity score of
// their own.
//
// # Thread safety
//
// Vectorizer serializes concurrent re-indexing of the same document with a
// per-document lock; different documents index concurrently. Retriever is
// stateless and safe for concurrent use.
package rag
