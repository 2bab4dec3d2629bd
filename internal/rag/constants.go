package rag

// VectorDimension is the embedding dimension of the section_embeddings
// schema. It must match the configured embedding model; see
// db/migrations/000001_create_section_embeddings.up.sql.
const VectorDimension = 1024

// Source table constants for the document registry this core indexes.
// The composite key (source_table, source_id) locates the owning document.
const (
	// SourceTableKnowIssue holds known-issue writeups.
	SourceTableKnowIssue = "know_issue"

	// SourceTableRVT holds RVT test guides.
	SourceTableRVT = "rvt_guide"

	// SourceTableOCR holds OCR-extracted benchmark reports.
	SourceTableOCR = "ocr_storage_benchmark"
)

// Retrieval defaults.
const (
	// DefaultSearchLimit caps results when the caller does not specify one.
	DefaultSearchLimit = 5

	// DefaultSimilarityThreshold filters out weakly related sections.
	DefaultSimilarityThreshold = 0.3

	// DefaultContextWindow is the adjacent-section window on each side of
	// a hit.
	DefaultContextWindow = 1

	// MaxContextWindow bounds the linear window to keep context fetches
	// cheap.
	MaxContextWindow = 5
)
