package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/huangkk10/ai-platform-rag/internal/chunk"
	"github.com/huangkk10/ai-platform-rag/internal/knowledge"
)

// VectorizerStore is the storage surface Vectorizer needs.
type VectorizerStore interface {
	UpsertSection(ctx context.Context, sec knowledge.Section) error
	DeleteDocument(ctx context.Context, key knowledge.DocumentKey) (int64, error)
}

// SectionError records one section that failed to vectorize.
type SectionError struct {
	SectionID string
	Err       error
}

func (e SectionError) Error() string {
	return fmt.Sprintf("section %s: %v", e.SectionID, e.Err)
}

// VectorizeResult reports the outcome of one document vectorization.
// Success is true iff at least one section was vectorized; per-section
// failures are collected in SectionErrors, they never abort the batch.
type VectorizeResult struct {
	Success         bool
	TotalSections   int
	VectorizedCount int
	DeletedCount    int64 // prior sections removed by a forced re-index
	Sections        []chunk.Section
	SectionErrors   []SectionError
}

// Vectorizer turns a raw markdown document into persisted section vectors:
// chunk, embed each section, upsert keyed by (source_table, source_id,
// section_id).
//
// Concurrent vectorization of different documents is safe and unordered;
// re-indexing of the same document is serialized so delete-then-insert
// passes never interleave.
type Vectorizer struct {
	store  VectorizerStore
	logger *slog.Logger

	mu    sync.Mutex
	locks map[knowledge.DocumentKey]*sync.Mutex
}

// NewVectorizer creates a Vectorizer. A nil logger falls back to
// slog.Default().
func NewVectorizer(store VectorizerStore, logger *slog.Logger) *Vectorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vectorizer{
		store:  store,
		logger: logger,
		locks:  make(map[knowledge.DocumentKey]*sync.Mutex),
	}
}

// Vectorize chunks the document and persists one embedding per section.
// Existing rows with the same composite keys are overwritten; force
// additionally deletes all previous sections first, so removed headings do
// not survive the re-index.
//
// A failure embedding one section is logged, recorded, and skipped. Only
// failures that prevent the whole pass (a failed forced delete) are
// returned as an error.
func (v *Vectorizer) Vectorize(ctx context.Context, sourceTable string, sourceID int64, markdown, documentTitle string, force bool) (*VectorizeResult, error) {
	key := knowledge.DocumentKey{SourceTable: sourceTable, SourceID: sourceID}

	lock := v.documentLock(key)
	lock.Lock()
	defer lock.Unlock()

	sections := chunk.Parse(markdown, documentTitle)
	result := &VectorizeResult{
		TotalSections: len(sections),
		Sections:      sections,
	}

	if force {
		deleted, err := v.store.DeleteDocument(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("forced re-index of %s/%d: %w", sourceTable, sourceID, err)
		}
		result.DeletedCount = deleted
	}

	for _, sec := range sections {
		if err := ctx.Err(); err != nil {
			// Caller cancelled: already-upserted sections stay in place,
			// the next re-index corrects them.
			return nil, fmt.Errorf("vectorize %s/%d: %w", sourceTable, sourceID, err)
		}

		err := v.store.UpsertSection(ctx, knowledge.Section{
			SourceTable:  sourceTable,
			SourceID:     sourceID,
			SectionID:    sec.ID,
			SectionIndex: sec.Index,
			Level:        sec.Level,
			Title:        sec.Title,
			Content:      sec.Content,
			Path:         sec.Path,
			ParentID:     sec.ParentID,
			ChildrenIDs:  sec.ChildrenIDs,
			WordCount:    sec.WordCount,
			HasCode:      sec.HasCode,
			HasImages:    sec.HasImages,
		})
		if err != nil {
			v.logger.Warn("section vectorization failed, skipping",
				"source_table", sourceTable,
				"source_id", sourceID,
				"section_id", sec.ID,
				"error", err,
			)
			result.SectionErrors = append(result.SectionErrors, SectionError{SectionID: sec.ID, Err: err})
			continue
		}
		result.VectorizedCount++
	}

	result.Success = result.VectorizedCount > 0
	v.logger.Info("vectorized document",
		"source_table", sourceTable,
		"source_id", sourceID,
		"sections", result.TotalSections,
		"vectorized", result.VectorizedCount,
		"failed", len(result.SectionErrors),
		"forced", force,
	)
	return result, nil
}

// DeleteDocumentSections removes every persisted section of one document
// and returns the number deleted. Used on document removal and before an
// explicit re-index.
func (v *Vectorizer) DeleteDocumentSections(ctx context.Context, sourceTable string, sourceID int64) (int64, error) {
	key := knowledge.DocumentKey{SourceTable: sourceTable, SourceID: sourceID}

	lock := v.documentLock(key)
	lock.Lock()
	defer lock.Unlock()

	return v.store.DeleteDocument(ctx, key)
}

// documentLock returns the mutex serializing operations on one document.
// Locks are never evicted; the registry of documents is small and bounded.
func (v *Vectorizer) documentLock(key knowledge.DocumentKey) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()

	lock, ok := v.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		v.locks[key] = lock
	}
	return lock
}
