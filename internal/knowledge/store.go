package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pgvector/pgvector-go"
)

// Querier defines the database operations Store needs. Defined here, by the
// consumer, so tests can substitute a scripted implementation.
type Querier interface {
	UpsertSection(ctx context.Context, arg UpsertSectionParams) error
	DeleteDocumentSections(ctx context.Context, key DocumentKey) (int64, error)
	SearchSections(ctx context.Context, arg SearchSectionsParams) ([]Result, error)
	GetSectionsByParent(ctx context.Context, key DocumentKey, parentID string) ([]Section, error)
	GetSectionsByIndexRange(ctx context.Context, key DocumentKey, lo, hi int32) ([]Section, error)
	GetSection(ctx context.Context, key DocumentKey, sectionID string) (Section, error)
	CountDocumentSections(ctx context.Context, key DocumentKey) (int64, error)
}

// Store persists section embeddings and answers similarity and structural
// queries over them. It owns embedding generation for both directions:
// sections on write, queries on read.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder Embedder
	logger   *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(querier Querier, embedder Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		queries:  querier,
		embedder: embedder,
		logger:   logger,
	}
}

// FullContext builds the exact text that gets embedded for a section.
func FullContext(path, content string) string {
	return path + "\n\n" + content
}

// UpsertSection embeds one section and writes it, overwriting any previous
// row with the same composite key. The section's FullContext field is
// derived here; callers populate the parse-time fields only.
func (s *Store) UpsertSection(ctx context.Context, sec Section) error {
	sec.FullContext = FullContext(sec.Path, sec.Content)

	vec, err := s.embedder.Embed(ctx, sec.FullContext)
	if err != nil {
		return fmt.Errorf("embed section %s/%d/%s: %w", sec.SourceTable, sec.SourceID, sec.SectionID, err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("empty embedding for section %s/%d/%s", sec.SourceTable, sec.SourceID, sec.SectionID)
	}

	err = s.queries.UpsertSection(ctx, UpsertSectionParams{
		Section:   sec,
		Embedding: pgvector.NewVector(vec),
	})
	if err != nil {
		return fmt.Errorf("upsert section %s/%d/%s: %w", sec.SourceTable, sec.SourceID, sec.SectionID, err)
	}

	s.logger.Debug("upserted section",
		"source_table", sec.SourceTable,
		"source_id", sec.SourceID,
		"section_id", sec.SectionID,
		"words", sec.WordCount,
	)
	return nil
}

// Search returns the sections of sourceTable nearest the query, ordered by
// descending similarity. An empty result is valid when nothing clears the
// threshold.
func (s *Store) Search(ctx context.Context, query, sourceTable string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	vec, err := s.embedder.Embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("empty embedding returned for query")
	}

	results, err := s.queries.SearchSections(queryCtx, SearchSectionsParams{
		QueryEmbedding: pgvector.NewVector(vec),
		SourceTable:    sourceTable,
		Threshold:      cfg.threshold,
		MinLevel:       cfg.minLevel,
		MaxLevel:       cfg.maxLevel,
		ResultLimit:    cfg.limit,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search timeout: %w", err)
		}
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return results, nil
}

// DeleteDocument removes every section of one document and returns the
// number of rows deleted. Used before a forced re-index and on document
// removal.
func (s *Store) DeleteDocument(ctx context.Context, key DocumentKey) (int64, error) {
	deleted, err := s.queries.DeleteDocumentSections(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("delete sections of %s/%d: %w", key.SourceTable, key.SourceID, err)
	}
	s.logger.Debug("deleted document sections",
		"source_table", key.SourceTable,
		"source_id", key.SourceID,
		"deleted", deleted,
	)
	return deleted, nil
}

// SectionsByParent returns a document's sections sharing parentID, in
// document order. Structural lookup, no similarity involved.
func (s *Store) SectionsByParent(ctx context.Context, key DocumentKey, parentID string) ([]Section, error) {
	sections, err := s.queries.GetSectionsByParent(ctx, key, parentID)
	if err != nil {
		return nil, fmt.Errorf("sections by parent %q: %w", parentID, err)
	}
	return sections, nil
}

// AdjacentSections returns the linear window of sections around document
// position index, inclusive of the section at index itself.
func (s *Store) AdjacentSections(ctx context.Context, key DocumentKey, index, window int32) ([]Section, error) {
	lo := index - window
	if lo < 0 {
		lo = 0
	}
	sections, err := s.queries.GetSectionsByIndexRange(ctx, key, lo, index+window)
	if err != nil {
		return nil, fmt.Errorf("adjacent sections around %d: %w", index, err)
	}
	return sections, nil
}

// GetSection fetches one section by its composite key.
func (s *Store) GetSection(ctx context.Context, key DocumentKey, sectionID string) (Section, error) {
	sec, err := s.queries.GetSection(ctx, key, sectionID)
	if err != nil {
		return Section{}, fmt.Errorf("get section %s: %w", sectionID, err)
	}
	return sec, nil
}

// CountDocument returns the number of persisted sections for one document.
func (s *Store) CountDocument(ctx context.Context, key DocumentKey) (int64, error) {
	count, err := s.queries.CountDocumentSections(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("count sections of %s/%d: %w", key.SourceTable, key.SourceID, err)
	}
	return count, nil
}
