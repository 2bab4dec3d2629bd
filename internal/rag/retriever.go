package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/huangkk10/ai-platform-rag/internal/knowledge"
)

// RetrieverStore is the storage surface Retriever needs.
type RetrieverStore interface {
	Search(ctx context.Context, query, sourceTable string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
	SectionsByParent(ctx context.Context, key knowledge.DocumentKey, parentID string) ([]knowledge.Section, error)
	AdjacentSections(ctx context.Context, key knowledge.DocumentKey, index, window int32) ([]knowledge.Section, error)
	GetSection(ctx context.Context, key knowledge.DocumentKey, sectionID string) (knowledge.Section, error)
}

// ContextMode selects how a search hit is expanded with structural
// neighbors.
type ContextMode string

const (
	// ContextAdjacent attaches a linear window of sections around the hit
	// in document order, independent of hierarchy.
	ContextAdjacent ContextMode = "adjacent"

	// ContextHierarchical attaches the hit's parent, children and
	// (optionally) siblings.
	ContextHierarchical ContextMode = "hierarchical"

	// ContextBoth attaches both expansions simultaneously.
	ContextBoth ContextMode = "both"
)

// ContextOptions configures context expansion.
type ContextOptions struct {
	Mode            ContextMode
	Window          int32 // adjacent sections on each side; default 1, capped at MaxContextWindow
	IncludeSiblings bool  // hierarchical modes only
}

// ContextualResult is a search hit plus its structural neighbors. Context
// sections are structural, not semantic: they carry no similarity score.
type ContextualResult struct {
	knowledge.Result
	Parent   *knowledge.Section   // nil at document root
	Children []knowledge.Section  // document order
	Siblings []knowledge.Section  // other sections with the same parent
	Adjacent []knowledge.Section  // linear window, hit excluded
}

// Retriever answers "top-K sections near this query" with optional
// structural context expansion.
type Retriever struct {
	store  RetrieverStore
	logger *slog.Logger
}

// NewRetriever creates a Retriever. A nil logger falls back to
// slog.Default().
func NewRetriever(store RetrieverStore, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, logger: logger}
}

// Search returns the top sections for the query, ordered by descending
// similarity. Defaults (limit 5, threshold 0.3) apply unless overridden by
// options. An empty result is valid when nothing clears the threshold.
func (r *Retriever) Search(ctx context.Context, query, sourceTable string, opts ...knowledge.SearchOption) ([]knowledge.Result, error) {
	merged := append([]knowledge.SearchOption{
		knowledge.WithLimit(DefaultSearchLimit),
		knowledge.WithThreshold(DefaultSimilarityThreshold),
	}, opts...)
	return r.store.Search(ctx, query, sourceTable, merged...)
}

// SearchWithContext searches and expands each hit with structural
// neighbors per ContextOptions. Hits keep their similarity rank order.
func (r *Retriever) SearchWithContext(ctx context.Context, query, sourceTable string, ctxOpts ContextOptions, opts ...knowledge.SearchOption) ([]ContextualResult, error) {
	hits, err := r.Search(ctx, query, sourceTable, opts...)
	if err != nil {
		return nil, err
	}

	results := make([]ContextualResult, 0, len(hits))
	for _, hit := range hits {
		expanded, err := r.expand(ctx, hit, ctxOpts)
		if err != nil {
			return nil, fmt.Errorf("expand context for %s: %w", hit.Section.SectionID, err)
		}
		results = append(results, expanded)
	}
	return results, nil
}

// ContextFor expands a single section without a fresh search, for callers
// that already hold a hit.
func (r *Retriever) ContextFor(ctx context.Context, sec knowledge.Section, ctxOpts ContextOptions) (ContextualResult, error) {
	return r.expand(ctx, knowledge.Result{Section: sec}, ctxOpts)
}

func (r *Retriever) expand(ctx context.Context, hit knowledge.Result, ctxOpts ContextOptions) (ContextualResult, error) {
	result := ContextualResult{Result: hit}
	key := knowledge.DocumentKey{
		SourceTable: hit.Section.SourceTable,
		SourceID:    hit.Section.SourceID,
	}

	if ctxOpts.Mode == ContextAdjacent || ctxOpts.Mode == ContextBoth {
		window := ctxOpts.Window
		if window <= 0 {
			window = DefaultContextWindow
		}
		if window > MaxContextWindow {
			window = MaxContextWindow
		}

		neighbors, err := r.store.AdjacentSections(ctx, key, int32(hit.Section.SectionIndex), window)
		if err != nil {
			return ContextualResult{}, err
		}
		for _, n := range neighbors {
			if n.SectionID != hit.Section.SectionID {
				result.Adjacent = append(result.Adjacent, n)
			}
		}
	}

	if ctxOpts.Mode == ContextHierarchical || ctxOpts.Mode == ContextBoth {
		if hit.Section.ParentID != "" {
			parent, err := r.store.GetSection(ctx, key, hit.Section.ParentID)
			switch {
			case errors.Is(err, pgx.ErrNoRows):
				// Parent row missing is tolerated: a partially
				// re-indexed document self-heals on the next pass.
				r.logger.Warn("hit has dangling parent id",
					"section_id", hit.Section.SectionID,
					"parent_id", hit.Section.ParentID,
				)
			case err != nil:
				return ContextualResult{}, err
			default:
				result.Parent = &parent
			}
		}

		children, err := r.store.SectionsByParent(ctx, key, hit.Section.SectionID)
		if err != nil {
			return ContextualResult{}, err
		}
		result.Children = children

		if ctxOpts.IncludeSiblings {
			peers, err := r.store.SectionsByParent(ctx, key, hit.Section.ParentID)
			if err != nil {
				return ContextualResult{}, err
			}
			for _, p := range peers {
				if p.SectionID != hit.Section.SectionID {
					result.Siblings = append(result.Siblings, p)
				}
			}
		}
	}

	return result, nil
}
