package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DBTX is the subset of pgx operations the queries need. Both *pgxpool.Pool
// and pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries executes the section_embeddings SQL. It is the hand-written
// equivalent of a generated query layer: one method per statement, no
// business logic.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to the given connection or pool.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// UpsertSectionParams carries one section row plus its embedding.
type UpsertSectionParams struct {
	Section   Section
	Embedding pgvector.Vector
}

const sectionColumns = `
	source_table, source_id, section_id, section_index, level, title,
	content, path, parent_id, children_ids, word_count, has_code,
	has_images, full_context, created_at, updated_at`

const upsertSectionSQL = `
INSERT INTO section_embeddings (
	source_table, source_id, section_id, section_index, level, title,
	content, path, parent_id, children_ids, word_count, has_code,
	has_images, full_context, embedding, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now()
)
ON CONFLICT (source_table, source_id, section_id) DO UPDATE SET
	section_index = EXCLUDED.section_index,
	level         = EXCLUDED.level,
	title         = EXCLUDED.title,
	content       = EXCLUDED.content,
	path          = EXCLUDED.path,
	parent_id     = EXCLUDED.parent_id,
	children_ids  = EXCLUDED.children_ids,
	word_count    = EXCLUDED.word_count,
	has_code      = EXCLUDED.has_code,
	has_images    = EXCLUDED.has_images,
	full_context  = EXCLUDED.full_context,
	embedding     = EXCLUDED.embedding,
	updated_at    = now()`

// UpsertSection inserts or overwrites one section row, keyed by the
// composite (source_table, source_id, section_id).
func (q *Queries) UpsertSection(ctx context.Context, arg UpsertSectionParams) error {
	s := arg.Section
	_, err := q.db.Exec(ctx, upsertSectionSQL,
		s.SourceTable, s.SourceID, s.SectionID, s.SectionIndex, s.Level,
		s.Title, s.Content, s.Path, nullIfEmpty(s.ParentID), s.ChildrenIDs,
		s.WordCount, s.HasCode, s.HasImages, s.FullContext, arg.Embedding,
	)
	return err
}

// DeleteDocumentSections removes every section belonging to one document
// and returns the number of rows deleted.
func (q *Queries) DeleteDocumentSections(ctx context.Context, key DocumentKey) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM section_embeddings WHERE source_table = $1 AND source_id = $2`,
		key.SourceTable, key.SourceID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SearchSectionsParams configures one similarity query. Nil level bounds
// leave that side of the range open.
type SearchSectionsParams struct {
	QueryEmbedding pgvector.Vector
	SourceTable    string
	Threshold      float32
	MinLevel       *int32
	MaxLevel       *int32
	ResultLimit    int32
}

const searchSectionsSQL = `
SELECT` + sectionColumns + `,
	1 - (embedding <=> $1) AS similarity
FROM section_embeddings
WHERE source_table = $2
	AND 1 - (embedding <=> $1) >= $3
	AND ($4::int IS NULL OR level >= $4)
	AND ($5::int IS NULL OR level <= $5)
ORDER BY embedding <=> $1 ASC, section_index ASC
LIMIT $6`

// SearchSections ranks a document table's sections by cosine similarity
// (1 - cosine distance) to the query embedding. Ties are broken by document
// order for determinism.
func (q *Queries) SearchSections(ctx context.Context, arg SearchSectionsParams) ([]Result, error) {
	rows, err := q.db.Query(ctx, searchSectionsSQL,
		arg.QueryEmbedding, arg.SourceTable, arg.Threshold,
		arg.MinLevel, arg.MaxLevel, arg.ResultLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := scanSection(rows, &r.Section, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

const sectionsByParentSQL = `
SELECT` + sectionColumns + `
FROM section_embeddings
WHERE source_table = $1 AND source_id = $2 AND parent_id IS NOT DISTINCT FROM $3
ORDER BY section_index ASC`

// GetSectionsByParent returns a document's sections sharing one parent, in
// document order. An empty parentID selects the document roots.
func (q *Queries) GetSectionsByParent(ctx context.Context, key DocumentKey, parentID string) ([]Section, error) {
	rows, err := q.db.Query(ctx, sectionsByParentSQL, key.SourceTable, key.SourceID, nullIfEmpty(parentID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSections(rows)
}

const sectionsByIndexRangeSQL = `
SELECT` + sectionColumns + `
FROM section_embeddings
WHERE source_table = $1 AND source_id = $2
	AND section_index BETWEEN $3 AND $4
ORDER BY section_index ASC`

// GetSectionsByIndexRange returns a document's sections whose document-order
// position falls in [lo, hi], inclusive.
func (q *Queries) GetSectionsByIndexRange(ctx context.Context, key DocumentKey, lo, hi int32) ([]Section, error) {
	rows, err := q.db.Query(ctx, sectionsByIndexRangeSQL, key.SourceTable, key.SourceID, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSections(rows)
}

const getSectionSQL = `
SELECT` + sectionColumns + `
FROM section_embeddings
WHERE source_table = $1 AND source_id = $2 AND section_id = $3`

// GetSection fetches a single section by its composite key. Returns
// pgx.ErrNoRows when absent.
func (q *Queries) GetSection(ctx context.Context, key DocumentKey, sectionID string) (Section, error) {
	row := q.db.QueryRow(ctx, getSectionSQL, key.SourceTable, key.SourceID, sectionID)
	var s Section
	if err := scanSection(row, &s, nil); err != nil {
		return Section{}, err
	}
	return s, nil
}

// CountDocumentSections counts one document's persisted sections.
func (q *Queries) CountDocumentSections(ctx context.Context, key DocumentKey) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx,
		`SELECT count(*) FROM section_embeddings WHERE source_table = $1 AND source_id = $2`,
		key.SourceTable, key.SourceID,
	).Scan(&count)
	return count, err
}

// scanSection scans one row into a Section. similarity is non-nil only for
// search rows, which carry the extra score column.
func scanSection(row pgx.Row, s *Section, similarity *float32) error {
	var parentID *string
	dest := []any{
		&s.SourceTable, &s.SourceID, &s.SectionID, &s.SectionIndex,
		&s.Level, &s.Title, &s.Content, &s.Path, &parentID,
		&s.ChildrenIDs, &s.WordCount, &s.HasCode, &s.HasImages,
		&s.FullContext, &s.CreatedAt, &s.UpdatedAt,
	}
	if similarity != nil {
		dest = append(dest, similarity)
	}
	if err := row.Scan(dest...); err != nil {
		return err
	}
	if parentID != nil {
		s.ParentID = *parentID
	}
	return nil
}

func collectSections(rows pgx.Rows) ([]Section, error) {
	var sections []Section
	for rows.Next() {
		var s Section
		if err := scanSection(rows, &s, nil); err != nil {
			return nil, fmt.Errorf("scan section row: %w", err)
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// nullIfEmpty maps the in-memory "no parent" sentinel to SQL NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
