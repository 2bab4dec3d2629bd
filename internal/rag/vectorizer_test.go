package rag

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/huangkk10/ai-platform-rag/internal/knowledge"
	"github.com/huangkk10/ai-platform-rag/internal/log"
)

// mockStore implements VectorizerStore with scripted failures.
type mockStore struct {
	mu          sync.Mutex
	upserted    []knowledge.Section
	failIDs     map[string]error // section id -> error to return
	deleted     []knowledge.DocumentKey
	deleteCount int64
	deleteErr   error
}

func (m *mockStore) UpsertSection(_ context.Context, sec knowledge.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failIDs[sec.SectionID]; ok {
		return err
	}
	m.upserted = append(m.upserted, sec)
	return nil
}

func (m *mockStore) DeleteDocument(_ context.Context, key knowledge.DocumentKey) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	return m.deleteCount, m.deleteErr
}

const guideMarkdown = `# Guide

Intro.

## Setup

Install the tools.

## Troubleshooting

Check the logs.
`

func TestVectorizer_Vectorize(t *testing.T) {
	store := &mockStore{}
	v := NewVectorizer(store, log.NewNop())

	result, err := v.Vectorize(context.Background(), SourceTableRVT, 7, guideMarkdown, "Device Guide", false)
	if err != nil {
		t.Fatalf("Vectorize: %v", err)
	}

	if !result.Success {
		t.Error("expected success")
	}
	if result.TotalSections != 3 || result.VectorizedCount != 3 {
		t.Errorf("counts = total %d vectorized %d, want 3/3", result.TotalSections, result.VectorizedCount)
	}
	if len(result.SectionErrors) != 0 {
		t.Errorf("unexpected section errors: %v", result.SectionErrors)
	}
	if len(store.deleted) != 0 {
		t.Error("non-forced vectorize must not delete prior sections")
	}

	// Chunk metadata carries through to the persisted rows.
	setup := store.upserted[1]
	if setup.SectionID != "sec_2" || setup.ParentID != "sec_1" || setup.SectionIndex != 1 {
		t.Errorf("persisted section = %+v", setup)
	}
	if setup.Path != "Device Guide > Guide > Setup" {
		t.Errorf("persisted path = %q", setup.Path)
	}
	if setup.SourceTable != SourceTableRVT || setup.SourceID != 7 {
		t.Errorf("persisted key = %s/%d", setup.SourceTable, setup.SourceID)
	}
}

func TestVectorizer_PerSectionFailureIsIsolated(t *testing.T) {
	embedErr := errors.New("embedding timeout")
	store := &mockStore{failIDs: map[string]error{"sec_2": embedErr}}
	v := NewVectorizer(store, log.NewNop())

	result, err := v.Vectorize(context.Background(), SourceTableRVT, 7, guideMarkdown, "Device Guide", false)
	if err != nil {
		t.Fatalf("one bad section must not abort the batch: %v", err)
	}

	if !result.Success {
		t.Error("success means at least one section vectorized")
	}
	if result.VectorizedCount != 2 {
		t.Errorf("vectorized = %d, want 2", result.VectorizedCount)
	}
	if len(result.SectionErrors) != 1 || result.SectionErrors[0].SectionID != "sec_2" {
		t.Fatalf("section errors = %v", result.SectionErrors)
	}
	if !errors.Is(result.SectionErrors[0].Err, embedErr) {
		t.Error("section error should preserve the cause")
	}
}

func TestVectorizer_AllSectionsFail(t *testing.T) {
	failAll := errors.New("store down")
	store := &mockStore{failIDs: map[string]error{
		"sec_1": failAll, "sec_2": failAll, "sec_3": failAll,
	}}
	v := NewVectorizer(store, log.NewNop())

	result, err := v.Vectorize(context.Background(), SourceTableRVT, 7, guideMarkdown, "Device Guide", false)
	if err != nil {
		t.Fatalf("Vectorize: %v", err)
	}
	if result.Success {
		t.Error("zero vectorized sections is not a success")
	}
	if len(result.SectionErrors) != 3 {
		t.Errorf("section errors = %d, want 3", len(result.SectionErrors))
	}
}

func TestVectorizer_ForceDeletesFirst(t *testing.T) {
	store := &mockStore{deleteCount: 5}
	v := NewVectorizer(store, log.NewNop())

	result, err := v.Vectorize(context.Background(), SourceTableKnowIssue, 3, guideMarkdown, "Doc", true)
	if err != nil {
		t.Fatalf("Vectorize: %v", err)
	}
	if result.DeletedCount != 5 {
		t.Errorf("deleted = %d, want 5", result.DeletedCount)
	}
	if len(store.deleted) != 1 {
		t.Fatalf("expected one delete call, got %d", len(store.deleted))
	}
	want := knowledge.DocumentKey{SourceTable: SourceTableKnowIssue, SourceID: 3}
	if store.deleted[0] != want {
		t.Errorf("deleted key = %+v", store.deleted[0])
	}
}

func TestVectorizer_ForceDeleteFailureAborts(t *testing.T) {
	deleteErr := errors.New("connection refused")
	store := &mockStore{deleteErr: deleteErr}
	v := NewVectorizer(store, log.NewNop())

	_, err := v.Vectorize(context.Background(), SourceTableKnowIssue, 3, guideMarkdown, "Doc", true)
	if !errors.Is(err, deleteErr) {
		t.Fatalf("failed forced delete must abort, got %v", err)
	}
	if len(store.upserted) != 0 {
		t.Error("no sections should be written after a failed forced delete")
	}
}

func TestVectorizer_CancelledContext(t *testing.T) {
	store := &mockStore{}
	v := NewVectorizer(store, log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := v.Vectorize(ctx, SourceTableRVT, 7, guideMarkdown, "Doc", false); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestVectorizer_ConcurrentDifferentDocuments(t *testing.T) {
	store := &mockStore{}
	v := NewVectorizer(store, log.NewNop())

	var wg sync.WaitGroup
	for i := int64(1); i <= 4; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := v.Vectorize(context.Background(), SourceTableRVT, id, guideMarkdown, "Doc", false); err != nil {
				t.Errorf("Vectorize(%d): %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	if len(store.upserted) != 12 {
		t.Errorf("upserted = %d, want 12", len(store.upserted))
	}
}

func TestVectorizer_DeleteDocumentSections(t *testing.T) {
	store := &mockStore{deleteCount: 4}
	v := NewVectorizer(store, log.NewNop())

	deleted, err := v.DeleteDocumentSections(context.Background(), SourceTableOCR, 11)
	if err != nil {
		t.Fatalf("DeleteDocumentSections: %v", err)
	}
	if deleted != 4 {
		t.Errorf("deleted = %d, want 4", deleted)
	}
}
