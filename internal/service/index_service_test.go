package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern-app/lectern/internal/model"
)

type fakeEmbedder struct {
	calls     int
	taskTypes []string
	err       error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	f.taskTypes = append(f.taskTypes, taskType)
	return []float32{float32(len(text)), 1}, nil
}

type fakeTranslatedPages struct {
	pages []model.Page
}

func (f *fakeTranslatedPages) ListTranslated(ctx context.Context, documentID string) ([]model.Page, error) {
	return f.pages, nil
}

type fakeEntryStore struct {
	replaced map[string][]model.IndexEntry
	searchIn []float32
	results  []model.PageRef
}

func (f *fakeEntryStore) ReplaceForDocument(ctx context.Context, documentID string, entries []model.IndexEntry) error {
	if f.replaced == nil {
		f.replaced = make(map[string][]model.IndexEntry)
	}
	f.replaced[documentID] = entries
	return nil
}

func (f *fakeEntryStore) Search(ctx context.Context, projectID string, queryEmbedding []float32, k int) ([]model.PageRef, error) {
	f.searchIn = queryEmbedding
	if len(f.results) > k {
		return f.results[:k], nil
	}
	return f.results, nil
}

func strPtr(s string) *string { return &s }

func TestIndexBuildsEntriesFromTranslatedPages(t *testing.T) {
	pages := &fakeTranslatedPages{pages: []model.Page{
		{ID: "p1", DocumentID: "doc1", PageNumber: 1, OriginalText: "# Intro\n\nAlpha beta gamma.", TranslatedText: strPtr("x")},
		{ID: "p2", DocumentID: "doc1", PageNumber: 2, OriginalText: "More content here.", TranslatedText: strPtr("y")},
	}}
	store := &fakeEntryStore{}
	embedder := &fakeEmbedder{}
	svc := NewIndexService(pages, store, embedder)

	doc := &model.Document{ID: "doc1", ProjectID: "proj1"}
	require.NoError(t, svc.Index(context.Background(), doc))

	entries := store.replaced["doc1"]
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, "proj1", e.ProjectID)
		assert.Equal(t, "doc1", e.DocumentID)
		assert.NotEmpty(t, e.Content)
		assert.NotEmpty(t, e.Embedding)
		assert.Contains(t, []int{1, 2}, e.PageNumber)
	}
	for _, tt := range embedder.taskTypes {
		assert.Equal(t, "RETRIEVAL_DOCUMENT", tt)
	}
}

func TestIndexReplaceIsIdempotent(t *testing.T) {
	pages := &fakeTranslatedPages{pages: []model.Page{
		{ID: "p1", DocumentID: "doc1", PageNumber: 1, OriginalText: "Stable text.", TranslatedText: strPtr("x")},
	}}
	store := &fakeEntryStore{}
	svc := NewIndexService(pages, store, &fakeEmbedder{})

	doc := &model.Document{ID: "doc1", ProjectID: "proj1"}
	require.NoError(t, svc.Index(context.Background(), doc))
	first := len(store.replaced["doc1"])
	require.NoError(t, svc.Index(context.Background(), doc))
	assert.Equal(t, first, len(store.replaced["doc1"]))
}

func TestIndexEmbedFailurePropagates(t *testing.T) {
	pages := &fakeTranslatedPages{pages: []model.Page{
		{ID: "p1", DocumentID: "doc1", PageNumber: 1, OriginalText: "text", TranslatedText: strPtr("x")},
	}}
	store := &fakeEntryStore{}
	svc := NewIndexService(pages, store, &fakeEmbedder{err: errors.New("quota")})

	err := svc.Index(context.Background(), &model.Document{ID: "doc1", ProjectID: "proj1"})
	require.Error(t, err)
	assert.Empty(t, store.replaced)
}

func TestQueryUsesQueryTaskType(t *testing.T) {
	store := &fakeEntryStore{results: []model.PageRef{{DocumentID: "doc1", PageNumber: 1}}}
	embedder := &fakeEmbedder{}
	svc := NewIndexService(&fakeTranslatedPages{}, store, embedder)

	refs, err := svc.Query(context.Background(), "proj1", "what is alpha", 5)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
	require.Len(t, embedder.taskTypes, 1)
	assert.Equal(t, "RETRIEVAL_QUERY", embedder.taskTypes[0])
	assert.NotNil(t, store.searchIn)
}

func TestQueryZeroKShortCircuits(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc := NewIndexService(&fakeTranslatedPages{}, &fakeEntryStore{}, embedder)

	refs, err := svc.Query(context.Background(), "proj1", "q", 0)
	require.NoError(t, err)
	assert.Nil(t, refs)
	assert.Zero(t, embedder.calls)
}
