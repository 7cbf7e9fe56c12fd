package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern-app/lectern/internal/model"
	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
)

type statusUpdate struct {
	status  string
	message string
}

type fakeDocStore struct {
	mu      sync.Mutex
	updates []statusUpdate
	// deleteAfter marks the document gone once this many updates landed.
	deleteAfter int
}

func (f *fakeDocStore) UpdateStatus(ctx context.Context, docID, status, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteAfter > 0 && len(f.updates) >= f.deleteAfter {
		return appErr.ErrNotFound
	}
	f.updates = append(f.updates, statusUpdate{status: status, message: message})
	return nil
}

func (f *fakeDocStore) snapshot() []statusUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]statusUpdate(nil), f.updates...)
}

type fakePageStore struct {
	mu    sync.Mutex
	pages []*model.Page
	err   error
}

func (f *fakePageStore) Create(ctx context.Context, page *model.Page) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, page)
	return nil
}

type fakeIndexer struct {
	indexed []string
	err     error
}

func (f *fakeIndexer) Index(ctx context.Context, doc *model.Document) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, doc.ID)
	return nil
}

type fakeProcessor struct {
	formatErr    error
	translateErr error
}

func (f *fakeProcessor) FormatPage(ctx context.Context, raw string) (string, error) {
	if f.formatErr != nil {
		return "", f.formatErr
	}
	return "# " + raw, nil
}

func (f *fakeProcessor) Translate(ctx context.Context, markdown string) (string, error) {
	if f.translateErr != nil {
		return "", f.translateErr
	}
	return "translated: " + markdown, nil
}

func testDoc() *model.Document {
	return &model.Document{ID: "doc1", ProjectID: "proj1", Name: "notes.txt", Status: model.DocumentStatusQueued}
}

func TestIngestRunHappyPath(t *testing.T) {
	docs := &fakeDocStore{}
	pages := &fakePageStore{}
	indexer := &fakeIndexer{}
	svc := NewIngestService(docs, pages, indexer, &fakeProcessor{})

	data := []byte("page one\fpage two\fpage three")
	svc.Run(context.Background(), testDoc(), data)

	updates := docs.snapshot()
	require.Len(t, updates, 6)
	assert.Equal(t, statusUpdate{model.DocumentStatusProcessing, "Starting PDF processing..."}, updates[0])
	for i := 1; i <= 3; i++ {
		assert.Equal(t, model.DocumentStatusProcessing, updates[i].status)
		assert.Equal(t, fmt.Sprintf("Processing & Translating page %d of 3...", i), updates[i].message)
	}
	assert.Equal(t, statusUpdate{model.DocumentStatusProcessing, "Indexing documents..."}, updates[4])
	assert.Equal(t, statusUpdate{model.DocumentStatusProcessed, "Completed"}, updates[5])

	require.Len(t, pages.pages, 3)
	for i, page := range pages.pages {
		assert.Equal(t, i+1, page.PageNumber)
		assert.True(t, strings.HasPrefix(page.OriginalText, "# page"))
		require.NotNil(t, page.TranslatedText)
		assert.True(t, strings.HasPrefix(*page.TranslatedText, "translated:"))
	}
	assert.Equal(t, []string{"doc1"}, indexer.indexed)
}

type panickingIndexer struct{}

func (panickingIndexer) Index(ctx context.Context, doc *model.Document) error {
	panic("runtime error: index out of range [-1]")
}

func TestIngestRunPanicMarksDocumentFailed(t *testing.T) {
	docs := &fakeDocStore{}
	svc := NewIngestService(docs, &fakePageStore{}, panickingIndexer{}, &fakeProcessor{})

	svc.Run(context.Background(), testDoc(), []byte("page one"))

	updates := docs.snapshot()
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, model.DocumentStatusFailed, last.status)
	assert.True(t, strings.HasPrefix(last.message, "Error: "))
}

func TestIngestRunUnsupportedFormatFails(t *testing.T) {
	docs := &fakeDocStore{}
	svc := NewIngestService(docs, &fakePageStore{}, &fakeIndexer{}, &fakeProcessor{})

	doc := testDoc()
	doc.Name = "slides.pptx"
	svc.Run(context.Background(), doc, []byte("whatever"))

	updates := docs.snapshot()
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, model.DocumentStatusFailed, last.status)
	assert.True(t, strings.HasPrefix(last.message, "Error: "))
}

func TestIngestRunPageDegradesOnGenerationFailure(t *testing.T) {
	docs := &fakeDocStore{}
	pages := &fakePageStore{}
	svc := NewIngestService(docs, pages, &fakeIndexer{}, &fakeProcessor{translateErr: errors.New("model down")})

	svc.Run(context.Background(), testDoc(), []byte("only page"))

	require.Len(t, pages.pages, 1)
	assert.Equal(t, "# only page", pages.pages[0].OriginalText)
	require.NotNil(t, pages.pages[0].TranslatedText)
	assert.Equal(t, "", *pages.pages[0].TranslatedText)

	updates := docs.snapshot()
	assert.Equal(t, model.DocumentStatusProcessed, updates[len(updates)-1].status)
}

func TestIngestRunAbortsWhenDocumentDeleted(t *testing.T) {
	// The document disappears after the starting update: the next status
	// write reports not-found and the pipeline stops quietly.
	docs := &fakeDocStore{deleteAfter: 1}
	pages := &fakePageStore{}
	indexer := &fakeIndexer{}
	svc := NewIngestService(docs, pages, indexer, &fakeProcessor{})

	svc.Run(context.Background(), testDoc(), []byte("page one\fpage two"))

	assert.Len(t, docs.snapshot(), 1)
	assert.Empty(t, pages.pages)
	assert.Empty(t, indexer.indexed)
}

func TestIngestRunIndexerFailureMarksFailed(t *testing.T) {
	docs := &fakeDocStore{}
	pages := &fakePageStore{}
	svc := NewIngestService(docs, pages, &fakeIndexer{err: errors.New("pgvector down")}, &fakeProcessor{})

	svc.Run(context.Background(), testDoc(), []byte("page one"))

	// Pages persisted before the failure are retained.
	assert.Len(t, pages.pages, 1)
	updates := docs.snapshot()
	last := updates[len(updates)-1]
	assert.Equal(t, model.DocumentStatusFailed, last.status)
	assert.Contains(t, last.message, "pgvector down")
}
