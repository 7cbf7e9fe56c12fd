package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lectern-app/lectern/internal/ai"
	"github.com/lectern-app/lectern/internal/model"
)

const (
	taskTypeDocument = "RETRIEVAL_DOCUMENT"
	taskTypeQuery    = "RETRIEVAL_QUERY"
)

type textEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

type translatedPageLister interface {
	ListTranslated(ctx context.Context, documentID string) ([]model.Page, error)
}

type indexEntryStore interface {
	ReplaceForDocument(ctx context.Context, documentID string, entries []model.IndexEntry) error
	Search(ctx context.Context, projectID string, queryEmbedding []float32, k int) ([]model.PageRef, error)
}

// IndexService is the retrieval subsystem: it turns translation-complete
// pages into embedded passages and answers nearest-neighbour queries over
// them. The index is derived state, rebuildable from pages at any time.
type IndexService struct {
	pages    translatedPageLister
	entries  indexEntryStore
	embedder textEmbedder
}

func NewIndexService(pages translatedPageLister, entries indexEntryStore, embedder textEmbedder) *IndexService {
	return &IndexService{pages: pages, entries: entries, embedder: embedder}
}

// Index rebuilds a document's entries from its translation-complete pages.
// The swap is transactional, so re-running on unchanged pages yields the
// same retrievable set and a crash mid-build leaves the previous set intact.
func (s *IndexService) Index(ctx context.Context, doc *model.Document) error {
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", doc.ID), zap.String("project_id", doc.ProjectID))
	pages, err := s.pages.ListTranslated(ctx, doc.ID)
	if err != nil {
		return err
	}
	var entries []model.IndexEntry
	for _, page := range pages {
		chunks := ai.ChunkMarkdown(page.OriginalText)
		for _, chunk := range chunks {
			embedding, err := s.embedder.Embed(ctx, chunk.Content, taskTypeDocument)
			if err != nil {
				return err
			}
			entries = append(entries, model.IndexEntry{
				ID:         newID(),
				ProjectID:  doc.ProjectID,
				DocumentID: doc.ID,
				PageNumber: page.PageNumber,
				ChunkPos:   chunk.Position,
				Content:    chunk.Content,
				Embedding:  embedding,
			})
		}
	}
	if err := s.entries.ReplaceForDocument(ctx, doc.ID, entries); err != nil {
		return err
	}
	logger.Info("document indexed", zap.Int("pages", len(pages)), zap.Int("entries", len(entries)))
	return nil
}

// Query returns up to k passages ranked by semantic relevance. An empty or
// unindexed project yields an empty slice, never an error.
func (s *IndexService) Query(ctx context.Context, projectID, text string, k int) ([]model.PageRef, error) {
	if k <= 0 {
		return nil, nil
	}
	queryEmbedding, err := s.embedder.Embed(ctx, text, taskTypeQuery)
	if err != nil {
		return nil, err
	}
	return s.entries.Search(ctx, projectID, queryEmbedding, k)
}
