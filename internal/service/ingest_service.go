package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lectern-app/lectern/internal/extract"
	"github.com/lectern-app/lectern/internal/model"
	"github.com/lectern-app/lectern/internal/pkg/dbutil"
	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
	"github.com/lectern-app/lectern/internal/pkg/retry"
)

// Progress messages shown by the polling surface. The frontend renders these
// verbatim, so ingestion keeps the exact wording stable.
const (
	msgStarting    = "Starting PDF processing..."
	msgPageFormat  = "Processing & Translating page %d of %d..."
	msgIndexing    = "Indexing documents..."
	msgCompleted   = "Completed"
	msgQueued      = "Queued for processing..."
	storageRetries = 3
)

type documentStatusStore interface {
	UpdateStatus(ctx context.Context, docID, status, message string) error
}

type pageCreator interface {
	Create(ctx context.Context, page *model.Page) error
}

type documentIndexer interface {
	Index(ctx context.Context, doc *model.Document) error
}

type pageProcessor interface {
	FormatPage(ctx context.Context, raw string) (string, error)
	Translate(ctx context.Context, markdown string) (string, error)
}

// IngestService runs the upload-to-processed pipeline for one document at a
// time, asynchronously relative to the upload request. Progress and failures
// are written into the document row; there is no waiting caller to report to.
type IngestService struct {
	docs      documentStatusStore
	pages     pageCreator
	indexer   documentIndexer
	processor pageProcessor
}

func NewIngestService(docs documentStatusStore, pages pageCreator, indexer documentIndexer, processor pageProcessor) *IngestService {
	return &IngestService{docs: docs, pages: pages, indexer: indexer, processor: processor}
}

// Run executes the pipeline for doc over the uploaded bytes. Pages are
// persisted one by one in page order, so partially ingested documents are
// readable while later pages are still translating. Every status write
// doubles as a liveness check: once the document is deleted, writes report
// not-found and the pipeline stops without touching anything else.
func (s *IngestService) Run(ctx context.Context, doc *model.Document, data []byte) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("document_id", doc.ID),
		zap.String("project_id", doc.ProjectID),
		zap.String("name", doc.Name),
	)

	// Run owns a goroutine with no caller above it to recover; a panic here
	// would take the whole server down instead of one document.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingestion panic", zap.Any("panic", r))
			s.fail(ctx, doc.ID, fmt.Errorf("%w: unreadable file content", appErr.ErrCorruptFile))
		}
	}()

	if !s.setStatus(ctx, doc.ID, model.DocumentStatusProcessing, msgStarting) {
		logger.Info("document gone before ingestion started")
		return
	}

	pageTexts, err := extract.Pages(data, doc.Name)
	if err != nil {
		logger.Error("page extraction failed", zap.Error(err))
		s.fail(ctx, doc.ID, err)
		return
	}

	total := len(pageTexts)
	for i, raw := range pageTexts {
		pageNum := i + 1
		if !s.setStatus(ctx, doc.ID, model.DocumentStatusProcessing, fmt.Sprintf(msgPageFormat, pageNum, total)) {
			logger.Info("document deleted mid-ingestion, aborting", zap.Int("page", pageNum))
			return
		}

		original, translated := s.processPage(ctx, raw)
		page := &model.Page{
			ID:             newID(),
			DocumentID:     doc.ID,
			PageNumber:     pageNum,
			OriginalText:   original,
			TranslatedText: &translated,
		}
		if err := s.createPage(ctx, page); err != nil {
			if appErr.IsNotFound(err) {
				logger.Info("document deleted mid-ingestion, aborting", zap.Int("page", pageNum))
				return
			}
			logger.Error("persist page failed", zap.Int("page", pageNum), zap.Error(err))
			s.fail(ctx, doc.ID, err)
			return
		}
	}

	if !s.setStatus(ctx, doc.ID, model.DocumentStatusProcessing, msgIndexing) {
		logger.Info("document deleted before indexing, aborting")
		return
	}
	if err := s.indexer.Index(ctx, doc); err != nil {
		logger.Error("indexing failed", zap.Error(err))
		s.fail(ctx, doc.ID, err)
		return
	}

	if s.setStatus(ctx, doc.ID, model.DocumentStatusProcessed, msgCompleted) {
		logger.Info("document processed", zap.Int("pages", total))
	}
}

// processPage formats raw text to markdown and translates it. A generation
// failure on one page degrades that page to its raw text with an empty
// translation instead of failing the whole document.
func (s *IngestService) processPage(ctx context.Context, raw string) (original string, translated string) {
	formatted, err := s.processor.FormatPage(ctx, raw)
	if err != nil {
		logutil.GetLogger(ctx).Warn("page formatting failed, keeping raw text", zap.Error(err))
		return raw, ""
	}
	result, err := s.processor.Translate(ctx, formatted)
	if err != nil {
		logutil.GetLogger(ctx).Warn("page translation failed", zap.Error(err))
		return formatted, ""
	}
	return formatted, result
}

func (s *IngestService) createPage(ctx context.Context, page *model.Page) error {
	return retry.Do(ctx, storageRetries, 200*time.Millisecond, dbutil.IsTransient, func() error {
		return s.pages.Create(ctx, page)
	})
}

// setStatus reports false when the document no longer exists.
func (s *IngestService) setStatus(ctx context.Context, docID, status, message string) bool {
	err := retry.Do(ctx, storageRetries, 200*time.Millisecond, dbutil.IsTransient, func() error {
		return s.docs.UpdateStatus(ctx, docID, status, message)
	})
	if err == nil {
		return true
	}
	if appErr.IsNotFound(err) {
		return false
	}
	logutil.GetLogger(ctx).Error("status update failed", zap.String("document_id", docID), zap.Error(err))
	return false
}

func (s *IngestService) fail(ctx context.Context, docID string, cause error) {
	s.setStatus(ctx, docID, model.DocumentStatusFailed, "Error: "+cause.Error())
}
