package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lectern-app/lectern/internal/extract"
	"github.com/lectern-app/lectern/internal/filestore"
	"github.com/lectern-app/lectern/internal/model"
	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
)

const maxUploadBytes = 50 << 20

// ingestTimeout bounds one document's whole pipeline, not individual AI
// calls, which carry their own shorter deadlines.
const ingestTimeout = 30 * time.Minute

type documentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	ListByProject(ctx context.Context, projectID string) ([]model.Document, error)
	Get(ctx context.Context, projectID, docID string) (*model.Document, error)
	Delete(ctx context.Context, projectID, docID string) error
}

type pageLister interface {
	ListByDocument(ctx context.Context, documentID string) ([]model.Page, error)
}

type projectGetter interface {
	Get(ctx context.Context, ownerID, projectID string) (*model.Project, error)
}

type ingestRunner interface {
	Run(ctx context.Context, doc *model.Document, data []byte)
}

// DocumentService accepts uploads, hands them to the ingestion pipeline and
// serves document status and pages. Uploads return as soon as the document
// row exists; ingestion runs in its own goroutine and reports through the
// document's status fields.
type DocumentService struct {
	docs     documentStore
	pages    pageLister
	projects projectGetter
	files    filestore.Store
	ingest   ingestRunner
}

func NewDocumentService(docs documentStore, pages pageLister, projects projectGetter, files filestore.Store, ingest ingestRunner) *DocumentService {
	return &DocumentService{docs: docs, pages: pages, projects: projects, files: files, ingest: ingest}
}

func (s *DocumentService) Upload(ctx context.Context, ownerID, projectID, fileName string, r io.Reader) (*model.Document, error) {
	if _, err := s.projects.Get(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." {
		return nil, fmt.Errorf("%w: file name required", appErr.ErrInvalid)
	}
	if !extract.Supported(fileName) {
		return nil, fmt.Errorf("%w: %s", appErr.ErrUnsupportedFormat, filepath.Ext(fileName))
	}

	data, err := io.ReadAll(io.LimitReader(r, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", appErr.ErrCorruptFile)
	}
	if len(data) > maxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", appErr.ErrInvalid, maxUploadBytes)
	}

	doc := &model.Document{
		ID:                newID(),
		ProjectID:         projectID,
		Name:              fileName,
		FileKey:           newID() + strings.ToLower(filepath.Ext(fileName)),
		Status:            model.DocumentStatusQueued,
		ProcessingMessage: msgQueued,
		Ctime:             nowMilli(),
	}
	if err := s.files.Save(ctx, doc.FileKey, readSeekNopCloser{bytes.NewReader(data)}, int64(len(data))); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if delErr := s.files.Delete(context.WithoutCancel(ctx), doc.FileKey); delErr != nil {
			logutil.GetLogger(ctx).Warn("orphan file cleanup failed", zap.String("key", doc.FileKey), zap.Error(delErr))
		}
		return nil, err
	}

	// Detach from the request context so the pipeline survives the response.
	ingestCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ingestTimeout)
	go func() {
		defer cancel()
		s.ingest.Run(ingestCtx, doc, data)
	}()
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, ownerID, projectID string) ([]model.Document, error) {
	if _, err := s.projects.Get(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	return s.docs.ListByProject(ctx, projectID)
}

// Get serves the status polling endpoint.
func (s *DocumentService) Get(ctx context.Context, ownerID, projectID, docID string) (*model.Document, error) {
	if _, err := s.projects.Get(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	return s.docs.Get(ctx, projectID, docID)
}

func (s *DocumentService) Pages(ctx context.Context, ownerID, projectID, docID string) ([]model.Page, error) {
	if _, err := s.projects.Get(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	if _, err := s.docs.Get(ctx, projectID, docID); err != nil {
		return nil, err
	}
	return s.pages.ListByDocument(ctx, docID)
}

// OpenFile returns the stored original bytes for download. The caller owns
// the returned reader.
func (s *DocumentService) OpenFile(ctx context.Context, ownerID, projectID, docID string) (*model.Document, filestore.ReadSeekCloser, error) {
	if _, err := s.projects.Get(ctx, ownerID, projectID); err != nil {
		return nil, nil, err
	}
	doc, err := s.docs.Get(ctx, projectID, docID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.files.Open(ctx, doc.FileKey)
	if err != nil {
		return nil, nil, fmt.Errorf("open stored file: %w", err)
	}
	return doc, rc, nil
}

// Delete removes the document row first, which makes a running ingestion of
// the same document abort on its next write, then cleans up the stored file.
func (s *DocumentService) Delete(ctx context.Context, ownerID, projectID, docID string) error {
	if _, err := s.projects.Get(ctx, ownerID, projectID); err != nil {
		return err
	}
	doc, err := s.docs.Get(ctx, projectID, docID)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, projectID, docID); err != nil {
		return err
	}
	if err := s.files.Delete(ctx, doc.FileKey); err != nil {
		logutil.GetLogger(ctx).Warn("stored file cleanup failed", zap.String("key", doc.FileKey), zap.Error(err))
	}
	return nil
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }
