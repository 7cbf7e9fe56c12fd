package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lectern-app/lectern/internal/model"
)

const janitorBatchSize = 10

type unindexedLister interface {
	ListProcessedUnindexed(ctx context.Context, limit int) ([]model.Document, error)
}

type reindexer interface {
	Index(ctx context.Context, doc *model.Document) error
}

// IndexJanitorJob repairs drift between documents and the vector index. A
// processed document with pages but no index entries (a crash after the
// status write, a manual row fix) gets re-indexed in place.
type IndexJanitorJob struct {
	docs    unindexedLister
	indexer reindexer
}

func NewIndexJanitorJob(docs unindexedLister, indexer reindexer) *IndexJanitorJob {
	return &IndexJanitorJob{docs: docs, indexer: indexer}
}

func (j *IndexJanitorJob) Name() string {
	return "index_janitor"
}

func (j *IndexJanitorJob) Run(ctx context.Context) error {
	docs, err := j.docs.ListProcessedUnindexed(ctx, janitorBatchSize)
	if err != nil {
		return err
	}
	for i := range docs {
		doc := &docs[i]
		if err := j.indexer.Index(ctx, doc); err != nil {
			logutil.GetLogger(ctx).Warn("reindex failed",
				zap.String("document_id", doc.ID),
				zap.Error(err),
			)
			continue
		}
		logutil.GetLogger(ctx).Info("document reindexed", zap.String("document_id", doc.ID))
	}
	return nil
}
