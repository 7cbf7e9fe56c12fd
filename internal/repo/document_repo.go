package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/lectern-app/lectern/internal/model"
	"github.com/lectern-app/lectern/internal/pkg/dbutil"
	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
)

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

var documentFields = []string{"id", "project_id", "name", "file_key", "status", "processing_message", "ctime"}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":                 doc.ID,
		"project_id":         doc.ProjectID,
		"name":               doc.Name,
		"file_key":           doc.FileKey,
		"status":             doc.Status,
		"processing_message": doc.ProcessingMessage,
		"ctime":              doc.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *DocumentRepo) ListByProject(ctx context.Context, projectID string) ([]model.Document, error) {
	where := map[string]interface{}{
		"project_id": projectID,
		"_orderby":   "ctime desc",
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]model.Document, 0)
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Name, &d.FileKey, &d.Status, &d.ProcessingMessage, &d.Ctime); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) Get(ctx context.Context, projectID, docID string) (*model.Document, error) {
	where := map[string]interface{}{
		"id":         docID,
		"project_id": projectID,
	}
	return r.getBy(ctx, where)
}

func (r *DocumentRepo) GetByID(ctx context.Context, docID string) (*model.Document, error) {
	return r.getBy(ctx, map[string]interface{}{"id": docID})
}

func (r *DocumentRepo) getBy(ctx context.Context, where map[string]interface{}) (*model.Document, error) {
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var d model.Document
	if err := row.Scan(&d.ID, &d.ProjectID, &d.Name, &d.FileKey, &d.Status, &d.ProcessingMessage, &d.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// UpdateStatus is the single write path for the polling surface: one UPDATE,
// so a concurrent reader sees either the old pair or the new pair, never a
// torn one. Returns ErrNotFound once the document has been deleted, which the
// pipeline treats as its stop signal.
func (r *DocumentRepo) UpdateStatus(ctx context.Context, docID, status, message string) error {
	where := map[string]interface{}{
		"id": docID,
	}
	update := map[string]interface{}{
		"status":             status,
		"processing_message": message,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// Delete removes the document; pages and index entries go with it via
// foreign keys, so retrieval never sees a deleted document's passages.
func (r *DocumentRepo) Delete(ctx context.Context, projectID, docID string) error {
	where := map[string]interface{}{
		"id":         docID,
		"project_id": projectID,
	}
	sqlStr, args, err := builder.BuildDelete("documents", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) CountProcessed(ctx context.Context, projectID string) (int, error) {
	const query = `SELECT COUNT(*) FROM documents WHERE project_id = $1 AND status = $2`
	var count int
	if err := r.db.QueryRowContext(ctx, query, projectID, model.DocumentStatusProcessed).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListProcessedUnindexed finds processed documents that have pages but no
// index entries. The index is derived data; this feeds the janitor that
// rebuilds it after a lost race or a restored backup.
func (r *DocumentRepo) ListProcessedUnindexed(ctx context.Context, limit int) ([]model.Document, error) {
	const query = `
		SELECT d.id, d.project_id, d.name, d.file_key, d.status, d.processing_message, d.ctime
		FROM documents d
		WHERE d.status = $1
		  AND EXISTS (SELECT 1 FROM pages p WHERE p.document_id = d.id)
		  AND NOT EXISTS (SELECT 1 FROM index_entries e WHERE e.document_id = d.id)
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, model.DocumentStatusProcessed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Name, &d.FileKey, &d.Status, &d.ProcessingMessage, &d.Ctime); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
