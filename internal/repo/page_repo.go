package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/lectern-app/lectern/internal/model"
	"github.com/lectern-app/lectern/internal/pkg/dbutil"
	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
)

type PageRepo struct {
	db *sql.DB
}

func NewPageRepo(db *sql.DB) *PageRepo {
	return &PageRepo{db: db}
}

// Create inserts one page. The foreign key to documents makes this fail once
// the document is deleted; callers treat that as "stop writing", not as
// corruption.
func (r *PageRepo) Create(ctx context.Context, page *model.Page) error {
	data := map[string]interface{}{
		"id":              page.ID,
		"document_id":     page.DocumentID,
		"page_number":     page.PageNumber,
		"original_text":   page.OriginalText,
		"translated_text": page.TranslatedText,
	}
	sqlStr, args, err := builder.BuildInsert("pages", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsForeignKeyViolation(err) {
			return appErr.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *PageRepo) ListByDocument(ctx context.Context, documentID string) ([]model.Page, error) {
	where := map[string]interface{}{
		"document_id": documentID,
		"_orderby":    "page_number asc",
	}
	sqlStr, args, err := builder.BuildSelect("pages", where,
		[]string{"id", "document_id", "page_number", "original_text", "translated_text"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	pages := make([]model.Page, 0)
	for rows.Next() {
		var p model.Page
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.PageNumber, &p.OriginalText, &p.TranslatedText); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// ListTranslated returns only translation-complete pages, in page order;
// these are the pages eligible for indexing.
func (r *PageRepo) ListTranslated(ctx context.Context, documentID string) ([]model.Page, error) {
	const query = `
		SELECT id, document_id, page_number, original_text, translated_text
		FROM pages
		WHERE document_id = $1 AND translated_text IS NOT NULL
		ORDER BY page_number ASC
	`
	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	pages := make([]model.Page, 0)
	for rows.Next() {
		var p model.Page
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.PageNumber, &p.OriginalText, &p.TranslatedText); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
