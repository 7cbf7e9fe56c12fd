package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/lectern-app/lectern/internal/model"
)

type IndexRepo struct {
	db *sql.DB
}

func NewIndexRepo(db *sql.DB) *IndexRepo {
	return &IndexRepo{db: db}
}

// ReplaceForDocument swaps a document's entries for a new set in one
// transaction. Re-running an index build therefore yields the same
// retrievable set as running it once, and concurrent builds for other
// documents are untouched.
func (r *IndexRepo) ReplaceForDocument(ctx context.Context, documentID string, entries []model.IndexEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM index_entries WHERE document_id = $1`, documentID); err != nil {
		return err
	}
	const insert = `
		INSERT INTO index_entries (id, project_id, document_id, page_number, chunk_pos, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, insert,
			e.ID, e.ProjectID, e.DocumentID, e.PageNumber, e.ChunkPos, e.Content,
			pgvector.NewVector(e.Embedding),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *IndexRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM index_entries WHERE document_id = $1`, documentID)
	return err
}

// Search ranks a project's entries by cosine distance to the query vector.
// Failed documents are filtered out; deleted ones are already gone via the
// foreign key cascade.
func (r *IndexRepo) Search(ctx context.Context, projectID string, queryEmbedding []float32, k int) ([]model.PageRef, error) {
	const query = `
		SELECT e.document_id, d.name, e.page_number, e.content, e.embedding <=> $2 AS distance
		FROM index_entries e
		JOIN documents d ON d.id = e.document_id
		WHERE e.project_id = $1 AND d.status IN ($3, $4)
		ORDER BY distance ASC
		LIMIT $5
	`
	rows, err := r.db.QueryContext(ctx, query,
		projectID, pgvector.NewVector(queryEmbedding),
		model.DocumentStatusProcessing, model.DocumentStatusProcessed, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	refs := make([]model.PageRef, 0, k)
	for rows.Next() {
		var ref model.PageRef
		var distance float64
		if err := rows.Scan(&ref.DocumentID, &ref.DocumentName, &ref.PageNumber, &ref.Content, &distance); err != nil {
			return nil, err
		}
		ref.Score = 1 - distance
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// CountByDocument is used by tests and the janitor to observe index state.
func (r *IndexRepo) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM index_entries WHERE document_id = $1`, documentID).Scan(&count)
	return count, err
}
