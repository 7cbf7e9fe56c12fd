package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/lectern-app/lectern/internal/model"
	"github.com/lectern-app/lectern/internal/pkg/dbutil"
	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
)

type ProjectRepo struct {
	db *sql.DB
}

func NewProjectRepo(db *sql.DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

var projectFields = []string{"id", "owner_id", "title", "description", "ctime", "mtime"}

func (r *ProjectRepo) Create(ctx context.Context, project *model.Project) error {
	data := map[string]interface{}{
		"id":          project.ID,
		"owner_id":    project.OwnerID,
		"title":       project.Title,
		"description": project.Description,
		"ctime":       project.Ctime,
		"mtime":       project.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("projects", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ProjectRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.Project, error) {
	where := map[string]interface{}{
		"owner_id": ownerID,
		"_orderby": "ctime desc",
	}
	sqlStr, args, err := builder.BuildSelect("projects", where, projectFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	projects := make([]model.Project, 0)
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Ctime, &p.Mtime); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Get scopes by owner: a project that exists but belongs to someone else is
// indistinguishable from a missing one.
func (r *ProjectRepo) Get(ctx context.Context, ownerID, projectID string) (*model.Project, error) {
	where := map[string]interface{}{
		"id":       projectID,
		"owner_id": ownerID,
	}
	sqlStr, args, err := builder.BuildSelect("projects", where, projectFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var p model.Project
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Ctime, &p.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepo) Update(ctx context.Context, project *model.Project) error {
	where := map[string]interface{}{
		"id":       project.ID,
		"owner_id": project.OwnerID,
	}
	update := map[string]interface{}{
		"title":       project.Title,
		"description": project.Description,
		"mtime":       project.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("projects", where, update)
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

// Delete cascades to documents, pages, messages, quizzes and index entries
// through foreign keys.
func (r *ProjectRepo) Delete(ctx context.Context, ownerID, projectID string) error {
	where := map[string]interface{}{
		"id":       projectID,
		"owner_id": ownerID,
	}
	sqlStr, args, err := builder.BuildDelete("projects", where)
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
