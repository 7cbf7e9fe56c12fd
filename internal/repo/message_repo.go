package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/lectern-app/lectern/internal/model"
	"github.com/lectern-app/lectern/internal/pkg/dbutil"
	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(ctx context.Context, msg *model.Message) error {
	sources := msg.Sources
	if sources == nil {
		sources = []model.MessageSource{}
	}
	blob, err := json.Marshal(sources)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":         msg.ID,
		"project_id": msg.ProjectID,
		"role":       msg.Role,
		"content":    msg.Content,
		"sources":    blob,
		"ctime":      msg.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("messages", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// ListByProject returns the append-only log in creation order; id breaks
// ties for messages created in the same millisecond.
func (r *MessageRepo) ListByProject(ctx context.Context, projectID string) ([]model.Message, error) {
	const query = `
		SELECT id, project_id, role, content, sources, ctime
		FROM messages
		WHERE project_id = $1
		ORDER BY ctime ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	messages := make([]model.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// LastAssistant returns the most recent assistant message, used to seed
// suggested-question retrieval.
func (r *MessageRepo) LastAssistant(ctx context.Context, projectID string) (*model.Message, error) {
	const query = `
		SELECT id, project_id, role, content, sources, ctime
		FROM messages
		WHERE project_id = $1 AND role = $2
		ORDER BY ctime DESC, id DESC
		LIMIT 1
	`
	rows, err := r.db.QueryContext(ctx, query, projectID, model.MessageRoleAssistant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	return scanMessage(rows)
}

// ListRecent returns up to limit messages ending at the newest, in
// chronological order; chat uses this as the conversation window.
func (r *MessageRepo) ListRecent(ctx context.Context, projectID string, limit int) ([]model.Message, error) {
	const query = `
		SELECT id, project_id, role, content, sources, ctime
		FROM (
			SELECT id, project_id, role, content, sources, ctime
			FROM messages
			WHERE project_id = $1
			ORDER BY ctime DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY ctime ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	messages := make([]model.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func scanMessage(rows *sql.Rows) (*model.Message, error) {
	var msg model.Message
	var blob []byte
	if err := rows.Scan(&msg.ID, &msg.ProjectID, &msg.Role, &msg.Content, &blob, &msg.Ctime); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(blob, &msg.Sources); err != nil {
		return nil, err
	}
	return &msg, nil
}
