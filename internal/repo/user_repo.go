package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/lectern-app/lectern/internal/model"
	"github.com/lectern-app/lectern/internal/pkg/dbutil"
	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	data := map[string]interface{}{
		"id":            user.ID,
		"email":         user.Email,
		"username":      user.Username,
		"password_hash": user.PasswordHash,
		"ctime":         user.Ctime,
		"mtime":         user.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("users", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

// Upsert creates the identity or refreshes its mutable fields. Idempotent,
// keyed by id; the password hash is never touched here.
func (r *UserRepo) Upsert(ctx context.Context, user *model.User) error {
	const query = `
		INSERT INTO users (id, email, username, password_hash, ctime, mtime)
		VALUES ($1, $2, $3, '', $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			username = EXCLUDED.username,
			mtime = EXCLUDED.mtime
	`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.Username, user.Ctime, user.Mtime)
	return err
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getBy(ctx, map[string]interface{}{"id": id})
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, map[string]interface{}{"email": email})
}

func (r *UserRepo) getBy(ctx context.Context, where map[string]interface{}) (*model.User, error) {
	sqlStr, args, err := builder.BuildSelect("users", where,
		[]string{"id", "email", "username", "password_hash", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var user model.User
	if err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.Ctime, &user.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
