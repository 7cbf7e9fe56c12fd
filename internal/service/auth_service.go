package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lectern-app/lectern/internal/model"
	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
	"github.com/lectern-app/lectern/internal/pkg/jwt"
	"github.com/lectern-app/lectern/internal/pkg/password"
)

type userStore interface {
	Create(ctx context.Context, user *model.User) error
	Upsert(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// AuthService handles account registration and credential login, issuing JWTs
// that the middleware validates on every authenticated route.
type AuthService struct {
	users  userStore
	secret []byte
	ttl    time.Duration
}

func NewAuthService(users userStore, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{users: users, secret: secret, ttl: ttl}
}

func (s *AuthService) Register(ctx context.Context, email, username, plain string) (*model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = strings.TrimSpace(username)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", appErr.ErrInvalid)
	}
	if username == "" {
		return nil, fmt.Errorf("%w: username required", appErr.ErrInvalid)
	}
	if len(plain) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", appErr.ErrInvalid)
	}

	hash, err := password.Hash(plain)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := nowMilli()
	user := &model.User{
		ID:           newID(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if appErr.IsConflict(err) {
			return nil, fmt.Errorf("%w: email already registered", appErr.ErrConflict)
		}
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and returns a signed token. Unknown email and
// wrong password produce the same error so the endpoint does not leak which
// accounts exist.
func (s *AuthService) Login(ctx context.Context, email, plain string) (string, *model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if appErr.IsNotFound(err) {
			return "", nil, fmt.Errorf("%w: bad credentials", appErr.ErrUnauthorized)
		}
		return "", nil, err
	}
	if err := password.Compare(user.PasswordHash, plain); err != nil {
		return "", nil, fmt.Errorf("%w: bad credentials", appErr.ErrUnauthorized)
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, user.Username, s.secret, s.ttl)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, user, nil
}

// UpsertIdentity refreshes profile fields for an authenticated user, creating
// the row when it does not exist yet. Used by the profile update endpoint.
func (s *AuthService) UpsertIdentity(ctx context.Context, userID, email, username string) (*model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = strings.TrimSpace(username)
	if email == "" || username == "" {
		return nil, fmt.Errorf("%w: email and username required", appErr.ErrInvalid)
	}
	now := nowMilli()
	user := &model.User{
		ID:       userID,
		Email:    email,
		Username: username,
		Ctime:    now,
		Mtime:    now,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}
