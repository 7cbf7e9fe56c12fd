package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/lectern-app/lectern/internal/model"
	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
)

type projectStore interface {
	Create(ctx context.Context, project *model.Project) error
	ListByOwner(ctx context.Context, ownerID string) ([]model.Project, error)
	Get(ctx context.Context, ownerID, projectID string) (*model.Project, error)
	Update(ctx context.Context, project *model.Project) error
	Delete(ctx context.Context, ownerID, projectID string) error
}

// ProjectService manages owner-scoped projects. Every lookup carries the
// owner id, so a foreign project behaves exactly like a missing one.
type ProjectService struct {
	projects projectStore
}

func NewProjectService(projects projectStore) *ProjectService {
	return &ProjectService{projects: projects}
}

func (s *ProjectService) Create(ctx context.Context, ownerID, title, description string) (*model.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title required", appErr.ErrInvalid)
	}
	now := nowMilli()
	project := &model.Project{
		ID:          newID(),
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) List(ctx context.Context, ownerID string) ([]model.Project, error) {
	return s.projects.ListByOwner(ctx, ownerID)
}

func (s *ProjectService) Get(ctx context.Context, ownerID, projectID string) (*model.Project, error) {
	return s.projects.Get(ctx, ownerID, projectID)
}

func (s *ProjectService) Update(ctx context.Context, ownerID, projectID, title, description string) (*model.Project, error) {
	project, err := s.projects.Get(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title != "" {
		project.Title = title
	}
	project.Description = strings.TrimSpace(description)
	project.Mtime = nowMilli()
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Delete removes the project; documents, pages, messages, quizzes and index
// entries go with it through the schema's cascades.
func (s *ProjectService) Delete(ctx context.Context, ownerID, projectID string) error {
	return s.projects.Delete(ctx, ownerID, projectID)
}
