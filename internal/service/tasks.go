package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tasklab/taskd/internal/models"
	"github.com/tasklab/taskd/internal/repository"
)

var (
	ErrEmptyTitle = errors.New("title is required")
	ErrEmptyPatch = errors.New("provide at least one field: title, description or completed")
)

// sanitizeInput replaces characters that are dangerous when the stored text
// is later rendered into HTML.
func sanitizeInput(input string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(input)
}

type TaskService struct {
	repo repository.TaskRepository
}

func NewTaskService(repo repository.TaskRepository) *TaskService {
	return &TaskService{
		repo: repo,
	}
}

// Create allocates the id and timestamps; it is the only place ids are minted,
// so concurrent creates can never collide.
func (s *TaskService) Create(ctx context.Context, title, description string) (*models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	now := time.Now().UTC()
	task := &models.Task{
		ID:          "t_" + uuid.New().String(),
		Title:       sanitizeInput(title),
		Description: sanitizeInput(description),
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) GetByID(ctx context.Context, id string) (*models.Task, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TaskService) List(ctx context.Context) ([]*models.Task, error) {
	return s.repo.List(ctx)
}

// Update applies a partial patch: nil fields keep their stored value.
func (s *TaskService) Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	if patch.Title == nil && patch.Description == nil && patch.Completed == nil {
		return nil, ErrEmptyPatch
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, ErrEmptyTitle
		}
		title = sanitizeInput(title)
		patch.Title = &title
	}
	if patch.Description != nil {
		description := sanitizeInput(*patch.Description)
		patch.Description = &description
	}

	return s.repo.Update(ctx, id, patch)
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *TaskService) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *TaskService) Stats(ctx context.Context) (models.StoreStats, error) {
	return s.repo.Stats(ctx)
}

func (s *TaskService) SearchByTitle(ctx context.Context, query string) ([]*models.Task, error) {
	return s.repo.SearchByTitle(ctx, sanitizeInput(query))
}
