package repository

import (
	"context"

	"github.com/tasklab/taskd/internal/models"
)

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id string) (*models.Task, error)
	List(ctx context.Context) ([]*models.Task, error)
	Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	Stats(ctx context.Context) (models.StoreStats, error)
	SearchByTitle(ctx context.Context, titleSubstring string) ([]*models.Task, error)
}
