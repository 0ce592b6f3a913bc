package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tasklab/taskd/internal/models"
)

// MemoryTaskRepository keeps all tasks in a mutex-guarded map. It is the
// default driver: nothing survives a process restart, and that is intended.
// Values are copied on the way in and out, so the store is the only owner
// of a task's mutable state.
type MemoryTaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]models.Task
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{tasks: make(map[string]models.Task)}
}

func (r *MemoryTaskRepository) Create(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = *task
	return nil
}

func (r *MemoryTaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &t, nil
}

func (r *MemoryTaskRepository) List(ctx context.Context) ([]*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(func(models.Task) bool { return true }), nil
}

// Update applies the patch entirely under the write lock, so two concurrent
// patches to the same task never interleave field-wise.
func (r *MemoryTaskRepository) Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, models.ErrNotFound
	}

	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	t.UpdatedAt = time.Now().UTC()

	r.tasks[id] = t
	return &t, nil
}

func (r *MemoryTaskRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *MemoryTaskRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks), nil
}

func (r *MemoryTaskRepository) Stats(ctx context.Context) (models.StoreStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := models.StoreStats{Total: len(r.tasks)}
	for _, t := range r.tasks {
		if t.Completed {
			stats.Completed++
		}
	}
	stats.Pending = stats.Total - stats.Completed
	return stats, nil
}

func (r *MemoryTaskRepository) SearchByTitle(ctx context.Context, titleSubstring string) ([]*models.Task, error) {
	needle := strings.ToLower(titleSubstring)

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(func(t models.Task) bool {
		return strings.Contains(strings.ToLower(t.Title), needle)
	}), nil
}

// snapshotLocked copies matching tasks out of the map, newest first.
// Callers must hold at least the read lock.
func (r *MemoryTaskRepository) snapshotLocked(match func(models.Task) bool) []*models.Task {
	out := make([]*models.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if match(t) {
			task := t
			out = append(out, &task)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
