package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/tasklab/taskd/internal/models"
)

// SQLiteTaskRepository is a single-file alternative to postgres, handy for
// local runs that should survive a restart without a database server.
type SQLiteTaskRepository struct {
	db *sql.DB
}

func NewSQLiteTaskRepository(path string) (*SQLiteTaskRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	const query = `
	CREATE TABLE IF NOT EXISTS tasks (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		completed   BOOLEAN NOT NULL DEFAULT 0,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	)`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteTaskRepository{db: db}, nil
}

func (r *SQLiteTaskRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteTaskRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteTaskRepository) Create(ctx context.Context, task *models.Task) error {
	query := `INSERT INTO tasks (id, title, description, completed, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		task.ID, task.Title, task.Description, task.Completed, task.CreatedAt, task.UpdatedAt)
	return err
}

func (r *SQLiteTaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT id, title, description, completed, created_at, updated_at FROM tasks WHERE id = ?`
	task := &models.Task{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&task.ID, &task.Title, &task.Description, &task.Completed, &task.CreatedAt, &task.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *SQLiteTaskRepository) List(ctx context.Context) ([]*models.Task, error) {
	query := `SELECT id, title, description, completed, created_at, updated_at FROM tasks ORDER BY created_at DESC, id`
	return r.queryTasks(ctx, query)
}

func (r *SQLiteTaskRepository) Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	query := `UPDATE tasks
              SET title       = COALESCE(?, title),
                  description = COALESCE(?, description),
                  completed   = COALESCE(?, completed),
                  updated_at  = CURRENT_TIMESTAMP
              WHERE id = ?
              RETURNING id, title, description, completed, created_at, updated_at`
	task := &models.Task{}
	err := r.db.QueryRowContext(ctx, query, patch.Title, patch.Description, patch.Completed, id).Scan(
		&task.ID, &task.Title, &task.Description, &task.Completed, &task.CreatedAt, &task.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *SQLiteTaskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *SQLiteTaskRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count)
	return count, err
}

func (r *SQLiteTaskRepository) Stats(ctx context.Context) (models.StoreStats, error) {
	var stats models.StoreStats
	query := `SELECT COUNT(*), COALESCE(SUM(completed), 0) FROM tasks`
	if err := r.db.QueryRowContext(ctx, query).Scan(&stats.Total, &stats.Completed); err != nil {
		return models.StoreStats{}, err
	}
	stats.Pending = stats.Total - stats.Completed
	return stats, nil
}

func (r *SQLiteTaskRepository) SearchByTitle(ctx context.Context, titleSubstring string) ([]*models.Task, error) {
	// SQLite LIKE is case-insensitive for ASCII, matching the postgres ILIKE behavior.
	query := `SELECT id, title, description, completed, created_at, updated_at FROM tasks WHERE title LIKE ? ORDER BY created_at DESC, id`
	return r.queryTasks(ctx, query, "%"+titleSubstring+"%")
}

func (r *SQLiteTaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task := &models.Task{}
		err := rows.Scan(&task.ID, &task.Title, &task.Description, &task.Completed, &task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
