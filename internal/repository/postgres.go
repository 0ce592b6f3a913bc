package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/tasklab/taskd/internal/models"
)

type PostgresTaskRepository struct {
	db *sql.DB
}

func NewPostgresTaskRepository(dsn string) (*PostgresTaskRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &PostgresTaskRepository{db: db}
	if err := r.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return r, nil
}

func (r *PostgresTaskRepository) ensureSchema() error {
	const query = `
	CREATE TABLE IF NOT EXISTS tasks (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		completed   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`
	_, err := r.db.Exec(query)
	return err
}

func (r *PostgresTaskRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresTaskRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresTaskRepository) Create(ctx context.Context, task *models.Task) error {
	query := `INSERT INTO tasks (id, title, description, completed, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query,
		task.ID, task.Title, task.Description, task.Completed, task.CreatedAt, task.UpdatedAt)
	return err
}

func (r *PostgresTaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT id, title, description, completed, created_at, updated_at FROM tasks WHERE id = $1`
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

func (r *PostgresTaskRepository) List(ctx context.Context) ([]*models.Task, error) {
	query := `SELECT id, title, description, completed, created_at, updated_at FROM tasks ORDER BY created_at DESC, id`
	return r.queryTasks(ctx, query)
}

// Update patches the provided fields in a single statement; nil pointers
// become NULL and COALESCE keeps the stored value.
func (r *PostgresTaskRepository) Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	query := `UPDATE tasks
              SET title       = COALESCE($2, title),
                  description = COALESCE($3, description),
                  completed   = COALESCE($4, completed),
                  updated_at  = NOW()
              WHERE id = $1
              RETURNING id, title, description, completed, created_at, updated_at`
	task := &models.Task{}
	err := r.db.QueryRowContext(ctx, query, id, patch.Title, patch.Description, patch.Completed).Scan(
		&task.ID, &task.Title, &task.Description, &task.Completed, &task.CreatedAt, &task.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *PostgresTaskRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM tasks WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
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

func (r *PostgresTaskRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count)
	return count, err
}

func (r *PostgresTaskRepository) Stats(ctx context.Context) (models.StoreStats, error) {
	var stats models.StoreStats
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE completed) FROM tasks`
	if err := r.db.QueryRowContext(ctx, query).Scan(&stats.Total, &stats.Completed); err != nil {
		return models.StoreStats{}, err
	}
	stats.Pending = stats.Total - stats.Completed
	return stats, nil
}

func (r *PostgresTaskRepository) SearchByTitle(ctx context.Context, titleSubstring string) ([]*models.Task, error) {
	query := `SELECT id, title, description, completed, created_at, updated_at FROM tasks WHERE title ILIKE $1 ORDER BY created_at DESC, id`
	return r.queryTasks(ctx, query, "%"+titleSubstring+"%")
}

func (r *PostgresTaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
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
