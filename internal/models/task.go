package models

import (
	"errors"
	"time"
)

// ErrNotFound is the only domain error: the referenced task id is absent.
var ErrNotFound = errors.New("task not found")

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskPatch carries a partial update: nil fields are left unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	Completed   *bool
}

type StoreStats struct {
	Total     int
	Completed int
	Pending   int
}
