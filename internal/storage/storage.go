// Package storage persists tasks and their segments. Store is implemented
// both in memory (for tests and ephemeral runs) and atop SQLite (for
// durability across process restarts).
package storage

import (
	"github.com/muhammad1505/idm-open/internal/segment"
	"github.com/muhammad1505/idm-open/internal/task"
)

// Store is the persistence boundary the engine depends on. Every method is
// expected to be safe for concurrent use.
type Store interface {
	SaveTask(t *task.Task) error
	LoadTask(id task.ID) (*task.Task, error)
	ListTasks() ([]*task.Task, error)
	DeleteTask(id task.ID) error

	SaveSegments(taskID task.ID, segments []segment.Segment) error
	LoadSegments(taskID task.ID) ([]segment.Segment, error)
}
