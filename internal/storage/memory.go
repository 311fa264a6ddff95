package storage

import (
	"sync"

	"github.com/muhammad1505/idm-open/internal/errs"
	"github.com/muhammad1505/idm-open/internal/segment"
	"github.com/muhammad1505/idm-open/internal/task"
)

// MemoryStore keeps tasks and segments in process memory. It never survives
// a restart; use SQLiteStore for that.
type MemoryStore struct {
	mu       sync.RWMutex
	tasks    map[task.ID]*task.Task
	segments map[task.ID][]segment.Segment
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		tasks:    make(map[task.ID]*task.Task),
		segments: make(map[task.ID][]segment.Segment),
	}
}

func (m *MemoryStore) SaveTask(t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t.Clone()
	return nil
}

func (m *MemoryStore) LoadTask(id task.ID) (*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "task %s not found", id)
	}
	return t.Clone(), nil
}

func (m *MemoryStore) ListTasks() ([]*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*task.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (m *MemoryStore) DeleteTask(id task.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	delete(m.segments, id)
	return nil
}

func (m *MemoryStore) SaveSegments(taskID task.ID, segments []segment.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]segment.Segment, len(segments))
	copy(cp, segments)
	m.segments[taskID] = cp
	return nil
}

func (m *MemoryStore) LoadSegments(taskID task.ID) ([]segment.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	segments, ok := m.segments[taskID]
	if !ok {
		return nil, nil
	}
	cp := make([]segment.Segment, len(segments))
	copy(cp, segments)
	return cp, nil
}
