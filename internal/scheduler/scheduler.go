// Package scheduler holds the single admission predicate that bounds how
// many tasks may run concurrently.
package scheduler

// Scheduler admits a new task whenever fewer than MaxActive are running.
type Scheduler struct {
	MaxActive int
}

// New returns a Scheduler capped at maxActive concurrent tasks.
func New(maxActive int) Scheduler {
	return Scheduler{MaxActive: maxActive}
}

// CanStart reports whether another task may be admitted given activeCount
// currently running.
func (s Scheduler) CanStart(activeCount int) bool {
	return activeCount < s.MaxActive
}
