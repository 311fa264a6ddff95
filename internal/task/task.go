// Package task defines the download task model: identity, status, and the
// mutable fields the engine persists across the task's lifetime.
package task

import (
	"time"

	"github.com/google/uuid"

	"github.com/muhammad1505/idm-open/internal/checksum"
)

// ID uniquely identifies a task. It serializes to its canonical UUID string
// form and parses back via ParseID.
type ID = uuid.UUID

// NewID generates a fresh random task ID.
func NewID() ID {
	return uuid.New()
}

// ParseID parses the canonical textual form of an ID.
func ParseID(s string) (ID, error) {
	return uuid.Parse(s)
}

// Status is the task's position in its lifecycle state machine.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// ParseStatus recovers a Status from its persisted lowercase form.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusQueued, StatusActive, StatusPaused, StatusCompleted, StatusFailed, StatusCanceled:
		return Status(s), true
	default:
		return "", false
	}
}

// Task is a single download's full persisted state.
type Task struct {
	ID              ID
	URL             string
	DestPath        string
	Status          Status
	Priority        int32
	TotalBytes      uint64
	DownloadedBytes uint64
	Headers         map[string]string
	Cookies         map[string]string
	Mirrors         []string
	Checksum        *checksum.Request
	ProxyURL        string
	AuthUser        string
	AuthPass        string
	CreatedAt       int64
	UpdatedAt       int64
	Error           string
}

// New creates a freshly queued task for url/destPath.
func New(url, destPath string) *Task {
	now := time.Now().Unix()
	return &Task{
		ID:        NewID(),
		URL:       url,
		DestPath:  destPath,
		Status:    StatusQueued,
		Headers:   map[string]string{},
		Cookies:   map[string]string{},
		Mirrors:   nil,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch refreshes UpdatedAt to the current time.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().Unix()
}

// URLCandidates returns the primary URL followed by any mirrors that are not
// textually identical to it, in mirror order.
func (t *Task) URLCandidates() []string {
	urls := make([]string, 0, 1+len(t.Mirrors))
	urls = append(urls, t.URL)
	for _, m := range t.Mirrors {
		if m != t.URL {
			urls = append(urls, m)
		}
	}
	return urls
}

// Clone returns a deep copy safe to hand across goroutine boundaries.
func (t *Task) Clone() *Task {
	c := *t
	c.Headers = make(map[string]string, len(t.Headers))
	for k, v := range t.Headers {
		c.Headers[k] = v
	}
	c.Cookies = make(map[string]string, len(t.Cookies))
	for k, v := range t.Cookies {
		c.Cookies[k] = v
	}
	c.Mirrors = append([]string(nil), t.Mirrors...)
	if t.Checksum != nil {
		cs := *t.Checksum
		c.Checksum = &cs
	}
	return &c
}
