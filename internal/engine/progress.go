package engine

import (
	"sync"
	"sync/atomic"

	"github.com/muhammad1505/idm-open/internal/segment"
	"github.com/muhammad1505/idm-open/internal/storage"
	"github.com/muhammad1505/idm-open/internal/task"
)

// progressTracker aggregates byte counts across a task's segment workers and
// flushes (segments + task) to storage and checks for an out-of-band status
// change (pause/cancel) at bounded intervals, rather than on every chunk.
type progressTracker struct {
	taskID task.ID
	store  storage.Store

	segMu    sync.Mutex
	segments []segment.Segment

	downloaded atomic.Uint64
	lastFlush  atomic.Uint64
	lastCheck  atomic.Uint64

	flushBytes uint64
	checkBytes uint64
}

func newProgressTracker(taskID task.ID, store storage.Store, segments []segment.Segment, downloaded, flushBytes, checkBytes uint64) *progressTracker {
	p := &progressTracker{
		taskID:     taskID,
		store:      store,
		segments:   segments,
		flushBytes: flushBytes,
		checkBytes: checkBytes,
	}
	p.downloaded.Store(downloaded)
	p.lastFlush.Store(downloaded)
	p.lastCheck.Store(downloaded)
	return p
}

func satSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// addBytes records n newly downloaded bytes for segment index and flushes to
// storage once accumulated bytes cross flushBytes since the last flush.
func (p *progressTracker) addBytes(index int, n uint64) error {
	p.segMu.Lock()
	if index >= 0 && index < len(p.segments) {
		seg := &p.segments[index]
		newValue := seg.DownloadedBytes + n
		if size := seg.Size(); size > 0 && newValue > size {
			newValue = size
		}
		seg.DownloadedBytes = newValue
	}
	p.segMu.Unlock()

	total := p.downloaded.Add(n)
	return p.maybeFlush(total)
}

func (p *progressTracker) maybeFlush(total uint64) error {
	last := p.lastFlush.Load()
	if satSub(total, last) < p.flushBytes {
		return nil
	}
	if !p.lastFlush.CompareAndSwap(last, total) {
		return nil
	}
	return p.flush(total)
}

func (p *progressTracker) flush(total uint64) error {
	t, err := p.store.LoadTask(p.taskID)
	if err != nil {
		return err
	}
	t.DownloadedBytes = total
	t.Touch()
	if err := p.store.SaveTask(t); err != nil {
		return err
	}
	return p.persistSegments()
}

func (p *progressTracker) persistSegments() error {
	return p.store.SaveSegments(p.taskID, p.snapshotSegments())
}

func (p *progressTracker) snapshotSegments() []segment.Segment {
	p.segMu.Lock()
	defer p.segMu.Unlock()
	out := make([]segment.Segment, len(p.segments))
	copy(out, p.segments)
	return out
}

func (p *progressTracker) segmentRange(index int) (start, end, downloaded uint64, ok bool) {
	p.segMu.Lock()
	defer p.segMu.Unlock()
	if index < 0 || index >= len(p.segments) {
		return 0, 0, 0, false
	}
	seg := p.segments[index]
	return seg.RangeStart, seg.RangeEnd, seg.DownloadedBytes, true
}

func (p *progressTracker) markSegmentCompleted(index int) {
	p.segMu.Lock()
	if index >= 0 && index < len(p.segments) {
		p.segments[index].Status = segment.StatusCompleted
	}
	p.segMu.Unlock()
}

// maybeCheckStatus re-reads the task's persisted status once accumulated
// bytes cross checkBytes since the last check, raising flag when storage
// shows a Pause or Cancel requested from outside the worker.
func (p *progressTracker) maybeCheckStatus(flag *stopFlag) {
	total := p.downloaded.Load()
	last := p.lastCheck.Load()
	if satSub(total, last) < p.checkBytes {
		return
	}
	if !p.lastCheck.CompareAndSwap(last, total) {
		return
	}
	t, err := p.store.LoadTask(p.taskID)
	if err != nil {
		return
	}
	switch t.Status {
	case task.StatusPaused:
		flag.raise(stopPaused)
	case task.StatusCanceled:
		flag.raise(stopCanceled)
	}
}
