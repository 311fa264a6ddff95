package engine

import "sync/atomic"

// stopFlag is an upgrade-only, cooperative stop signal shared by a task's
// segment workers. Paused < Canceled < Failed: once raised to a higher
// value it never drops back down, so a late Pause can't undo an already
// observed Failed.
type stopFlag struct {
	v atomic.Uint32
}

const (
	stopNone uint32 = iota
	stopPaused
	stopCanceled
	stopFailed
)

func (f *stopFlag) raise(to uint32) {
	for {
		cur := f.v.Load()
		if cur >= to {
			return
		}
		if f.v.CompareAndSwap(cur, to) {
			return
		}
	}
}

func (f *stopFlag) get() uint32 {
	return f.v.Load()
}
