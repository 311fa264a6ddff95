// Package throttle enforces global and per-task byte-rate limits without a
// token bucket: each limiter tracks cumulative bytes since it started and
// sleeps just long enough to keep the observed rate at or below its limit.
package throttle

import (
	"sync"
	"time"
)

// Limiter is a single rate dimension (global or per-task), constructed once
// and shared by every Throttle that should count against it.
type Limiter = limiterState

// NewLimiter builds a standalone rate limiter. A zero limit means unlimited:
// it never adds to a Throttle's Sleep.
func NewLimiter(bytesPerSec uint64) *Limiter {
	return newLimiterState(bytesPerSec)
}

type limiterState struct {
	mu            sync.Mutex
	start         time.Time
	bytes         uint64
	limitBytesSec uint64
}

func newLimiterState(limit uint64) *limiterState {
	return &limiterState{start: time.Now(), limitBytesSec: limit}
}

func (s *limiterState) reserveSleep(bytes uint64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bytes += bytes
	if s.limitBytesSec == 0 {
		return 0
	}
	expected := float64(s.bytes) / float64(s.limitBytesSec)
	elapsed := time.Since(s.start).Seconds()
	if expected > elapsed {
		return time.Duration((expected - elapsed) * float64(time.Second))
	}
	return 0
}

// Throttle bundles an optional shared global limiter and an optional
// per-task limiter. Every task's Throttle wraps its own fresh per-task
// limiter but shares the single engine-wide global Limiter instance, so
// bytes from concurrent tasks all count against the same global budget.
type Throttle struct {
	global  *limiterState
	perTask *limiterState
}

// New builds a Throttle for one task: global may be nil (no global limit, or
// not shared with this task), perTaskBytesPerSec zero disables the per-task
// dimension.
func New(global *Limiter, perTaskBytesPerSec uint64) *Throttle {
	t := &Throttle{global: global}
	if perTaskBytesPerSec > 0 {
		t.perTask = newLimiterState(perTaskBytesPerSec)
	}
	return t
}

// Sleep blocks long enough to keep both configured limiters at or below
// their rate, given that `bytes` were just observed. A no-op when neither
// limiter is configured.
func (t *Throttle) Sleep(bytes uint64) {
	var maxSleep time.Duration
	if t.global != nil {
		if s := t.global.reserveSleep(bytes); s > maxSleep {
			maxSleep = s
		}
	}
	if t.perTask != nil {
		if s := t.perTask.reserveSleep(bytes); s > maxSleep {
			maxSleep = s
		}
	}
	if maxSleep > 0 {
		time.Sleep(maxSleep)
	}
}
