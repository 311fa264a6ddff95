package throttle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottle_NoLimitsNeverSleeps(t *testing.T) {
	thr := New(nil, 0)
	start := time.Now()
	thr.Sleep(10 * 1024 * 1024)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestThrottle_PerTaskLimitSlowsDownBurst(t *testing.T) {
	thr := New(nil, 1024)

	start := time.Now()
	thr.Sleep(1024)
	thr.Sleep(2048)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 1500*time.Millisecond)
}

func TestThrottle_GlobalLimiterSharedAcrossThrottles(t *testing.T) {
	global := NewLimiter(1024)
	a := New(global, 0)
	b := New(global, 0)

	a.Sleep(1024)
	start := time.Now()
	b.Sleep(1024)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
}
