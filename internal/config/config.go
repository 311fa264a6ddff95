// Package config holds the engine's tunable parameters. It is a plain value
// type copied into every worker; nothing here is process-global except the
// one documented environment variable read at destination-resolution time.
package config

// EngineConfig configures every aspect of task admission, segmentation, and
// retry/throttle behavior. Zero valued fields for the two speed limits mean
// "unlimited".
type EngineConfig struct {
	MaxConcurrentTasks         int
	MaxSegmentsPerTask         uint32
	MinSegmentSizeBytes        uint64
	GlobalSpeedLimitBytesPerSec  uint64
	PerTaskSpeedLimitBytesPerSec uint64
	UserAgent          string
	RetryCount         uint32
	RetryBackoffSecs   uint64
	ProgressFlushBytes uint64
	StatusCheckBytes   uint64
}

// Default returns the engine's baseline configuration.
func Default() EngineConfig {
	return EngineConfig{
		MaxConcurrentTasks:           4,
		MaxSegmentsPerTask:           8,
		MinSegmentSizeBytes:          2 * 1024 * 1024,
		GlobalSpeedLimitBytesPerSec:  0,
		PerTaskSpeedLimitBytesPerSec: 0,
		UserAgent:                    "IDM-Open/0.1",
		RetryCount:                   5,
		RetryBackoffSecs:             3,
		ProgressFlushBytes:           1024 * 1024,
		StatusCheckBytes:             512 * 1024,
	}
}
