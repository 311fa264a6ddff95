// Package segment describes a task's byte-range decomposition and the
// concurrency heuristics used to pick it.
package segment

// Status is a segment's own progress state, independent of its owning task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ParseStatus recovers a Status from its persisted lowercase form.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusActive, StatusCompleted, StatusFailed:
		return Status(s), true
	default:
		return "", false
	}
}

// Segment is one contiguous, inclusive byte range of a task's content,
// downloaded independently of its siblings.
type Segment struct {
	Index           uint32
	RangeStart      uint64
	RangeEnd        uint64
	DownloadedBytes uint64
	Status          Status
}

// New builds a Pending segment covering [start, end].
func New(index uint32, start, end uint64) Segment {
	return Segment{Index: index, RangeStart: start, RangeEnd: end, Status: StatusPending}
}

// Size returns the inclusive range's byte length, or 0 for an inverted range.
func (s Segment) Size() uint64 {
	if s.RangeEnd >= s.RangeStart {
		return s.RangeEnd - s.RangeStart + 1
	}
	return 0
}

// CalculateSmartConcurrency picks a starting segment count from file size
// alone, before any user-configured clamp is applied.
func CalculateSmartConcurrency(totalBytes uint64) uint32 {
	switch {
	case totalBytes <= 20*1024*1024:
		return 1
	case totalBytes <= 200*1024*1024:
		return 4
	case totalBytes <= 2*1024*1024*1024:
		return 8
	default:
		return 16
	}
}

// BuildSegments partitions [0, totalBytes-1] into contiguous segments,
// clamped by maxSegments and by minSegmentSize, distributing the remainder
// bytes across the first segments so every range stays contiguous.
func BuildSegments(totalBytes uint64, maxSegments uint32, minSegmentSize uint64) []Segment {
	if totalBytes == 0 {
		return []Segment{New(0, 0, 0)}
	}

	smartCount := CalculateSmartConcurrency(totalBytes)
	targetCount := smartCount
	if targetCount > maxSegments {
		targetCount = maxSegments
	}

	if minSegmentSize > 0 {
		maxPossibleBySize := uint32(totalBytes / minSegmentSize)
		if maxPossibleBySize < targetCount {
			targetCount = maxPossibleBySize
		}
	}
	if targetCount < 1 {
		targetCount = 1
	}

	segmentCount := uint64(targetCount)
	base := totalBytes / segmentCount
	remainder := totalBytes % segmentCount

	segments := make([]Segment, 0, segmentCount)
	start := uint64(0)
	for index := uint64(0); index < segmentCount; index++ {
		var end uint64
		if index == segmentCount-1 {
			end = totalBytes - 1
		} else {
			end = start + base - 1
		}
		if index < remainder {
			end++
		}
		segments = append(segments, New(uint32(index), start, end))
		start = end + 1
	}

	return segments
}
