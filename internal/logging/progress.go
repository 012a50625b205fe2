package logging

// ProgressSampler suppresses repetitive progress logs on long record streams.
// It emits on the first count, whenever the count crosses an interval
// boundary, and when the label changes.
type ProgressSampler struct {
	interval   int
	lastLabel  string
	lastBucket int
}

// NewProgressSampler constructs a sampler emitting every interval records
// (default 10000).
func NewProgressSampler(interval int) *ProgressSampler {
	if interval <= 0 {
		interval = 10000
	}
	return &ProgressSampler{interval: interval, lastBucket: -1}
}

// ShouldLog reports whether progress at count should be logged.
func (s *ProgressSampler) ShouldLog(count int, label string) bool {
	if s == nil {
		return true
	}
	emit := false
	if label != s.lastLabel {
		s.lastLabel = label
		s.lastBucket = -1
		emit = true
	}
	if bucket := count / s.interval; bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}

// Reset clears the sampler state.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastLabel = ""
	s.lastBucket = -1
}
