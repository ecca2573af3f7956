package logging

import "strings"

const defaultProgressStep = 0.05

// ProgressSampler thins out progress logging. A record is worth emitting the
// first time a stage is seen and whenever the fraction reaches the next step
// boundary within that stage.
type ProgressSampler struct {
	step  float64
	stage string
	next  float64
}

// NewProgressSampler returns a sampler emitting every step of progress. Steps
// outside (0, 1] fall back to 5%.
func NewProgressSampler(step float64) *ProgressSampler {
	if !(step > 0 && step <= 1) {
		step = defaultProgressStep
	}
	return &ProgressSampler{step: step}
}

// ShouldLog reports whether progress at fraction for stage should be logged.
// Negative fractions are unknown progress and only stage changes emit. A nil
// sampler logs everything.
func (s *ProgressSampler) ShouldLog(fraction float64, stage string) bool {
	if s == nil {
		return true
	}
	emit := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != s.stage {
		s.stage, s.next = stage, 0
		emit = true
	}
	if fraction < 0 {
		return emit
	}
	if fraction >= s.next {
		// Advance past every boundary already crossed.
		for s.next <= min(fraction, 1) {
			s.next += s.step
		}
		return true
	}
	return emit
}

// Reset forgets the current stage so the next call emits.
func (s *ProgressSampler) Reset() {
	if s != nil {
		*s = ProgressSampler{step: s.step}
	}
}
