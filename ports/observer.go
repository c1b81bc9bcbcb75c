package ports

import (
	"time"
)

// RunObserver receives progress from permutation runs.
type RunObserver interface {
	TrialCompleted(metric string)
	RunFinished(metric string, outcome string, elapsed time.Duration)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) TrialCompleted(string) {}
func (NopObserver) RunFinished(string, string, time.Duration) {}
