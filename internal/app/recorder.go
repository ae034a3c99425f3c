package app

import "time"

// Recorder receives reminder observability events.
type Recorder interface {
	CycleCompleted(duration time.Duration)
	DecisionMade(label string)
	AuditorFailed(kind string)
	DispatchFailed(channel string)
	CandidateListFailures(consecutive int)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) CycleCompleted(time.Duration) {}
func (NopRecorder) DecisionMade(string)          {}
func (NopRecorder) AuditorFailed(string)         {}
func (NopRecorder) DispatchFailed(string)        {}
func (NopRecorder) CandidateListFailures(int)    {}
