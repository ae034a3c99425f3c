package reminder

import "time"

const (
	DefaultSafetyOffset        = 30 * time.Second
	DefaultStagnationThreshold = 2
)

// Policy holds the tunables of the decision engine.
type Policy struct {
	// SafetyOffset delays the daily eligible instant past the nominal
	// reminder time so a coarse poll never fires early.
	SafetyOffset time.Duration
	// StagnationThreshold is the number of consecutive no-progress sends
	// after which a reminder escalates.
	StagnationThreshold int
}

func DefaultPolicy() Policy {
	return Policy{
		SafetyOffset:        DefaultSafetyOffset,
		StagnationThreshold: DefaultStagnationThreshold,
	}
}

func (p Policy) threshold() int {
	if p.StagnationThreshold < 1 {
		return DefaultStagnationThreshold
	}
	return p.StagnationThreshold
}
