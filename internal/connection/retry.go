package connection

import "time"

// Phase distinguishes the very first connection from recovery cycles.
type Phase int

const (
	PhaseInitial Phase = iota // First connection made by the manager
	PhaseSteady               // Reconnecting after an established connection was lost
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseSteady:
		return "steady"
	default:
		return "unknown"
	}
}

// Retry defaults.
const (
	DefaultInitialCeiling = 2
	DefaultSteadyCeiling  = 1_000_000
	DefaultRetryIncrement = 2 * time.Second
)

// Policy decides whether a failed attempt is retried and how long to wait.
// Attempts are 1-based: the first failed attempt is attempt 1.
type Policy struct {
	InitialCeiling int           // Max attempts for PhaseInitial
	SteadyCeiling  int           // Max attempts for PhaseSteady
	Increment      time.Duration // Delay added per attempt
}

// DefaultPolicy returns the standard policy: 2 initial attempts,
// 1,000,000 steady attempts, 2s linear increment.
func DefaultPolicy() Policy {
	return Policy{
		InitialCeiling: DefaultInitialCeiling,
		SteadyCeiling:  DefaultSteadyCeiling,
		Increment:      DefaultRetryIncrement,
	}
}

// Ceiling returns the attempt ceiling for a phase.
func (p Policy) Ceiling(phase Phase) int {
	if phase == PhaseInitial {
		return p.InitialCeiling
	}
	return p.SteadyCeiling
}

// ShouldRetry reports whether another attempt follows failed attempt n.
func (p Policy) ShouldRetry(attempt int, phase Phase) bool {
	return attempt < p.Ceiling(phase)
}

// Delay returns the wait after failed attempt n: n * Increment.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(attempt) * p.Increment
}

// ShouldRetry applies DefaultPolicy.
func ShouldRetry(attempt int, phase Phase) bool {
	return DefaultPolicy().ShouldRetry(attempt, phase)
}

// Delay applies DefaultPolicy.
func Delay(attempt int) time.Duration {
	return DefaultPolicy().Delay(attempt)
}
