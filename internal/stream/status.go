package stream

import "time"

// Phase is the lifecycle state of the managed connection.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseOpen
	PhaseReconnecting
	PhaseFatal
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseOpen:
		return "open"
	case PhaseReconnecting:
		return "reconnecting"
	case PhaseFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of the manager. Attempt and NextDelay
// describe the current failure streak and are zero while Open or Idle.
type Status struct {
	Phase     Phase
	Attempt   int
	NextDelay time.Duration
	Frames    uint64
	Alerts    uint64
	Rejected  uint64
}
