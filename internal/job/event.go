package job

import (
	"time"

	"github.com/Amr-9/btcvanity/pkg/generator"
)

// State is the lifecycle state of a controller's current job.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateCancelled
	StateCompleted
)

// String returns a lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCancelled:
		return "cancelled"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// active reports whether a search is in flight in this state.
func (s State) active() bool {
	return s == StateRunning || s == StatePaused
}

// EventType identifies what an Event reports.
type EventType int

const (
	// EventProgress carries a throttled attempt count and sample address.
	EventProgress EventType = iota

	// EventFound carries the matching result.
	EventFound

	// EventNotFound reports an exhausted attempt limit.
	EventNotFound

	// EventCancelled reports a stopped or superseded job.
	EventCancelled

	// EventFailed reports a search that could not run.
	EventFailed
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventProgress:
		return "progress"
	case EventFound:
		return "found"
	case EventNotFound:
		return "not_found"
	case EventCancelled:
		return "cancelled"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one notification emitted by a Controller.
type Event struct {
	Type  EventType
	JobID uint64

	// Request is the request of the job that produced the event.
	Request *generator.Request

	Attempts uint64
	Elapsed  time.Duration

	// Sample is the most recently generated address, progress only.
	Sample string

	// Result is only set for EventFound.
	Result *generator.Result

	// Note explains degraded outcomes and failures.
	Note string
}

// Stats derives throughput from the event.
func (e Event) Stats() generator.Stats {
	return generator.NewStats(e.Attempts, e.Elapsed)
}

// Snapshot is a point-in-time view of a controller.
type Snapshot struct {
	State    State
	JobID    uint64
	Request  *generator.Request
	Attempts uint64
	Elapsed  time.Duration
}
