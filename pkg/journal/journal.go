// Package journal keeps an audit trail of what each rig monitor observed
// and did.
package journal

import (
	"context"
	"fmt"
	"time"
)

// Kind classifies an event.
type Kind string

const (
	KindStatus     Kind = "status"
	KindPowerCycle Kind = "power_cycle"
	KindFailsafe   Kind = "failsafe"
	KindError      Kind = "error"
)

// Event is one journal row.
type Event struct {
	ID        int64
	SessionID string
	Worker    string
	Kind      Kind

	// Online and LastSeenAge are only set on status events.
	Online      *bool
	LastSeenAge *time.Duration

	Failures  int
	Message   string
	CreatedAt time.Time
}

func (e *Event) String() string {
	switch {
	case e.Kind == KindStatus && e.Online != nil:
		state := "OFFLINE"
		if *e.Online {
			state = "ONLINE"
		}
		return fmt.Sprintf("%s %s %s failures=%d", e.CreatedAt.Format(time.RFC3339), e.Worker, state, e.Failures)
	case e.Message != "":
		return fmt.Sprintf("%s %s %s failures=%d: %s", e.CreatedAt.Format(time.RFC3339), e.Worker, e.Kind, e.Failures, e.Message)
	default:
		return fmt.Sprintf("%s %s %s failures=%d", e.CreatedAt.Format(time.RFC3339), e.Worker, e.Kind, e.Failures)
	}
}

// Recorder stores events.
type Recorder interface {
	Record(ctx context.Context, e *Event) error
}

// Repository stores and lists events.
type Repository interface {
	Recorder

	// Recent returns up to limit events, newest first. An empty worker
	// lists every rig.
	Recent(ctx context.Context, worker string, limit int) ([]*Event, error)

	Close() error
}

// Discard is a Recorder that drops every event.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(context.Context, *Event) error { return nil }
