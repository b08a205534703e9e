package preview

import (
	"context"
	"fmt"
)

// State is a stage of one preview acquisition.
type State string

const (
	StateIdle            State = "idle"
	StateGenerating      State = "generating"
	StateCredentialCheck State = "credential_check"
	StateAborted         State = "aborted"
	StateJobSubmitted    State = "job_submitted"
	StatePolling         State = "polling"
	StateCompleted       State = "completed"
	StateDownloading     State = "downloading"
	StateReady           State = "ready"
	StateFailed          State = "failed"
)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed || s == StateAborted
}

// Transition is one edge taken by an acquisition.
type Transition struct {
	From State
	To   State
	// Err is set when To is StateFailed.
	Err error
}

// Observer receives every transition in order. It runs on the acquiring
// goroutine and must not block for long.
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
}

type ObserverFunc func(ctx context.Context, t Transition)

func (f ObserverFunc) OnTransition(ctx context.Context, t Transition) {
	f(ctx, t)
}

// machine tracks the state of a single Acquire call.
type machine struct {
	current  State
	observer Observer
}

func newMachine(observer Observer) *machine {
	return &machine{current: StateIdle, observer: observer}
}

func (m *machine) to(ctx context.Context, next State) error {
	return m.move(ctx, next, nil)
}

func (m *machine) fail(ctx context.Context, cause error) error {
	if err := m.move(ctx, StateFailed, cause); err != nil {
		return err
	}
	return cause
}

func (m *machine) move(ctx context.Context, next State, cause error) error {
	if !isValidTransition(m.current, next) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current, next)
	}
	t := Transition{From: m.current, To: next, Err: cause}
	m.current = next
	if m.observer != nil {
		m.observer.OnTransition(ctx, t)
	}
	return nil
}

// isValidTransition enforces the allowed acquisition edges.
func isValidTransition(from, to State) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	switch from {
	case StateIdle:
		return to == StateGenerating || to == StateCredentialCheck
	case StateGenerating:
		return to == StateReady
	case StateCredentialCheck:
		return to == StateAborted || to == StateJobSubmitted
	case StateJobSubmitted:
		return to == StatePolling
	case StatePolling:
		return to == StateCompleted
	case StateCompleted:
		return to == StateDownloading
	case StateDownloading:
		return to == StateReady
	default:
		return false
	}
}
