package session

import (
	"time"

	"github.com/harunnryd/airassist/pkg/adapters/provider"
)

// State is the connection state of one provider.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

var validTransitions = map[State][]State{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateConnected, StateError, StateDisconnected},
	StateConnected:    {StateDisconnected},
	StateError:        {StateConnecting, StateDisconnected},
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Status is a point-in-time view of one provider's connection.
type Status struct {
	Provider   provider.Kind
	State      State
	Reason     string
	Generation uint64
	Since      time.Time
}

// StateChange is emitted after every accepted transition.
type StateChange struct {
	Provider   provider.Kind
	FromState  State
	ToState    State
	Reason     string
	Generation uint64
	Timestamp  time.Time
}

// StateListener observes connection state changes. It is called without manager locks held.
type StateListener interface {
	OnStateChange(change StateChange)
}

// StateListenerFunc adapts a function to StateListener.
type StateListenerFunc func(StateChange)

func (f StateListenerFunc) OnStateChange(change StateChange) { f(change) }

// InvalidTransitionError represents an invalid state transition attempt.
type InvalidTransitionError struct {
	Provider provider.Kind
	From     State
	To       State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid " + string(e.Provider) + " transition from " + e.From.String() + " to " + e.To.String()
}
