package turn

import (
	"sync"
	"time"
)

type State int

const (
	StateReceived State = iota
	StateClassifying
	StateCompleting
	StateSynthesizing
	StateDispatched
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateClassifying:
		return "classifying"
	case StateCompleting:
		return "completing"
	case StateSynthesizing:
		return "synthesizing"
	case StateDispatched:
		return "dispatched"
	default:
		return "unknown"
	}
}

// StateChange represents a state transition event.
type StateChange struct {
	TurnID    string
	Channel   Channel
	FromState State
	ToState   State
	Timestamp time.Time
	Elapsed   time.Duration
	Reason    string
}

// StateListener observes turn state changes.
type StateListener interface {
	OnStateChange(event StateChange)
}

// StateListenerFunc adapts a function to StateListener.
type StateListenerFunc func(StateChange)

func (f StateListenerFunc) OnStateChange(ev StateChange) { f(ev) }

// Any state may jump to dispatched so failures can still answer the customer.
var validTransitions = map[State][]State{
	StateReceived:     {StateClassifying, StateCompleting, StateDispatched},
	StateClassifying:  {StateCompleting, StateDispatched},
	StateCompleting:   {StateSynthesizing, StateDispatched},
	StateSynthesizing: {StateDispatched},
}

// stateMachine tracks one turn. It reaches StateDispatched exactly once.
type stateMachine struct {
	mu        sync.Mutex
	id        string
	channel   Channel
	current   State
	started   time.Time
	listeners []StateListener
}

func newStateMachine(id string, channel Channel, listeners ...StateListener) *stateMachine {
	return &stateMachine{
		id:        id,
		channel:   channel,
		current:   StateReceived,
		started:   time.Now(),
		listeners: listeners,
	}
}

// State returns the current state.
func (sm *stateMachine) State() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves to a new state with validation. Listeners are notified
// outside the lock.
func (sm *stateMachine) Transition(to State, reason string) error {
	sm.mu.Lock()
	if !transitionValid(sm.current, to) {
		from := sm.current
		sm.mu.Unlock()
		return &InvalidTransitionError{From: from, To: to}
	}
	now := time.Now()
	event := StateChange{
		TurnID:    sm.id,
		Channel:   sm.channel,
		FromState: sm.current,
		ToState:   to,
		Timestamp: now,
		Elapsed:   now.Sub(sm.started),
		Reason:    reason,
	}
	sm.current = to
	listeners := append([]StateListener(nil), sm.listeners...)
	sm.mu.Unlock()

	for _, l := range listeners {
		l.OnStateChange(event)
	}
	return nil
}

// Dispatch moves to StateDispatched unless the turn already got there.
func (sm *stateMachine) Dispatch(reason string) {
	if sm.State() == StateDispatched {
		return
	}
	_ = sm.Transition(StateDispatched, reason)
}

// InvalidTransitionError represents an invalid state transition attempt
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}
