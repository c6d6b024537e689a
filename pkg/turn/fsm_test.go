package turn

import (
	"errors"
	"sync"
	"testing"
)

type captureListener struct {
	mu     sync.Mutex
	events []StateChange
}

func (c *captureListener) OnStateChange(ev StateChange) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *captureListener) States() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]State, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.ToState)
	}
	return out
}

func TestStateMachineSMSPath(t *testing.T) {
	l := &captureListener{}
	sm := newStateMachine("turn-1", ChannelSMS, l)
	for _, s := range []State{StateClassifying, StateCompleting, StateDispatched} {
		if err := sm.Transition(s, "test"); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	got := l.States()
	if len(got) != 3 || got[2] != StateDispatched {
		t.Fatalf("unexpected transitions %v", got)
	}
	if l.events[0].TurnID != "turn-1" || l.events[0].Channel != ChannelSMS {
		t.Fatalf("unexpected event metadata %+v", l.events[0])
	}
}

func TestStateMachineRejectsInvalid(t *testing.T) {
	sm := newStateMachine("turn-2", ChannelVoice)
	err := sm.Transition(StateSynthesizing, "skip")
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) || ite.From != StateReceived || ite.To != StateSynthesizing {
		t.Fatalf("expected invalid transition error, got %v", err)
	}
	if err.Error() != "invalid state transition from received to synthesizing" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestDispatchedExactlyOnce(t *testing.T) {
	l := &captureListener{}
	sm := newStateMachine("turn-3", ChannelRelay, l)
	_ = sm.Transition(StateCompleting, "")
	sm.Dispatch("done")
	sm.Dispatch("again")
	if err := sm.Transition(StateDispatched, "third"); err == nil {
		t.Fatalf("expected error leaving dispatched")
	}
	count := 0
	for _, s := range l.States() {
		if s == StateDispatched {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one dispatched transition, got %d", count)
	}
}
