package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/cleanline/pkg/turn"
)

// LatencyObserver logs how long each turn spent in every stage once the
// turn is dispatched.
type LatencyObserver struct {
	mu     sync.Mutex
	traces map[string]*trace
	log    *slog.Logger
}

type trace struct {
	channel    turn.Channel
	classified time.Time
	completing time.Time
	synth      time.Time
	started    time.Time
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		traces: make(map[string]*trace),
		log:    log,
	}
}

// OnStateChange implements turn.StateListener.
func (o *LatencyObserver) OnStateChange(ev turn.StateChange) {
	o.mu.Lock()
	t := o.traces[ev.TurnID]
	if t == nil {
		t = &trace{channel: ev.Channel, started: ev.Timestamp.Add(-ev.Elapsed)}
		o.traces[ev.TurnID] = t
	}
	switch ev.ToState {
	case turn.StateClassifying:
		t.classified = ev.Timestamp
	case turn.StateCompleting:
		t.completing = ev.Timestamp
	case turn.StateSynthesizing:
		t.synth = ev.Timestamp
	case turn.StateDispatched:
		delete(o.traces, ev.TurnID)
		o.mu.Unlock()
		o.logTurn(ev, t)
		return
	}
	o.mu.Unlock()
}

// Pending reports turns that have not been dispatched yet.
func (o *LatencyObserver) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.traces)
}

func (o *LatencyObserver) logTurn(ev turn.StateChange, t *trace) {
	completionEnd := t.synth
	if completionEnd.IsZero() {
		completionEnd = ev.Timestamp
	}
	synthMs := int64(-1)
	if !t.synth.IsZero() {
		synthMs = durationMs(t.synth, ev.Timestamp)
	}
	o.log.Info("latency",
		"trace_id", ev.TurnID,
		"channel", string(t.channel),
		"classify_ms", durationMs(t.classified, t.completing),
		"completion_ms", durationMs(t.completing, completionEnd),
		"synthesis_ms", synthMs,
		"total_ms", ev.Elapsed.Milliseconds(),
		"outcome", ev.Reason,
	)
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}

var _ turn.StateListener = (*LatencyObserver)(nil)
