package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrAlreadyStarted = errors.New("runner: already started")
	ErrDrainTimeout   = errors.New("runner: drain timeout")
)

// LifecycleRunner holds the process in the running state until its context
// ends or Stop is called, then drains once within the timeout.
type LifecycleRunner struct {
	state    atomic.Int32
	stopped  chan struct{}
	stopOnce sync.Once
	drain    sync.Once
	hooks    Hooks
	drainer  Drainer
	stopErr  error
	timeout  time.Duration
	banner   func()
}

func NewLifecycleRunner(drainer Drainer, hooks Hooks, timeout time.Duration) *LifecycleRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LifecycleRunner{
		stopped: make(chan struct{}),
		hooks:   hooks,
		drainer: drainer,
		timeout: timeout,
		banner:  PrintBanner,
	}
}

func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateNew), int32(StateStarting)) {
		return ErrAlreadyStarted
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if r.banner != nil {
		r.banner()
	}
	if r.hooks.OnStart != nil {
		r.hooks.OnStart()
	}
	r.state.CompareAndSwap(int32(StateStarting), int32(StateRunning))
	select {
	case <-ctx.Done():
	case <-r.stopped:
	}
	return r.shutdown()
}

// Stop ends Run, or drains directly if Run was never called.
func (r *LifecycleRunner) Stop() error {
	r.stopOnce.Do(func() { close(r.stopped) })
	return r.shutdown()
}

func (r *LifecycleRunner) State() State {
	return State(r.state.Load())
}

func (r *LifecycleRunner) shutdown() error {
	r.drain.Do(func() {
		r.state.Store(int32(StateDraining))
		if r.drainer != nil {
			done := make(chan error, 1)
			go func() { done <- r.drainer.Drain() }()
			select {
			case err := <-done:
				r.stopErr = err
			case <-time.After(r.timeout):
				r.stopErr = ErrDrainTimeout
			}
		}
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.state.Store(int32(StateStopped))
	})
	return r.stopErr
}
