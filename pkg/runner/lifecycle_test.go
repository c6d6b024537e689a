package runner

import (
	"context"
	"errors"
	"testing"
	"time"
)

func quiet(r *LifecycleRunner) *LifecycleRunner {
	r.banner = nil
	return r
}

func TestRunDrainsOnContextCancel(t *testing.T) {
	var started, stopped, drained bool
	r := quiet(NewLifecycleRunner(DrainerFunc(func() error {
		drained = true
		return nil
	}), Hooks{
		OnStart: func() { started = true },
		OnStop:  func() { stopped = true },
	}, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return")
	}
	if !started || !drained || !stopped {
		t.Fatalf("started=%v drained=%v stopped=%v", started, drained, stopped)
	}
	if r.State() != StateStopped {
		t.Fatalf("state = %s", r.State())
	}
	if err := r.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second run = %v", err)
	}
}

func TestStopBeforeRunDrainsOnce(t *testing.T) {
	calls := 0
	r := quiet(NewLifecycleRunner(DrainerFunc(func() error {
		calls++
		return errors.New("partial")
	}), Hooks{}, time.Second))
	if err := r.Stop(); err == nil || err.Error() != "partial" {
		t.Fatalf("stop = %v", err)
	}
	if err := r.Stop(); err == nil {
		t.Fatalf("second stop should report the same error")
	}
	if calls != 1 {
		t.Fatalf("drain calls = %d", calls)
	}
}

func TestDrainTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	r := quiet(NewLifecycleRunner(DrainerFunc(func() error {
		<-block
		return nil
	}), Hooks{}, 20*time.Millisecond))
	if err := r.Stop(); !errors.Is(err, ErrDrainTimeout) {
		t.Fatalf("stop = %v", err)
	}
}
