package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{name: "six fields", spec: "0 */10 * * * *"},
		{name: "five fields", spec: "*/10 * * * *"},
		{name: "descriptor", spec: "@every 5m"},
		{name: "garbage", spec: "every now and then", wantErr: true},
		{name: "empty", spec: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.spec, func(context.Context) error { return nil }, testLogger())
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%q) err = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
		})
	}
}

func TestTriggerSingleFlight(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	var calls atomic.Int32

	c, err := New("@every 1h", func(context.Context) error {
		calls.Add(1)
		close(started)
		<-unblock
		return nil
	}, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := context.Background()
	done := make(chan bool)
	go func() { done <- c.Trigger(ctx) }()
	<-started

	if !c.Running() {
		t.Error("Running() = false during a run")
	}
	if c.Trigger(ctx) {
		t.Error("second Trigger ran while the first was in progress")
	}
	if c.TriggerAsync(ctx) {
		t.Error("TriggerAsync ran while the first was in progress")
	}

	close(unblock)
	if !<-done {
		t.Error("first Trigger reported skipped")
	}
	if c.Running() {
		t.Error("Running() = true after the run finished")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("job calls = %d, want 1", n)
	}
}

func TestTriggerReleasesOnErrorAndPanic(t *testing.T) {
	tests := []struct {
		name string
		job  Job
	}{
		{name: "error", job: func(context.Context) error { return errors.New("boom") }},
		{name: "panic", job: func(context.Context) error { panic("boom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New("@every 1h", tt.job, testLogger())
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			for i := range 3 {
				if !c.Trigger(context.Background()) {
					t.Fatalf("trigger %d skipped", i)
				}
				if c.Running() {
					t.Fatalf("flag not released after trigger %d", i)
				}
			}
		})
	}
}

func TestConcurrentTriggersRunOnce(t *testing.T) {
	var calls, inFlight, peak atomic.Int32
	c, err := New("@every 1h", func(context.Context) error {
		calls.Add(1)
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > peak.Load() {
			peak.Store(n)
		}
		time.Sleep(30 * time.Millisecond)
		return nil
	}, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var wg sync.WaitGroup
	var ran atomic.Int32
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Trigger(context.Background()) {
				ran.Add(1)
			}
		}()
	}
	wg.Wait()

	if ran.Load() != calls.Load() {
		t.Errorf("ran = %d, calls = %d", ran.Load(), calls.Load())
	}
	if p := peak.Load(); p != 1 {
		t.Errorf("peak concurrent runs = %d, want 1", p)
	}
}

func TestShutdownWaitsForRun(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool

	c, err := New("@every 1h", func(ctx context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	}, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	if !c.TriggerAsync(ctx) {
		t.Fatal("TriggerAsync skipped")
	}
	<-started
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	if err := c.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !finished.Load() {
		t.Error("Shutdown returned before the run finished")
	}
}

func TestShutdownTimeout(t *testing.T) {
	unblock := make(chan struct{})
	defer close(unblock)
	started := make(chan struct{})

	c, err := New("@every 1h", func(context.Context) error {
		close(started)
		<-unblock
		return nil
	}, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c.TriggerAsync(context.Background())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown err = %v, want deadline exceeded", err)
	}
}

func TestTriggerAfterShutdownRefused(t *testing.T) {
	var calls atomic.Int32
	c, err := New("@every 1h", func(context.Context) error {
		calls.Add(1)
		return nil
	}, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c.Start(context.Background())

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if c.TriggerAsync(context.Background()) {
		t.Error("TriggerAsync accepted a run after Shutdown")
	}
	if c.Trigger(context.Background()) {
		t.Error("Trigger ran after Shutdown")
	}
	if c.Running() {
		t.Error("Running() = true after Shutdown")
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("job calls = %d, want 0", n)
	}
}

func TestNext(t *testing.T) {
	c, err := New("@every 1h", func(context.Context) error { return nil }, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	next := c.Next()
	if d := time.Until(next); d <= 0 || d > time.Hour {
		t.Errorf("Next() = %v, want within the next hour", next)
	}
}

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	err      error
	released []string
}

func (f *fakeLocker) Acquire(context.Context) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	if f.held {
		return "", false, nil
	}
	f.held = true
	return "token-1", true, nil
}

func (f *fakeLocker) Release(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
	f.released = append(f.released, token)
	return nil
}

func TestLocker(t *testing.T) {
	t.Run("acquired and released", func(t *testing.T) {
		l := &fakeLocker{}
		var calls atomic.Int32
		c, _ := New("@every 1h", func(context.Context) error { calls.Add(1); return nil }, testLogger(), WithLocker(l))

		if !c.Trigger(context.Background()) {
			t.Fatal("trigger skipped")
		}
		if calls.Load() != 1 || len(l.released) != 1 || l.released[0] != "token-1" {
			t.Errorf("calls = %d, released = %v", calls.Load(), l.released)
		}
	})

	t.Run("held elsewhere", func(t *testing.T) {
		l := &fakeLocker{held: true}
		var calls atomic.Int32
		c, _ := New("@every 1h", func(context.Context) error { calls.Add(1); return nil }, testLogger(), WithLocker(l))

		if c.Trigger(context.Background()) {
			t.Error("trigger ran while lock held elsewhere")
		}
		if calls.Load() != 0 || c.Running() {
			t.Errorf("calls = %d, running = %v", calls.Load(), c.Running())
		}
	})

	t.Run("lock error skips", func(t *testing.T) {
		l := &fakeLocker{err: errors.New("redis down")}
		c, _ := New("@every 1h", func(context.Context) error { return nil }, testLogger(), WithLocker(l))

		if c.Trigger(context.Background()) {
			t.Error("trigger ran despite lock error")
		}
		if c.Running() {
			t.Error("flag not released after lock error")
		}
	})
}
