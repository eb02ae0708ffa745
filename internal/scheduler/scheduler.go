// Package scheduler fires a job on a cron schedule and never lets two runs
// of it overlap.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Locker is a cross-process mutex held for the duration of a run.
type Locker interface {
	Acquire(ctx context.Context) (token string, ok bool, err error)
	Release(ctx context.Context, token string) error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLocker makes every run also hold l.
func WithLocker(l Locker) Option {
	return func(c *Coordinator) {
		c.locker = l
	}
}

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Coordinator runs a Job on a cron schedule with single-flight semantics:
// a trigger that fires while a run is in progress is dropped, not queued.
type Coordinator struct {
	spec     string
	schedule cron.Schedule
	job      Job
	log      *slog.Logger
	locker   Locker

	cron    *cron.Cron
	entry   cron.EntryID
	running atomic.Bool
	wg      sync.WaitGroup

	// mu orders wg.Add in claim against wg.Wait in Shutdown.
	mu      sync.Mutex
	stopped bool
}

// New parses spec and creates a Coordinator. Both five-field and
// six-field (leading seconds) expressions are accepted, as are
// descriptors such as "@hourly" and "@every 5m".
func New(spec string, job Job, log *slog.Logger, opts ...Option) (*Coordinator, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", spec, err)
	}

	c := &Coordinator{
		spec:     spec,
		schedule: schedule,
		job:      job,
		log:      log.With("component", "scheduler"),
		cron:     cron.New(cron.WithParser(parser)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start registers the job and starts firing it. Runs use a context that
// is detached from ctx's cancellation so that stopping the process never
// interrupts an in-flight run; call Shutdown to stop.
func (c *Coordinator) Start(ctx context.Context) {
	runCtx := context.WithoutCancel(ctx)
	c.entry = c.cron.Schedule(c.schedule, cron.FuncJob(func() {
		c.Trigger(runCtx)
	}))
	c.cron.Start()
	c.log.Info("scheduler started", "cron", c.spec, "next", c.Next())
}

// Trigger runs the job now in the calling goroutine unless a run is
// already in progress. It reports whether the job was run.
func (c *Coordinator) Trigger(ctx context.Context) bool {
	token, ok := c.claim(ctx)
	if !ok {
		return false
	}
	c.run(ctx, token)
	return true
}

// TriggerAsync is like Trigger but runs the job in a new goroutine.
// The claim happens before it returns.
func (c *Coordinator) TriggerAsync(ctx context.Context) bool {
	token, ok := c.claim(ctx)
	if !ok {
		return false
	}
	go c.run(ctx, token)
	return true
}

// Running reports whether a run is in progress.
func (c *Coordinator) Running() bool {
	return c.running.Load()
}

// Next returns the next scheduled firing time.
func (c *Coordinator) Next() time.Time {
	if c.entry != 0 {
		if e := c.cron.Entry(c.entry); e.Valid() && !e.Next.IsZero() {
			return e.Next
		}
	}
	return c.schedule.Next(time.Now())
}

// Shutdown stops future firings and waits for the in-flight run, if any,
// or for ctx to be done. Triggers after Shutdown are refused.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	cronDone := c.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running job: %w", ctx.Err())
	}
}

func (c *Coordinator) claim(ctx context.Context) (string, bool) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		c.log.Warn("run skipped, scheduler stopped")
		return "", false
	}
	if !c.running.CompareAndSwap(false, true) {
		c.mu.Unlock()
		c.log.Warn("run skipped, previous run in progress")
		return "", false
	}
	c.wg.Add(1)
	c.mu.Unlock()

	if c.locker == nil {
		return "", true
	}

	token, ok, err := c.locker.Acquire(ctx)
	if err != nil {
		c.log.Error("acquire run lock", "error", err)
		c.release()
		return "", false
	}
	if !ok {
		c.log.Warn("run skipped, lock held by another instance")
		c.release()
		return "", false
	}
	return token, true
}

func (c *Coordinator) release() {
	c.running.Store(false)
	c.wg.Done()
}

func (c *Coordinator) run(ctx context.Context, token string) {
	start := time.Now()
	defer c.release()
	defer func() {
		if c.locker == nil {
			return
		}
		if err := c.locker.Release(ctx, token); err != nil {
			c.log.Error("release run lock", "error", err)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("job panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := c.job(ctx); err != nil {
		c.log.Error("job failed", "error", err, "duration", time.Since(start))
		return
	}
	c.log.Debug("job finished", "duration", time.Since(start))
}
