// Package gameloop runs the single logic goroutine of the host. Ticks,
// periodic jobs and API commands all execute on it, one at a time.
package gameloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultTickInterval is used when no interval is given
const DefaultTickInterval = 100 * time.Millisecond

// ErrStopped is returned by Do once the loop has exited
var ErrStopped = errors.New("game loop stopped")

// Ticker is advanced by the loop on every tick
type Ticker interface {
	Update(delta time.Duration)
}

type job struct {
	name     string
	interval time.Duration
	elapsed  time.Duration
	fn       func(ctx context.Context) error
}

type command struct {
	fn   func() error
	done chan error
}

// Loop drives a Ticker from a time.Ticker and serializes commands onto the same goroutine
type Loop struct {
	target   Ticker
	interval time.Duration
	now      func() time.Time
	jobs     []*job
	cmds     chan command
	stopped  chan struct{}
	once     sync.Once
}

// New creates a loop for the target. It does nothing until Start or Run.
func New(target Ticker, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	return &Loop{
		target:   target,
		interval: interval,
		now:      time.Now,
		cmds:     make(chan command),
		stopped:  make(chan struct{}),
	}
}

// Every registers a job that runs on the loop goroutine once per interval of
// loop time. Register jobs before starting the loop.
func (l *Loop) Every(interval time.Duration, name string, fn func(ctx context.Context) error) {
	if interval <= 0 || fn == nil {
		return
	}
	l.jobs = append(l.jobs, &job{name: name, interval: interval, fn: fn})
}

// Start runs the loop in a goroutine until ctx is cancelled
func (l *Loop) Start(ctx context.Context) {
	go l.Run(ctx)
}

// Run is the loop body. It blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	slog.Info("game loop started", "interval", l.interval, "jobs", len(l.jobs))

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	defer l.once.Do(func() { close(l.stopped) })

	last := l.now()
	for {
		select {
		case <-ctx.Done():
			slog.Info("game loop stopped")
			return
		case <-ticker.C:
			now := l.now()
			l.tick(ctx, now.Sub(last))
			last = now
		case cmd := <-l.cmds:
			cmd.done <- cmd.fn()
		}
	}
}

// Do executes fn on the loop goroutine and waits for its result
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	cmd := command{fn: fn, done: make(chan error, 1)}

	select {
	case l.cmds <- cmd:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once accepted the command always completes
	return <-cmd.done
}

// Done is closed when the loop exits
func (l *Loop) Done() <-chan struct{} {
	return l.stopped
}

func (l *Loop) tick(ctx context.Context, delta time.Duration) {
	if delta < 0 {
		delta = 0
	}
	l.target.Update(delta)

	for _, j := range l.jobs {
		j.elapsed += delta
		if j.elapsed < j.interval {
			continue
		}
		j.elapsed = 0

		slog.Debug("running periodic job", "job", j.name)
		if err := j.fn(ctx); err != nil {
			slog.Error("periodic job failed", "job", j.name, "error", err)
		}
	}
}
