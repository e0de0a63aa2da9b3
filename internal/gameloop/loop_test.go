package gameloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTicker struct {
	total atomic.Int64
	calls atomic.Int64
}

func (c *countingTicker) Update(delta time.Duration) {
	c.total.Add(int64(delta))
	c.calls.Add(1)
}

func TestLoopTicksTarget(t *testing.T) {
	target := &countingTicker{}
	loop := New(target, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)

	require.Eventually(t, func() bool { return target.calls.Load() >= 3 }, time.Second, time.Millisecond)
	assert.Positive(t, target.total.Load())
}

func TestDoRunsOnLoop(t *testing.T) {
	loop := New(&countingTicker{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)

	counter := 0
	for i := 0; i < 10; i++ {
		require.NoError(t, loop.Do(ctx, func() error {
			counter++
			return nil
		}))
	}
	assert.Equal(t, 10, counter)

	boom := errors.New("boom")
	assert.ErrorIs(t, loop.Do(ctx, func() error { return boom }), boom)
}

func TestDoAfterStop(t *testing.T) {
	loop := New(&countingTicker{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	cancel()
	<-loop.Done()

	err := loop.Do(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestDoRespectsCallerContext(t *testing.T) {
	loop := New(&countingTicker{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := loop.Do(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEveryRunsAfterInterval(t *testing.T) {
	loop := New(&countingTicker{}, time.Second)

	runs := 0
	loop.Every(3*time.Second, "reset", func(context.Context) error {
		runs++
		return nil
	})
	loop.Every(time.Second, "failing", func(context.Context) error {
		return errors.New("ignored")
	})

	ctx := context.Background()
	loop.tick(ctx, time.Second)
	loop.tick(ctx, time.Second)
	assert.Equal(t, 0, runs)

	loop.tick(ctx, time.Second)
	assert.Equal(t, 1, runs)

	loop.tick(ctx, 5*time.Second)
	assert.Equal(t, 2, runs)
}
