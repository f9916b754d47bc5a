package bookmark

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type concurrencyGauge struct {
	current atomic.Int32
	max     atomic.Int32
}

func (p *concurrencyGauge) enter() {
	n := p.current.Add(1)
	for {
		m := p.max.Load()
		if n <= m || p.max.CompareAndSwap(m, n) {
			return
		}
	}
}

func (p *concurrencyGauge) leave() {
	p.current.Add(-1)
}

func TestPool_WindowNeverExceedsLimit(t *testing.T) {
	defer goleak.VerifyNone(t)

	gauge := &concurrencyGauge{}
	var completed atomic.Int32

	tasks := make([]func() error, 12)
	for i := range tasks {
		tasks[i] = func() error {
			gauge.enter()
			defer gauge.leave()
			time.Sleep(5 * time.Millisecond)
			completed.Add(1)
			return nil
		}
	}

	errs := NewPool(5, ModeWindow).Run(context.Background(), tasks)

	require.Len(t, errs, 12)
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(12), completed.Load())
	assert.LessOrEqual(t, gauge.max.Load(), int32(5))
	assert.Equal(t, int32(0), gauge.current.Load())
}

func TestPool_BarrierWaitsForWholeBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	var events []string

	record := func(ev string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}

	tasks := []func() error{
		func() error { time.Sleep(20 * time.Millisecond); record("end-0"); return nil },
		func() error { record("end-1"); return nil },
		func() error { record("start-2"); return nil },
	}

	NewPool(2, ModeBarrier).Run(context.Background(), tasks)

	require.Len(t, events, 3)
	assert.Equal(t, "start-2", events[2])
}

func TestPool_FailureDoesNotCancelSiblings(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.New("boom")
	var ran atomic.Int32

	tasks := make([]func() error, 6)
	for i := range tasks {
		tasks[i] = func() error {
			ran.Add(1)
			switch i {
			case 1:
				return boom
			case 3:
				panic("unexpected")
			}
			return nil
		}
	}

	errs := NewPool(2, ModeWindow).Run(context.Background(), tasks)

	assert.Equal(t, int32(6), ran.Load())
	assert.ErrorIs(t, errs[1], boom)
	require.Error(t, errs[3])
	assert.Contains(t, errs[3].Error(), "panicked")
	for _, i := range []int{0, 2, 4, 5} {
		assert.NoError(t, errs[i])
	}
}

func TestPool_CancelledContextStopsDispatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var ran atomic.Int32

	tasks := make([]func() error, 5)
	for i := range tasks {
		tasks[i] = func() error {
			ran.Add(1)
			if i == 0 {
				cancel()
			}
			return nil
		}
	}

	errs := NewPool(1, ModeBarrier).Run(ctx, tasks)

	assert.Equal(t, int32(1), ran.Load())
	assert.NoError(t, errs[0])
	for _, err := range errs[1:] {
		assert.ErrorIs(t, err, ErrNotDispatched)
	}
}

func TestNewPool_ClampsLimit(t *testing.T) {
	assert.Equal(t, 1, NewPool(0, ModeWindow).Limit())
	assert.Equal(t, 5, NewPool(5, ModeBarrier).Limit())
}
