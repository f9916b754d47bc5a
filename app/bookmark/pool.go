package bookmark

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

var ErrNotDispatched = errors.New("task not dispatched")

type Mode int

const (
	// ModeWindow keeps up to limit tasks in flight, starting the next task as
	// soon as any running one settles.
	ModeWindow Mode = iota
	// ModeBarrier runs tasks in batches of limit; batch K+1 starts only after
	// every task of batch K has settled.
	ModeBarrier
)

// Pool runs independent tasks with a fixed number of permits. A failing task
// never cancels its siblings.
type Pool struct {
	limit int
	mode  Mode
}

func NewPool(limit int, mode Mode) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{limit: limit, mode: mode}
}

func (p *Pool) Limit() int {
	return p.limit
}

// Run executes tasks and returns their errors in submission order. ctx only
// gates dispatch: once it is done no further task starts (its slot reports
// ErrNotDispatched), while tasks already running are left to finish.
func (p *Pool) Run(ctx context.Context, tasks []func() error) []error {
	errs := make([]error, len(tasks))
	if p.mode == ModeBarrier {
		for start := 0; start < len(tasks); start += p.limit {
			end := min(start+p.limit, len(tasks))
			p.dispatch(ctx, tasks[start:end], errs[start:end])
		}
		return errs
	}

	p.dispatch(ctx, tasks, errs)
	return errs
}

func (p *Pool) dispatch(ctx context.Context, tasks []func() error, errs []error) {
	var g errgroup.Group
	g.SetLimit(p.limit)

	for i, task := range tasks {
		if ctx.Err() != nil {
			errs[i] = ErrNotDispatched
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = ErrNotDispatched
				return nil
			}
			errs[i] = runSafely(task)
			return nil
		})
	}

	_ = g.Wait()
}

func runSafely(task func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task()
}
