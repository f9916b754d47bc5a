package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lysyi3m/reway/app/bookmark"
	"github.com/lysyi3m/reway/app/progress"
)

var (
	ErrImportNotFound = errors.New("import not found")
	ErrImportFinished = errors.New("import already finished")
	ErrImportRunning  = errors.New("an import is already running")
)

// ImportTracker records the progress of import jobs and routes stop requests
// to the executor running each one. Only one job holds the import slot at a
// time, from Queue until its task finishes.
type ImportTracker struct {
	store progress.Store

	mu       sync.Mutex
	active   string
	running  map[string]*bookmark.Executor
	stopping map[string]bool
}

func NewImportTracker(store progress.Store) *ImportTracker {
	return &ImportTracker{
		store:    store,
		running:  make(map[string]*bookmark.Executor),
		stopping: make(map[string]bool),
	}
}

// Queue takes the import slot for a job that has been accepted but not
// started yet. It fails with ErrImportRunning while another job holds it.
func (t *ImportTracker) Queue(ctx context.Context, jobID string, total int) (bookmark.Progress, error) {
	p := bookmark.Progress{
		JobID: jobID,
		State: bookmark.ImportIdle,
		Total: total,
	}

	t.mu.Lock()
	if t.active != "" {
		active := t.active
		t.mu.Unlock()
		return p, fmt.Errorf("failed to queue import %s (active %s): %w", jobID, active, ErrImportRunning)
	}
	t.active = jobID
	t.mu.Unlock()

	if err := t.store.Save(ctx, p); err != nil {
		t.Release(jobID)
		return p, fmt.Errorf("failed to queue import: %w", err)
	}
	return p, nil
}

// Release frees the import slot if jobID holds it and forgets any stop
// request for the job.
func (t *ImportTracker) Release(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == jobID {
		t.active = ""
	}
	delete(t.stopping, jobID)
}

func (t *ImportTracker) Progress(ctx context.Context, jobID string) (*bookmark.Progress, error) {
	p, err := t.store.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get import progress: %w", err)
	}
	return p, nil
}

// Stop keeps any entry of the job that has not started from being created.
// A job that is still queued is stopped as soon as it starts.
func (t *ImportTracker) Stop(ctx context.Context, jobID string) error {
	p, err := t.Progress(ctx, jobID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrImportNotFound
	}
	if p.State.Finished() {
		return ErrImportFinished
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopping[jobID] = true
	if executor, ok := t.running[jobID]; ok {
		executor.Stop()
	}

	slog.Info("Import stop requested", "job_id", jobID, "processed", p.Processed, "total", p.Total)
	return nil
}

// Running reports whether an import is queued or executing.
func (t *ImportTracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active != ""
}

func (t *ImportTracker) attach(jobID string, executor *bookmark.Executor) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.running[jobID] = executor
	if t.stopping[jobID] {
		executor.Stop()
	}
}

func (t *ImportTracker) detach(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.running, jobID)
}

func (t *ImportTracker) save(ctx context.Context, p bookmark.Progress) {
	if err := t.store.Save(context.WithoutCancel(ctx), p); err != nil {
		slog.Warn("Failed to save import progress", "job_id", p.JobID, "error", err)
	}
}
