package bookmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultImportConcurrency = 5

	importFailedReason = "Import failed"
)

type BookmarkCreator interface {
	CreateBookmark(ctx context.Context, params CreateParams) (string, error)
}

type Enricher interface {
	Enrich(ctx context.Context, id, url string) Enrichment
}

// View is the optimistic list the executor writes its rows into.
type View interface {
	Prepend(rows []Bookmark)
	ConfirmID(tempID, id string) bool
	ApplyEnrichment(id string, result Enrichment) bool
	MarkFailed(id, reason string) bool
	Remove(ids ...string)
}

type Progress struct {
	JobID        string         `json:"job_id"`
	State        ImportState    `json:"state"`
	Processed    int            `json:"processed"`
	Total        int            `json:"total"`
	Created      int            `json:"created"`
	Failed       int            `json:"failed"`
	Skipped      int            `json:"skipped"`
	FailedGroups []GroupFailure `json:"failed_groups,omitempty"`
	Error        string         `json:"error,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
}

type ProgressFunc func(Progress)

// Executor creates imported bookmarks through a bounded pool, writing
// optimistic rows into the view and enriching each created bookmark.
type Executor struct {
	creator  BookmarkCreator
	enricher Enricher
	view     View
	pool     *Pool

	mu      sync.Mutex
	stopped bool
	stop    context.CancelFunc
}

func NewExecutor(creator BookmarkCreator, enricher Enricher, view View, pool *Pool) *Executor {
	return &Executor{
		creator:  creator,
		enricher: enricher,
		view:     view,
		pool:     pool,
	}
}

type pendingRow struct {
	entry   Entry
	tempID  string
	order   int64
	groupID *string
}

// Run imports entries whose groups were resolved by groups. minOrder is the
// current smallest order_index; imported rows get strictly decreasing keys
// below it. Entries whose group failed to reconcile are skipped.
func (e *Executor) Run(ctx context.Context, progress Progress, entries []Entry, groups Reconciliation, minOrder int64, onProgress ProgressFunc) Progress {
	dispatchCtx, stop := context.WithCancel(ctx)
	defer stop()

	e.mu.Lock()
	if e.stopped {
		stop()
	}
	e.stop = stop
	e.mu.Unlock()

	if progress.State == "" || progress.State == ImportIdle {
		progress.State = ImportImporting
	}
	if progress.StartedAt == nil {
		started := time.Now().UTC()
		progress.StartedAt = &started
	}

	rows := make([]pendingRow, 0, len(entries))
	for _, entry := range entries {
		groupID, ok := groups.Lookup(entry.GroupName)
		if !ok {
			progress.Skipped++
			continue
		}
		rows = append(rows, pendingRow{
			entry:   entry,
			tempID:  NewTempID(),
			order:   minOrder - int64(len(rows)) - 1,
			groupID: groupID,
		})
	}
	progress.Total = len(rows)
	progress.FailedGroups = groups.Failed
	e.report(&progress, onProgress)

	optimistic := make([]Bookmark, 0, len(rows))
	now := time.Now().UTC()
	for _, row := range rows {
		optimistic = append(optimistic, Bookmark{
			ID:               row.tempID,
			URL:              row.entry.URL,
			NormalizedURL:    row.entry.NormalizedURL,
			Title:            row.entry.Title,
			GroupID:          row.groupID,
			CreatedAt:        now,
			OrderIndex:       row.order,
			FolderOrderIndex: row.order,
			Status:           StatusPending,
			Enriching:        true,
			Optimistic:       true,
		})
	}
	e.view.Prepend(optimistic)

	var mu sync.Mutex
	tasks := make([]func() error, len(rows))
	for i, row := range rows {
		tasks[i] = func() error {
			failed := false
			id, err := e.importRow(ctx, row)
			if err != nil {
				slog.Warn("Failed to import bookmark", "url", row.entry.URL, "error", err)
				e.view.MarkFailed(id, importFailedReason)
				failed = true
			}

			mu.Lock()
			defer mu.Unlock()
			progress.Processed++
			if failed {
				progress.Failed++
			} else {
				progress.Created++
			}
			e.report(&progress, onProgress)
			return err
		}
	}

	errs := e.pool.Run(dispatchCtx, tasks)

	var undispatched []string
	for i, err := range errs {
		if errors.Is(err, ErrNotDispatched) {
			undispatched = append(undispatched, rows[i].tempID)
		}
	}
	if len(undispatched) > 0 {
		e.view.Remove(undispatched...)
		progress.Skipped += len(undispatched)
	}

	final := ImportDone
	if len(undispatched) > 0 || e.isStopped() {
		final = ImportStopped
	}
	if next, err := progress.State.Transition(final); err == nil {
		progress.State = next
	}
	finished := time.Now().UTC()
	progress.FinishedAt = &finished
	e.report(&progress, onProgress)

	return progress
}

// Stop prevents entries that have not started yet from being dispatched.
// Entries already in flight run to completion and are committed.
func (e *Executor) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	if e.stop != nil {
		e.stop()
	}
}

func (e *Executor) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// importRow returns the row's current ID (optimistic or confirmed) so a
// failure can be attributed to the right row.
func (e *Executor) importRow(ctx context.Context, row pendingRow) (currentID string, err error) {
	currentID = row.tempID
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("import panicked: %v", r)
		}
	}()

	params := CreateParams{
		URL:        row.entry.URL,
		Title:      row.entry.Title,
		GroupID:    row.groupID,
		OrderIndex: row.order,
	}
	if row.entry.Action == ActionOverride && row.entry.Existing != nil {
		params.ID = row.entry.Existing.ID
	}

	id, err := e.creator.CreateBookmark(ctx, params)
	if err != nil {
		return currentID, fmt.Errorf("failed to create bookmark: %w", err)
	}
	if id == "" {
		return currentID, fmt.Errorf("failed to create bookmark: empty id returned")
	}

	// An overridden row leaves the view only once its replacement is stored.
	if row.entry.Action == ActionOverride && row.entry.Existing != nil {
		e.view.Remove(row.entry.Existing.ID)
	}
	e.view.ConfirmID(row.tempID, id)
	currentID = id

	result := e.enricher.Enrich(ctx, id, row.entry.URL)
	e.view.ApplyEnrichment(id, result)

	return currentID, nil
}

func (e *Executor) report(progress *Progress, onProgress ProgressFunc) {
	if onProgress != nil {
		onProgress(*progress)
	}
}
