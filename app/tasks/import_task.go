package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/reway/app/bookmark"
)

type ImportTask struct {
	Task
	Entries     []bookmark.Entry
	groupRepo   GroupRepository
	creator     bookmark.BookmarkCreator
	enricher    bookmark.Enricher
	workspace   Workspace
	tracker     *ImportTracker
	concurrency int
	defaultIcon string
}

// NewImportTask builds the task for one import job. entries must already be
// filtered down to what the user chose to import.
func NewImportTask(jobID string, entries []bookmark.Entry, groupRepo GroupRepository, creator bookmark.BookmarkCreator,
	enricher bookmark.Enricher, workspace Workspace, tracker *ImportTracker, concurrency int, defaultIcon string) *ImportTask {
	task := NewTask(TaskTypeImportBookmarks, jobID)
	// A retry would create the same bookmarks twice.
	task.MaxRetries = 0

	return &ImportTask{
		Task:        task,
		Entries:     entries,
		groupRepo:   groupRepo,
		creator:     creator,
		enricher:    enricher,
		workspace:   workspace,
		tracker:     tracker,
		concurrency: concurrency,
		defaultIcon: defaultIcon,
	}
}

func (t *ImportTask) JobID() string {
	return t.Target
}

func (t *ImportTask) Execute(ctx context.Context) error {
	jobID := t.JobID()
	defer t.tracker.Release(jobID)

	p := bookmark.Progress{
		JobID: jobID,
		State: bookmark.ImportIdle,
		Total: len(t.Entries),
	}

	existing, err := t.groupRepo.ListGroups(ctx)
	if err != nil {
		t.fail(ctx, p, err)
		return fmt.Errorf("failed to list groups: %w", err)
	}

	reconciler := bookmark.NewGroupReconciler(t.groupRepo, t.defaultIcon)
	groups := reconciler.Reconcile(ctx, bookmark.DistinctGroupNames(t.Entries), existing)
	if len(groups.Created) > 0 {
		t.workspace.AddGroups(groups.Created...)
	}

	pool := bookmark.NewPool(t.concurrency, bookmark.ModeBarrier)
	executor := bookmark.NewExecutor(t.creator, t.enricher, t.workspace, pool)

	t.tracker.attach(jobID, executor)
	defer t.tracker.detach(jobID)

	result := executor.Run(ctx, p, t.Entries, groups, t.workspace.MinOrderIndex(), func(p bookmark.Progress) {
		t.tracker.save(ctx, p)
	})

	slog.Info("Task completed",
		"type", t.GetType(),
		"job_id", jobID,
		"duration", t.GetDuration(),
		"state", result.State,
		"total", result.Total,
		"created", result.Created,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"failed_groups", len(result.FailedGroups))

	return nil
}

func (t *ImportTask) fail(ctx context.Context, p bookmark.Progress, cause error) {
	for _, next := range []bookmark.ImportState{bookmark.ImportImporting, bookmark.ImportError} {
		if state, err := p.State.Transition(next); err == nil {
			p.State = state
		}
	}
	p.Error = cause.Error()
	finished := time.Now().UTC()
	p.FinishedAt = &finished
	t.tracker.save(ctx, p)
}
