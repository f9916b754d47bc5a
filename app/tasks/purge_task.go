package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PurgeDeletedTask hard-deletes bookmarks whose undo window has passed.
type PurgeDeletedTask struct {
	Task
	repo      BookmarkPurger
	workspace Workspace
	now       func() time.Time
}

func NewPurgeDeletedTask(repo BookmarkPurger, workspace Workspace) *PurgeDeletedTask {
	return &PurgeDeletedTask{
		Task:      NewTask(TaskTypePurgeDeleted, ""),
		repo:      repo,
		workspace: workspace,
		now:       time.Now,
	}
}

func (t *PurgeDeletedTask) Execute(ctx context.Context) error {
	expired := t.workspace.PruneUndo()

	before := t.now().UTC().Add(-t.workspace.UndoWindow())
	purged, err := t.repo.PurgeDeleted(ctx, before)
	if err != nil {
		return fmt.Errorf("failed to purge deleted bookmarks: %w", err)
	}

	if purged > 0 || len(expired) > 0 {
		slog.Info("Task completed",
			"type", t.GetType(),
			"duration", t.GetDuration(),
			"expired_undo", len(expired),
			"purged", purged)
	}

	return nil
}
