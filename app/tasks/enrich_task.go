package tasks

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/reway/app/bookmark"
)

type EnrichBookmarkTask struct {
	Task
	URL       string
	enricher  bookmark.Enricher
	workspace Workspace
}

func NewEnrichBookmarkTask(bookmarkID, url string, enricher bookmark.Enricher, workspace Workspace) *EnrichBookmarkTask {
	task := NewTask(TaskTypeEnrichBookmark, bookmarkID)
	// Enrich records its own failure on the bookmark.
	task.MaxRetries = 0

	return &EnrichBookmarkTask{
		Task:      task,
		URL:       url,
		enricher:  enricher,
		workspace: workspace,
	}
}

func (t *EnrichBookmarkTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result := t.enricher.Enrich(ctx, t.Target, t.URL)
	applied := t.workspace.ApplyEnrichment(t.Target, result)

	slog.Debug("Task completed",
		"type", t.GetType(),
		"bookmark_id", t.Target,
		"duration", t.GetDuration(),
		"status", result.Status,
		"applied", applied)

	return nil
}
