package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/reway/app/bookmark"
)

// TaskSchedulerInterface is what the API needs from the scheduler.
//
//	scheduler := NewScheduler(ws, enricher, purger, interval, workerCount)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewEnrichBookmarkTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

type GroupRepository interface {
	bookmark.GroupCreator
	ListGroups(ctx context.Context) ([]bookmark.Group, error)
}

type BookmarkPurger interface {
	PurgeDeleted(ctx context.Context, before time.Time) (int64, error)
}

// Workspace is the optimistic view tasks write into.
type Workspace interface {
	bookmark.View
	AddGroups(groups ...bookmark.Group)
	MinOrderIndex() int64
	Bookmarks() []bookmark.Bookmark
	PruneUndo() []string
	UndoWindow() time.Duration
}
