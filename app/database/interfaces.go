package database

import (
	"context"
	"time"

	"github.com/lysyi3m/reway/app/bookmark"
)

type BookmarkRepositoryInterface interface {
	CreateBookmark(ctx context.Context, params bookmark.CreateParams) (string, error)
	GetBookmark(ctx context.Context, id string) (*bookmark.Bookmark, error)
	ListBookmarks(ctx context.Context) ([]bookmark.Bookmark, error)
	CheckDuplicates(ctx context.Context, normalizedURLs []string) (map[string]bookmark.ExistingBookmark, error)
	MinOrderIndex(ctx context.Context) (int64, error)

	UpdateOrder(ctx context.Context, updates []bookmark.OrderUpdate) error
	UpdateFolderOrder(ctx context.Context, updates []bookmark.OrderUpdate) error
	UpdateBookmark(ctx context.Context, id string, patch bookmark.Patch) error
	UpdateEnrichment(ctx context.Context, id string, result bookmark.Enrichment) error

	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	PurgeDeleted(ctx context.Context, before time.Time) (int64, error)
}

type GroupRepositoryInterface interface {
	CreateGroup(ctx context.Context, name, icon string, color *string) (string, error)
	GetGroup(ctx context.Context, id string) (*bookmark.Group, error)
	ListGroups(ctx context.Context) ([]bookmark.Group, error)
	UpdateGroup(ctx context.Context, id string, patch bookmark.GroupPatch) error
	DeleteGroup(ctx context.Context, id string) error
	UpdateGroupOrder(ctx context.Context, updates []bookmark.OrderUpdate) error
}
