package api

import (
	"cmp"
	"slices"
	"time"

	"github.com/lysyi3m/reway/app/bookmark"
	"github.com/lysyi3m/reway/app/database"
	"github.com/lysyi3m/reway/app/icons"
	"github.com/lysyi3m/reway/app/tasks"
	"github.com/lysyi3m/reway/app/workspace"
)

const maxUploadSize = 10 << 20

type Handler struct {
	workspace         *workspace.Workspace
	bookmarkRepo      database.BookmarkRepositoryInterface
	groupRepo         database.GroupRepositoryInterface
	parser            *bookmark.Parser
	enricher          bookmark.Enricher
	scheduler         tasks.TaskSchedulerInterface
	tracker           *tasks.ImportTracker
	icons             *icons.Registry
	importConcurrency int
	version           string
}

type BookmarkResponse struct {
	ID               string     `json:"id"`
	URL              string     `json:"url"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	FaviconURL       string     `json:"favicon_url,omitempty"`
	OGImageURL       string     `json:"og_image_url,omitempty"`
	ImageURL         string     `json:"image_url,omitempty"`
	GroupID          *string    `json:"group_id"`
	CreatedAt        time.Time  `json:"created_at"`
	OrderIndex       int64      `json:"order_index"`
	FolderOrderIndex int64      `json:"folder_order_index"`
	Status           string     `json:"status"`
	ErrorReason      string     `json:"error_reason,omitempty"`
	LastFetchedAt    *time.Time `json:"last_fetched_at,omitempty"`
	Enriching        bool       `json:"enriching"`
	Optimistic       bool       `json:"optimistic,omitempty"`
}

type GroupResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Icon       string    `json:"icon"`
	Color      *string   `json:"color"`
	OrderIndex int64     `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateBookmarkRequest struct {
	URL     string  `json:"url" binding:"required"`
	Title   string  `json:"title"`
	GroupID *string `json:"group_id"`
}

type UpdateBookmarkRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	GroupID     *string `json:"group_id"`
	ClearGroup  bool    `json:"clear_group"`
}

type CreateGroupRequest struct {
	Name  string  `json:"name" binding:"required"`
	Icon  string  `json:"icon"`
	Color *string `json:"color"`
}

type UpdateGroupRequest struct {
	Name       *string `json:"name"`
	Icon       *string `json:"icon"`
	Color      *string `json:"color"`
	ClearColor bool    `json:"clear_color"`
}

// OrderRequest accepts either the full id sequence or explicit keys.
type OrderRequest struct {
	IDs    []string               `json:"ids"`
	Orders []bookmark.OrderUpdate `json:"orders"`
}

type DuplicateAction struct {
	Group  string          `json:"group"`
	Action bookmark.Action `json:"action" binding:"required"`
}

type ImportRequest struct {
	Entries          []bookmark.Entry  `json:"entries"`
	SelectedGroups   []string          `json:"selected_groups"`
	DuplicateActions []DuplicateAction `json:"duplicate_actions"`
}

type PreviewResponse struct {
	Entries    []bookmark.Entry        `json:"entries"`
	Groups     []bookmark.GroupSummary `json:"groups"`
	Total      int                     `json:"total"`
	Duplicates int                     `json:"duplicates"`
	Warning    string                  `json:"warning,omitempty"`
}

func toBookmarkResponse(b bookmark.Bookmark) BookmarkResponse {
	return BookmarkResponse{
		ID:               b.ID,
		URL:              b.URL,
		Title:            b.Title,
		Description:      b.Description,
		FaviconURL:       b.FaviconURL,
		OGImageURL:       b.OGImageURL,
		ImageURL:         b.ImageURL,
		GroupID:          b.GroupID,
		CreatedAt:        b.CreatedAt,
		OrderIndex:       b.OrderIndex,
		FolderOrderIndex: b.FolderOrderIndex,
		Status:           string(b.Status),
		ErrorReason:      b.ErrorReason,
		LastFetchedAt:    b.LastFetchedAt,
		Enriching:        b.Enriching,
		Optimistic:       b.Optimistic,
	}
}

func toBookmarkResponses(rows []bookmark.Bookmark) []BookmarkResponse {
	out := make([]BookmarkResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toBookmarkResponse(row))
	}
	return out
}

func toGroupResponse(g bookmark.Group) GroupResponse {
	return GroupResponse{
		ID:         g.ID,
		Name:       g.Name,
		Icon:       g.Icon,
		Color:      g.Color,
		OrderIndex: g.OrderIndex,
		CreatedAt:  g.CreatedAt,
	}
}

// orderedIDs turns explicit keys into an id sequence sorted by key.
func (r OrderRequest) orderedIDs() []string {
	if len(r.IDs) > 0 || len(r.Orders) == 0 {
		return r.IDs
	}
	orders := make([]bookmark.OrderUpdate, len(r.Orders))
	copy(orders, r.Orders)
	slices.SortStableFunc(orders, func(a, b bookmark.OrderUpdate) int {
		return cmp.Compare(a.OrderIndex, b.OrderIndex)
	})
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}
