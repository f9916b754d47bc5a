package workspace

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/lysyi3m/reway/app/bookmark"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidOrder = errors.New("invalid order")
	ErrUndoExpired  = errors.New("undo token expired or unknown")
)

const DefaultUndoWindow = 8 * time.Second

type BookmarkStore interface {
	CreateBookmark(ctx context.Context, params bookmark.CreateParams) (string, error)
	UpdateBookmark(ctx context.Context, id string, patch bookmark.Patch) error
	UpdateOrder(ctx context.Context, updates []bookmark.OrderUpdate) error
	UpdateFolderOrder(ctx context.Context, updates []bookmark.OrderUpdate) error
	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
}

type GroupStore interface {
	CreateGroup(ctx context.Context, name, icon string, color *string) (string, error)
	UpdateGroup(ctx context.Context, id string, patch bookmark.GroupPatch) error
	DeleteGroup(ctx context.Context, id string) error
	UpdateGroupOrder(ctx context.Context, updates []bookmark.OrderUpdate) error
}

// Workspace is the optimistic in-memory view of bookmarks and groups. Every
// mutation derives the next state from the current one under the lock, then
// confirms it against the store and compensates on failure.
type Workspace struct {
	bookmarks BookmarkStore
	groups    GroupStore

	mu         sync.Mutex
	rows       []bookmark.Bookmark
	groupRows  []bookmark.Group
	undo       map[string]deletion
	undoWindow time.Duration
	now        func() time.Time
}

func New(bookmarks BookmarkStore, groups GroupStore, undoWindow time.Duration) *Workspace {
	if undoWindow <= 0 {
		undoWindow = DefaultUndoWindow
	}
	return &Workspace{
		bookmarks:  bookmarks,
		groups:     groups,
		undo:       make(map[string]deletion),
		undoWindow: undoWindow,
		now:        time.Now,
	}
}

// Load replaces the in-memory state with server-confirmed rows.
func (w *Workspace) Load(rows []bookmark.Bookmark, groups []bookmark.Group) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.rows = slices.Clone(rows)
	sortByOrder(w.rows)
	w.groupRows = slices.Clone(groups)
	sortGroups(w.groupRows)
}

// Bookmarks returns the all-bookmarks view in display order.
func (w *Workspace) Bookmarks() []bookmark.Bookmark {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.rows)
}

// FolderView returns the bookmarks of one group (nil for ungrouped) ordered
// by their within-group key.
func (w *Workspace) FolderView(groupID *string) []bookmark.Bookmark {
	w.mu.Lock()
	defer w.mu.Unlock()
	return folderRows(w.rows, groupID)
}

func (w *Workspace) Bookmark(id string) (bookmark.Bookmark, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := indexOf(w.rows, id)
	if i < 0 {
		return bookmark.Bookmark{}, false
	}
	return w.rows[i], true
}

// MinOrderIndex is the smallest all-bookmarks key in the view, or 0.
func (w *Workspace) MinOrderIndex() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return minOrder(w.rows)
}

// Prepend inserts optimistic rows ahead of the current list.
func (w *Workspace) Prepend(rows []bookmark.Bookmark) {
	if len(rows) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(slices.Clone(rows), w.rows...)
}

// ConfirmID swaps an optimistic id for the authoritative one without moving
// the row.
func (w *Workspace) ConfirmID(tempID, id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := indexOf(w.rows, tempID)
	if i < 0 {
		return false
	}
	w.rows[i].ID = id
	w.rows[i].Optimistic = false
	return true
}

// ApplyEnrichment merges a metadata fetch result into the row. Rows that
// already left pending are not changed.
func (w *Workspace) ApplyEnrichment(id string, result bookmark.Enrichment) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := indexOf(w.rows, id)
	if i < 0 {
		return false
	}
	row := &w.rows[i]
	row.Enriching = false

	status, err := row.Status.Transition(result.Status)
	if err != nil {
		slog.Debug("Enrichment result ignored", "bookmark_id", id, "error", err)
		return false
	}
	row.Status = status

	if status == bookmark.StatusFailed {
		row.ErrorReason = result.ErrorReason
		return true
	}

	if result.Title != "" {
		row.Title = result.Title
	}
	if result.Description != "" {
		row.Description = result.Description
	}
	if result.FaviconURL != "" {
		row.FaviconURL = result.FaviconURL
	}
	if result.OGImageURL != "" {
		row.OGImageURL = result.OGImageURL
	}
	if result.ImageURL != "" {
		row.ImageURL = result.ImageURL
	}
	row.LastFetchedAt = result.LastFetchedAt
	row.ErrorReason = ""
	return true
}

func (w *Workspace) MarkFailed(id, reason string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := indexOf(w.rows, id)
	if i < 0 {
		return false
	}
	status, err := w.rows[i].Status.Transition(bookmark.StatusFailed)
	if err != nil {
		return false
	}
	w.rows[i].Status = status
	w.rows[i].ErrorReason = reason
	w.rows[i].Enriching = false
	return true
}

func (w *Workspace) Remove(ids ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = without(w.rows, ids...)
}

// Create inserts an optimistic row at the top of both views and confirms it
// against the store. The row is removed again if the store rejects it.
func (w *Workspace) Create(ctx context.Context, url, title string, groupID *string) (bookmark.Bookmark, error) {
	if !bookmark.IsValidURL(url) {
		return bookmark.Bookmark{}, fmt.Errorf("invalid url %q", url)
	}
	if title == "" {
		title = url
	}

	w.mu.Lock()
	row := bookmark.Bookmark{
		ID:               bookmark.NewTempID(),
		URL:              url,
		NormalizedURL:    bookmark.NormalizeURL(url),
		Title:            title,
		GroupID:          groupID,
		CreatedAt:        w.now().UTC(),
		OrderIndex:       minOrder(w.rows) - 1,
		FolderOrderIndex: minFolderOrder(w.rows, groupID) - 1,
		Status:           bookmark.StatusPending,
		Enriching:        true,
		Optimistic:       true,
	}
	w.rows = append([]bookmark.Bookmark{row}, w.rows...)
	w.mu.Unlock()

	id, err := w.bookmarks.CreateBookmark(ctx, bookmark.CreateParams{
		URL:        url,
		Title:      title,
		GroupID:    groupID,
		OrderIndex: row.OrderIndex,
	})
	if err != nil {
		w.Remove(row.ID)
		return bookmark.Bookmark{}, fmt.Errorf("failed to create bookmark: %w", err)
	}

	w.ConfirmID(row.ID, id)
	row.ID = id
	row.Optimistic = false
	return row, nil
}

// Reorder moves the listed bookmarks to the front of the all-bookmarks view
// in the given order and re-keys every row to its new index. Rows not listed
// keep their relative order after them. Optimistic rows are re-keyed in memory
// only; the store does not know them yet. A failed save restores the keys this
// call changed and leaves every other update in place.
func (w *Workspace) Reorder(ctx context.Context, ids []string) error {
	var previous map[string]int64
	_, err := ApplyThenReconcile(ctx, []bookmark.OrderUpdate(nil),
		func([]bookmark.OrderUpdate) ([]bookmark.OrderUpdate, error) {
			w.mu.Lock()
			defer w.mu.Unlock()

			next, err := reorder(w.rows, ids)
			if err != nil {
				return nil, err
			}
			previous = make(map[string]int64)
			var updates []bookmark.OrderUpdate
			for i := range next {
				key := int64(i)
				if next[i].OrderIndex != key {
					previous[next[i].ID] = next[i].OrderIndex
					next[i].OrderIndex = key
				}
				if !next[i].Optimistic {
					updates = append(updates, bookmark.OrderUpdate{ID: next[i].ID, OrderIndex: key})
				}
			}
			w.rows = next
			return updates, nil
		},
		func(ctx context.Context, updates []bookmark.OrderUpdate) error {
			return w.bookmarks.UpdateOrder(ctx, updates)
		},
	)
	if err != nil {
		if previous != nil {
			w.restoreOrder(previous)
		}
		return fmt.Errorf("failed to reorder bookmarks: %w", err)
	}
	return nil
}

// ReorderFolder re-keys the rows of one group using their within-group key.
func (w *Workspace) ReorderFolder(ctx context.Context, groupID *string, ids []string) error {
	var previous map[string]int64
	_, err := ApplyThenReconcile(ctx, []bookmark.OrderUpdate(nil),
		func([]bookmark.OrderUpdate) ([]bookmark.OrderUpdate, error) {
			w.mu.Lock()
			defer w.mu.Unlock()

			folder, err := reorder(folderRows(w.rows, groupID), ids)
			if err != nil {
				return nil, err
			}
			keys := make(map[string]int64, len(folder))
			var updates []bookmark.OrderUpdate
			for i, row := range folder {
				keys[row.ID] = int64(i)
				if !row.Optimistic {
					updates = append(updates, bookmark.OrderUpdate{ID: row.ID, OrderIndex: int64(i)})
				}
			}
			previous = make(map[string]int64)
			next := slices.Clone(w.rows)
			for i := range next {
				if key, ok := keys[next[i].ID]; ok && next[i].FolderOrderIndex != key {
					previous[next[i].ID] = next[i].FolderOrderIndex
					next[i].FolderOrderIndex = key
				}
			}
			w.rows = next
			return updates, nil
		},
		func(ctx context.Context, updates []bookmark.OrderUpdate) error {
			return w.bookmarks.UpdateFolderOrder(ctx, updates)
		},
	)
	if err != nil {
		if previous != nil {
			w.restoreFolderOrder(previous)
		}
		return fmt.Errorf("failed to reorder folder: %w", err)
	}
	return nil
}

// Edit applies patch to one row immediately. If the store rejects it only
// the fields the patch touched revert.
func (w *Workspace) Edit(ctx context.Context, id string, patch bookmark.Patch) (bookmark.Bookmark, error) {
	if patch.URL != nil && !bookmark.IsValidURL(*patch.URL) {
		return bookmark.Bookmark{}, fmt.Errorf("invalid url %q", *patch.URL)
	}

	w.mu.Lock()
	i := indexOf(w.rows, id)
	if i < 0 {
		w.mu.Unlock()
		return bookmark.Bookmark{}, ErrNotFound
	}
	previous := w.rows[i]
	edited := patch.Apply(previous)
	w.rows[i] = edited
	w.mu.Unlock()

	if err := w.bookmarks.UpdateBookmark(ctx, id, patch); err != nil {
		w.mu.Lock()
		reverted := previous
		if j := indexOf(w.rows, id); j >= 0 {
			w.rows[j] = patch.Revert(w.rows[j], previous)
			reverted = w.rows[j]
		}
		w.mu.Unlock()
		return reverted, fmt.Errorf("failed to update bookmark: %w", err)
	}

	return edited, nil
}

// restoreOrder puts back the all-bookmarks keys of the given rows and
// re-sorts the current list by key.
func (w *Workspace) restoreOrder(previous map[string]int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows := slices.Clone(w.rows)
	for i := range rows {
		if key, ok := previous[rows[i].ID]; ok {
			rows[i].OrderIndex = key
		}
	}
	sortByOrder(rows)
	w.rows = rows
}

func (w *Workspace) restoreFolderOrder(previous map[string]int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows := slices.Clone(w.rows)
	for i := range rows {
		if key, ok := previous[rows[i].ID]; ok {
			rows[i].FolderOrderIndex = key
		}
	}
	w.rows = rows
}

func reorder(rows []bookmark.Bookmark, ids []string) ([]bookmark.Bookmark, error) {
	pos := make(map[string]int, len(rows))
	for i, row := range rows {
		pos[row.ID] = i
	}

	next := make([]bookmark.Bookmark, 0, len(rows))
	used := make(map[string]bool, len(ids))
	for _, id := range ids {
		i, ok := pos[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown id %q", ErrInvalidOrder, id)
		}
		if used[id] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidOrder, id)
		}
		used[id] = true
		next = append(next, rows[i])
	}
	for _, row := range rows {
		if !used[row.ID] {
			next = append(next, row)
		}
	}
	return next, nil
}

func folderRows(rows []bookmark.Bookmark, groupID *string) []bookmark.Bookmark {
	var out []bookmark.Bookmark
	for _, row := range rows {
		if sameGroup(row.GroupID, groupID) {
			out = append(out, row)
		}
	}
	slices.SortStableFunc(out, func(a, b bookmark.Bookmark) int {
		return cmp.Compare(a.FolderOrderIndex, b.FolderOrderIndex)
	})
	return out
}

func sameGroup(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func indexOf(rows []bookmark.Bookmark, id string) int {
	return slices.IndexFunc(rows, func(b bookmark.Bookmark) bool { return b.ID == id })
}

func without(rows []bookmark.Bookmark, ids ...string) []bookmark.Bookmark {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	return slices.DeleteFunc(slices.Clone(rows), func(b bookmark.Bookmark) bool { return drop[b.ID] })
}

func minOrder(rows []bookmark.Bookmark) int64 {
	var m int64
	for i, row := range rows {
		if i == 0 || row.OrderIndex < m {
			m = row.OrderIndex
		}
	}
	return m
}

func minFolderOrder(rows []bookmark.Bookmark, groupID *string) int64 {
	var m int64
	found := false
	for _, row := range rows {
		if !sameGroup(row.GroupID, groupID) {
			continue
		}
		if !found || row.FolderOrderIndex < m {
			m = row.FolderOrderIndex
			found = true
		}
	}
	return m
}

func sortByOrder(rows []bookmark.Bookmark) {
	slices.SortStableFunc(rows, func(a, b bookmark.Bookmark) int {
		return cmp.Compare(a.OrderIndex, b.OrderIndex)
	})
}

