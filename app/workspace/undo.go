package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/reway/app/bookmark"
)

type deletion struct {
	row       bookmark.Bookmark
	index     int
	expiresAt time.Time
}

type UndoToken struct {
	Token     string    `json:"undo_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Delete removes the bookmark from the view immediately and soft-deletes it
// in the store. The returned token restores it until it expires. If the
// store call fails the row is put back where it was.
func (w *Workspace) Delete(ctx context.Context, id string) (UndoToken, error) {
	w.mu.Lock()
	i := indexOf(w.rows, id)
	if i < 0 {
		w.mu.Unlock()
		return UndoToken{}, ErrNotFound
	}
	row := w.rows[i]
	w.rows = slices.Delete(slices.Clone(w.rows), i, i+1)

	token := UndoToken{
		Token:     uuid.NewString(),
		ExpiresAt: w.now().Add(w.undoWindow),
	}
	w.undo[token.Token] = deletion{row: row, index: i, expiresAt: token.ExpiresAt}
	w.mu.Unlock()

	if err := w.bookmarks.SoftDelete(ctx, id); err != nil {
		w.mu.Lock()
		delete(w.undo, token.Token)
		w.rows = insertAt(w.rows, i, row)
		w.mu.Unlock()
		return UndoToken{}, fmt.Errorf("failed to delete bookmark: %w", err)
	}

	return token, nil
}

// Undo re-inserts a deleted bookmark at its original index and restores it
// in the store.
func (w *Workspace) Undo(ctx context.Context, token string) (bookmark.Bookmark, error) {
	w.mu.Lock()
	d, ok := w.undo[token]
	if !ok || !w.now().Before(d.expiresAt) {
		w.mu.Unlock()
		return bookmark.Bookmark{}, ErrUndoExpired
	}
	delete(w.undo, token)
	w.rows = insertAt(w.rows, d.index, d.row)
	w.mu.Unlock()

	if err := w.bookmarks.Restore(ctx, d.row.ID); err != nil {
		w.Remove(d.row.ID)
		return bookmark.Bookmark{}, fmt.Errorf("failed to restore bookmark: %w", err)
	}

	return d.row, nil
}

// PruneUndo drops expired undo records and returns the ids they covered.
func (w *Workspace) PruneUndo() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	var expired []string
	for token, d := range w.undo {
		if !now.Before(d.expiresAt) {
			expired = append(expired, d.row.ID)
			delete(w.undo, token)
		}
	}
	if len(expired) > 0 {
		slog.Debug("Undo records expired", "count", len(expired))
	}
	return expired
}

func (w *Workspace) UndoWindow() time.Duration {
	return w.undoWindow
}

func insertAt(rows []bookmark.Bookmark, i int, row bookmark.Bookmark) []bookmark.Bookmark {
	i = min(max(i, 0), len(rows))
	return slices.Insert(slices.Clone(rows), i, row)
}
