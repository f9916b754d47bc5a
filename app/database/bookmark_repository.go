package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/reway/app/bookmark"
)

// SQLite caps bound parameters per statement; duplicate lookups are chunked.
const duplicateChunkSize = 500

// BookmarkRepository handles database operations for bookmarks
type BookmarkRepository struct {
	db  *DB
	now func() time.Time
}

func NewBookmarkRepository(db *DB) *BookmarkRepository {
	return &BookmarkRepository{db: db, now: time.Now}
}

// CreateBookmark inserts a pending bookmark. When params.ID names an
// existing bookmark that row is overwritten and reset to pending.
func (r *BookmarkRepository) CreateBookmark(ctx context.Context, params bookmark.CreateParams) (string, error) {
	id := params.ID
	if id == "" {
		id = uuid.NewString()
	}
	title := params.Title
	if title == "" {
		title = params.URL
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bookmarks (id, url, normalized_url, title, group_id, created_at, order_index, folder_order_index, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending')
		ON CONFLICT (id) DO UPDATE SET
			url = excluded.url,
			normalized_url = excluded.normalized_url,
			title = excluded.title,
			group_id = excluded.group_id,
			order_index = excluded.order_index,
			folder_order_index = excluded.folder_order_index,
			status = 'pending',
			error_reason = '',
			deleted_at = NULL
	`, id, params.URL, bookmark.NormalizeURL(params.URL), title, nullString(params.GroupID),
		toMillis(r.now()), params.OrderIndex, params.OrderIndex)
	if err != nil {
		return "", fmt.Errorf("failed to create bookmark: %w", err)
	}

	return id, nil
}

// GetBookmark returns nil when the bookmark does not exist or is deleted.
func (r *BookmarkRepository) GetBookmark(ctx context.Context, id string) (*bookmark.Bookmark, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks
		WHERE id = ? AND deleted_at IS NULL
	`, id)

	b, err := scanBookmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark: %w", err)
	}

	return &b, nil
}

// ListBookmarks returns live bookmarks in all-bookmarks order.
func (r *BookmarkRepository) ListBookmarks(ctx context.Context) ([]bookmark.Bookmark, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks
		WHERE deleted_at IS NULL
		ORDER BY order_index, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []bookmark.Bookmark
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmark row: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookmark rows: %w", err)
	}

	return bookmarks, nil
}

// CheckDuplicates maps each normalized URL that already has a live bookmark
// to that bookmark.
func (r *BookmarkRepository) CheckDuplicates(ctx context.Context, normalizedURLs []string) (map[string]bookmark.ExistingBookmark, error) {
	duplicates := make(map[string]bookmark.ExistingBookmark)

	for start := 0; start < len(normalizedURLs); start += duplicateChunkSize {
		chunk := normalizedURLs[start:min(start+duplicateChunkSize, len(normalizedURLs))]

		args := make([]any, len(chunk))
		for i, u := range chunk {
			args[i] = u
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := r.db.QueryContext(ctx, `
			SELECT id, title, url, normalized_url
			FROM bookmarks
			WHERE deleted_at IS NULL AND normalized_url IN (`+placeholders+`)
			ORDER BY created_at
		`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to check duplicates: %w", err)
		}

		for rows.Next() {
			var existing bookmark.ExistingBookmark
			var normalized string
			if err := rows.Scan(&existing.ID, &existing.Title, &existing.URL, &normalized); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan duplicate row: %w", err)
			}
			if _, seen := duplicates[normalized]; !seen {
				duplicates[normalized] = existing
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("error iterating duplicate rows: %w", err)
		}
	}

	return duplicates, nil
}

// MinOrderIndex returns the smallest order_index among live bookmarks, or 0.
func (r *BookmarkRepository) MinOrderIndex(ctx context.Context) (int64, error) {
	var m int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(MIN(order_index), 0) FROM bookmarks WHERE deleted_at IS NULL
	`).Scan(&m)
	if err != nil {
		return 0, fmt.Errorf("failed to get min order index: %w", err)
	}
	return m, nil
}

func (r *BookmarkRepository) UpdateOrder(ctx context.Context, updates []bookmark.OrderUpdate) error {
	return r.updateOrder(ctx, "order_index", updates)
}

func (r *BookmarkRepository) UpdateFolderOrder(ctx context.Context, updates []bookmark.OrderUpdate) error {
	return r.updateOrder(ctx, "folder_order_index", updates)
}

// updateOrder writes every key in one transaction so a failure leaves the
// stored order untouched.
func (r *BookmarkRepository) updateOrder(ctx context.Context, column string, updates []bookmark.OrderUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE bookmarks SET `+column+` = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare order update: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		res, err := stmt.ExecContext(ctx, u.OrderIndex, u.ID)
		if err != nil {
			return fmt.Errorf("failed to update %s for %s: %w", column, u.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("failed to update %s for %s: %w", column, u.ID, ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order update: %w", err)
	}
	return nil
}

// UpdateBookmark applies a user edit. A URL change resets the bookmark to
// pending so it is enriched again.
func (r *BookmarkRepository) UpdateBookmark(ctx context.Context, id string, patch bookmark.Patch) error {
	if patch.IsEmpty() {
		return nil
	}

	var sets []string
	var args []any
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.URL != nil {
		sets = append(sets, "url = ?", "normalized_url = ?", "status = 'pending'", "error_reason = ''")
		args = append(args, *patch.URL, bookmark.NormalizeURL(*patch.URL))
	}
	if patch.ClearGroup {
		sets = append(sets, "group_id = NULL")
	} else if patch.GroupID != nil {
		sets = append(sets, "group_id = ?")
		args = append(args, *patch.GroupID)
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, `
		UPDATE bookmarks SET `+strings.Join(sets, ", ")+`
		WHERE id = ? AND deleted_at IS NULL
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update bookmark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to update bookmark %s: %w", id, ErrNotFound)
	}

	return nil
}

// UpdateEnrichment stores a metadata fetch result. Only pending bookmarks
// are updated; a stale result for a settled bookmark is ignored.
func (r *BookmarkRepository) UpdateEnrichment(ctx context.Context, id string, result bookmark.Enrichment) error {
	if !bookmark.StatusPending.CanTransition(result.Status) {
		return fmt.Errorf("failed to update enrichment: %w: pending -> %s", bookmark.ErrInvalidTransition, result.Status)
	}

	var err error
	if result.Status == bookmark.StatusFailed {
		_, err = r.db.ExecContext(ctx, `
			UPDATE bookmarks
			SET status = 'failed', error_reason = ?, last_fetched_at = ?
			WHERE id = ? AND status = 'pending'
		`, result.ErrorReason, nullMillis(result.LastFetchedAt), id)
	} else {
		_, err = r.db.ExecContext(ctx, `
			UPDATE bookmarks
			SET status = 'ready',
			    title = COALESCE(NULLIF(?, ''), title),
			    description = COALESCE(NULLIF(?, ''), description),
			    favicon_url = COALESCE(NULLIF(?, ''), favicon_url),
			    og_image_url = COALESCE(NULLIF(?, ''), og_image_url),
			    image_url = COALESCE(NULLIF(?, ''), image_url),
			    error_reason = '',
			    last_fetched_at = ?
			WHERE id = ? AND status = 'pending'
		`, result.Title, result.Description, result.FaviconURL, result.OGImageURL, result.ImageURL,
			nullMillis(result.LastFetchedAt), id)
	}
	if err != nil {
		return fmt.Errorf("failed to update enrichment: %w", err)
	}

	return nil
}

func (r *BookmarkRepository) SoftDelete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookmarks SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, toMillis(r.now()), id)
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to delete bookmark %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *BookmarkRepository) Restore(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookmarks SET deleted_at = NULL WHERE id = ? AND deleted_at IS NOT NULL
	`, id)
	if err != nil {
		return fmt.Errorf("failed to restore bookmark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to restore bookmark %s: %w", id, ErrNotFound)
	}
	return nil
}

// PurgeDeleted hard-deletes bookmarks soft-deleted before the cutoff.
func (r *BookmarkRepository) PurgeDeleted(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM bookmarks WHERE deleted_at IS NOT NULL AND deleted_at < ?
	`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("failed to purge deleted bookmarks: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged bookmarks: %w", err)
	}
	return n, nil
}
