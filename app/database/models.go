package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lysyi3m/reway/app/bookmark"
)

var ErrNotFound = errors.New("record not found")

const bookmarkColumns = `id, url, normalized_url, title, description, favicon_url, og_image_url, image_url,
	group_id, created_at, order_index, folder_order_index, status, error_reason, last_fetched_at`

const groupColumns = `id, name, icon, color, order_index, created_at`

type scanner interface {
	Scan(dest ...any) error
}

// Timestamps are stored as unix milliseconds.
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func scanBookmark(row scanner) (bookmark.Bookmark, error) {
	var (
		b           bookmark.Bookmark
		groupID     sql.NullString
		createdAt   int64
		status      string
		lastFetched sql.NullInt64
	)

	err := row.Scan(
		&b.ID, &b.URL, &b.NormalizedURL, &b.Title, &b.Description, &b.FaviconURL, &b.OGImageURL, &b.ImageURL,
		&groupID, &createdAt, &b.OrderIndex, &b.FolderOrderIndex, &status, &b.ErrorReason, &lastFetched,
	)
	if err != nil {
		return b, err
	}

	if groupID.Valid {
		id := groupID.String
		b.GroupID = &id
	}
	b.CreatedAt = fromMillis(createdAt)
	b.Status = bookmark.Status(status)
	if lastFetched.Valid {
		t := fromMillis(lastFetched.Int64)
		b.LastFetchedAt = &t
	}

	return b, nil
}

func scanGroup(row scanner) (bookmark.Group, error) {
	var (
		g         bookmark.Group
		color     sql.NullString
		createdAt int64
	)

	if err := row.Scan(&g.ID, &g.Name, &g.Icon, &color, &g.OrderIndex, &createdAt); err != nil {
		return g, err
	}

	if color.Valid {
		c := color.String
		g.Color = &c
	}
	g.CreatedAt = fromMillis(createdAt)

	return g, nil
}
