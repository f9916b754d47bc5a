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

// GroupRepository handles database operations for bookmark groups
type GroupRepository struct {
	db  *DB
	now func() time.Time
}

func NewGroupRepository(db *DB) *GroupRepository {
	return &GroupRepository{db: db, now: time.Now}
}

// CreateGroup appends a group after the existing ones and returns its id.
func (r *GroupRepository) CreateGroup(ctx context.Context, name, icon string, color *string) (string, error) {
	cleaned, err := bookmark.ValidateGroupName(name)
	if err != nil {
		return "", fmt.Errorf("failed to create group: %w", err)
	}

	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO bookmark_groups (id, name, icon, color, order_index, created_at)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(order_index) + 1, 0) FROM bookmark_groups), ?)
	`, id, cleaned, icon, nullString(color), toMillis(r.now()))
	if err != nil {
		return "", fmt.Errorf("failed to create group: %w", err)
	}

	return id, nil
}

// GetGroup returns nil when the group does not exist.
func (r *GroupRepository) GetGroup(ctx context.Context, id string) (*bookmark.Group, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+groupColumns+` FROM bookmark_groups WHERE id = ?
	`, id)

	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return &g, nil
}

func (r *GroupRepository) ListGroups(ctx context.Context) ([]bookmark.Group, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+groupColumns+` FROM bookmark_groups ORDER BY order_index, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []bookmark.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group rows: %w", err)
	}

	return groups, nil
}

func (r *GroupRepository) UpdateGroup(ctx context.Context, id string, patch bookmark.GroupPatch) error {
	var sets []string
	var args []any
	if patch.Name != nil {
		cleaned, err := bookmark.ValidateGroupName(*patch.Name)
		if err != nil {
			return fmt.Errorf("failed to update group: %w", err)
		}
		sets = append(sets, "name = ?")
		args = append(args, cleaned)
	}
	if patch.Icon != nil {
		sets = append(sets, "icon = ?")
		args = append(args, *patch.Icon)
	}
	if patch.ClearColor {
		sets = append(sets, "color = NULL")
	} else if patch.Color != nil {
		sets = append(sets, "color = ?")
		args = append(args, *patch.Color)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, `
		UPDATE bookmark_groups SET `+strings.Join(sets, ", ")+` WHERE id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to update group %s: %w", id, ErrNotFound)
	}

	return nil
}

// DeleteGroup removes the group; its bookmarks become ungrouped through the
// foreign key.
func (r *GroupRepository) DeleteGroup(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bookmark_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to delete group %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *GroupRepository) UpdateGroupOrder(ctx context.Context, updates []bookmark.OrderUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		res, err := tx.ExecContext(ctx, `UPDATE bookmark_groups SET order_index = ? WHERE id = ?`, u.OrderIndex, u.ID)
		if err != nil {
			return fmt.Errorf("failed to update group order for %s: %w", u.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("failed to update group order for %s: %w", u.ID, ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group order: %w", err)
	}
	return nil
}
