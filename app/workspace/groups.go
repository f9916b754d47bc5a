package workspace

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/lysyi3m/reway/app/bookmark"
)

func (w *Workspace) Groups() []bookmark.Group {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.groupRows)
}

func (w *Workspace) Group(id string) (bookmark.Group, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := groupIndex(w.groupRows, id)
	if i < 0 {
		return bookmark.Group{}, false
	}
	return w.groupRows[i], true
}

// AddGroups appends groups created elsewhere, such as by an import.
func (w *Workspace) AddGroups(groups ...bookmark.Group) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, g := range groups {
		if groupIndex(w.groupRows, g.ID) >= 0 {
			continue
		}
		g.OrderIndex = maxGroupOrder(w.groupRows) + 1
		w.groupRows = append(w.groupRows, g)
	}
}

// CreateGroup appends an optimistic group and swaps in the stored id once
// the store confirms it.
func (w *Workspace) CreateGroup(ctx context.Context, name, icon string, color *string) (bookmark.Group, error) {
	cleaned, err := bookmark.ValidateGroupName(name)
	if err != nil {
		return bookmark.Group{}, err
	}

	w.mu.Lock()
	group := bookmark.Group{
		ID:         bookmark.NewTempID(),
		Name:       cleaned,
		Icon:       icon,
		Color:      color,
		OrderIndex: maxGroupOrder(w.groupRows) + 1,
		CreatedAt:  w.now().UTC(),
	}
	w.groupRows = append(slices.Clone(w.groupRows), group)
	w.mu.Unlock()

	id, err := w.groups.CreateGroup(ctx, cleaned, icon, color)
	if err != nil {
		w.removeGroup(group.ID)
		return bookmark.Group{}, fmt.Errorf("failed to create group: %w", err)
	}

	w.mu.Lock()
	if i := groupIndex(w.groupRows, group.ID); i >= 0 {
		w.groupRows[i].ID = id
	}
	w.mu.Unlock()

	group.ID = id
	return group, nil
}

// EditGroup applies patch to one group; only the patched fields of that group
// revert on failure.
func (w *Workspace) EditGroup(ctx context.Context, id string, patch bookmark.GroupPatch) (bookmark.Group, error) {
	if patch.Name != nil {
		cleaned, err := bookmark.ValidateGroupName(*patch.Name)
		if err != nil {
			return bookmark.Group{}, err
		}
		patch.Name = &cleaned
	}

	w.mu.Lock()
	i := groupIndex(w.groupRows, id)
	if i < 0 {
		w.mu.Unlock()
		return bookmark.Group{}, ErrNotFound
	}
	previous := w.groupRows[i]
	edited := patch.Apply(previous)
	w.groupRows[i] = edited
	w.mu.Unlock()

	if err := w.groups.UpdateGroup(ctx, id, patch); err != nil {
		w.mu.Lock()
		reverted := previous
		if j := groupIndex(w.groupRows, id); j >= 0 {
			w.groupRows[j] = patch.Revert(w.groupRows[j], previous)
			reverted = w.groupRows[j]
		}
		w.mu.Unlock()
		return reverted, fmt.Errorf("failed to update group: %w", err)
	}

	return edited, nil
}

// DeleteGroup removes the group and ungroups its bookmarks. If the store
// rejects the delete the group comes back and the bookmarks it ungrouped
// rejoin it.
func (w *Workspace) DeleteGroup(ctx context.Context, id string) error {
	var (
		removed   *bookmark.Group
		index     int
		ungrouped []string
	)
	_, err := ApplyThenReconcile(ctx, id,
		func(id string) (string, error) {
			w.mu.Lock()
			defer w.mu.Unlock()

			i := groupIndex(w.groupRows, id)
			if i < 0 {
				return id, ErrNotFound
			}
			g := w.groupRows[i]
			removed, index = &g, i
			w.groupRows = slices.Delete(slices.Clone(w.groupRows), i, i+1)

			rows := slices.Clone(w.rows)
			for j := range rows {
				if rows[j].GroupID != nil && *rows[j].GroupID == id {
					rows[j].GroupID = nil
					ungrouped = append(ungrouped, rows[j].ID)
				}
			}
			w.rows = rows
			return id, nil
		},
		func(ctx context.Context, id string) error {
			return w.groups.DeleteGroup(ctx, id)
		},
	)
	if err != nil {
		if removed != nil {
			w.restoreGroup(*removed, index, ungrouped)
		}
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

// ReorderGroups re-keys groups to the given sequence; unlisted groups follow
// in their current order. Groups not yet confirmed by the store are re-keyed
// in memory only. A failed save restores the keys this call changed.
func (w *Workspace) ReorderGroups(ctx context.Context, ids []string) error {
	var previous map[string]int64
	_, err := ApplyThenReconcile(ctx, []bookmark.OrderUpdate(nil),
		func([]bookmark.OrderUpdate) ([]bookmark.OrderUpdate, error) {
			w.mu.Lock()
			defer w.mu.Unlock()

			next, err := reorderGroups(w.groupRows, ids)
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
				if !bookmark.IsTempID(next[i].ID) {
					updates = append(updates, bookmark.OrderUpdate{ID: next[i].ID, OrderIndex: key})
				}
			}
			w.groupRows = next
			return updates, nil
		},
		func(ctx context.Context, updates []bookmark.OrderUpdate) error {
			return w.groups.UpdateGroupOrder(ctx, updates)
		},
	)
	if err != nil {
		if previous != nil {
			w.restoreGroupOrder(previous)
		}
		return fmt.Errorf("failed to reorder groups: %w", err)
	}
	return nil
}

func (w *Workspace) removeGroup(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.groupRows = slices.DeleteFunc(slices.Clone(w.groupRows), func(g bookmark.Group) bool { return g.ID == id })
}

// restoreGroup re-inserts a group removed by a failed delete at its old
// position. Bookmarks it ungrouped rejoin it unless they were moved elsewhere
// meanwhile.
func (w *Workspace) restoreGroup(g bookmark.Group, index int, members []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if groupIndex(w.groupRows, g.ID) < 0 {
		index = min(max(index, 0), len(w.groupRows))
		w.groupRows = slices.Insert(slices.Clone(w.groupRows), index, g)
	}

	rows := slices.Clone(w.rows)
	for i := range rows {
		if rows[i].GroupID == nil && slices.Contains(members, rows[i].ID) {
			id := g.ID
			rows[i].GroupID = &id
		}
	}
	w.rows = rows
}

func (w *Workspace) restoreGroupOrder(previous map[string]int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	groups := slices.Clone(w.groupRows)
	for i := range groups {
		if key, ok := previous[groups[i].ID]; ok {
			groups[i].OrderIndex = key
		}
	}
	sortGroups(groups)
	w.groupRows = groups
}

func reorderGroups(groups []bookmark.Group, ids []string) ([]bookmark.Group, error) {
	pos := make(map[string]int, len(groups))
	for i, g := range groups {
		pos[g.ID] = i
	}

	next := make([]bookmark.Group, 0, len(groups))
	used := make(map[string]bool, len(ids))
	for _, id := range ids {
		i, ok := pos[id]
		if !ok || used[id] {
			return nil, fmt.Errorf("%w: group %q", ErrInvalidOrder, id)
		}
		used[id] = true
		next = append(next, groups[i])
	}
	for _, g := range groups {
		if !used[g.ID] {
			next = append(next, g)
		}
	}
	return next, nil
}

func groupIndex(groups []bookmark.Group, id string) int {
	return slices.IndexFunc(groups, func(g bookmark.Group) bool { return g.ID == id })
}

func maxGroupOrder(groups []bookmark.Group) int64 {
	m := int64(-1)
	for _, g := range groups {
		m = max(m, g.OrderIndex)
	}
	return m
}

func sortGroups(groups []bookmark.Group) {
	slices.SortStableFunc(groups, func(a, b bookmark.Group) int {
		return cmp.Compare(a.OrderIndex, b.OrderIndex)
	})
}
