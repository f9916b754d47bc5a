package bookmark

import (
	"context"
	"fmt"
	"log/slog"
)

type GroupCreator interface {
	CreateGroup(ctx context.Context, name, icon string, color *string) (string, error)
}

type GroupFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Reconciliation maps group keys (see GroupKey) to their target groups.
type Reconciliation struct {
	Groups  map[string]Group
	Created []Group
	Failed  []GroupFailure
}

// Lookup resolves an entry's group name. Ungrouped entries resolve to a nil
// group; names whose group could not be created report ok == false.
func (r Reconciliation) Lookup(name string) (groupID *string, ok bool) {
	if IsUngrouped(name) {
		return nil, true
	}
	group, found := r.Groups[GroupKey(name)]
	if !found {
		return nil, false
	}
	id := group.ID
	return &id, true
}

type GroupReconciler struct {
	creator     GroupCreator
	defaultIcon string
}

func NewGroupReconciler(creator GroupCreator, defaultIcon string) *GroupReconciler {
	return &GroupReconciler{
		creator:     creator,
		defaultIcon: defaultIcon,
	}
}

// Reconcile matches names against existing groups and creates the missing
// ones in first-encounter order. A failed creation only affects that group.
func (r *GroupReconciler) Reconcile(ctx context.Context, names []string, existing []Group) Reconciliation {
	result := Reconciliation{
		Groups: make(map[string]Group),
	}

	byName := make(map[string]Group, len(existing))
	for _, group := range existing {
		key := GroupKey(group.Name)
		if _, dup := byName[key]; !dup {
			byName[key] = group
		}
	}

	failed := make(map[string]bool)
	for _, name := range names {
		if IsUngrouped(name) {
			continue
		}
		key := GroupKey(name)
		if _, done := result.Groups[key]; done || failed[key] {
			continue
		}

		if group, ok := byName[key]; ok {
			result.Groups[key] = group
			continue
		}

		group, err := r.create(ctx, name)
		if err != nil {
			slog.Warn("Failed to create group during import", "group", name, "error", err)
			failed[key] = true
			result.Failed = append(result.Failed, GroupFailure{Name: name, Error: err.Error()})
			continue
		}

		result.Groups[key] = group
		result.Created = append(result.Created, group)
	}

	return result
}

func (r *GroupReconciler) create(ctx context.Context, name string) (Group, error) {
	cleaned, err := ValidateGroupName(name)
	if err != nil {
		return Group{}, err
	}

	id, err := r.creator.CreateGroup(ctx, cleaned, r.defaultIcon, nil)
	if err != nil {
		return Group{}, fmt.Errorf("failed to create group %q: %w", cleaned, err)
	}

	return Group{
		ID:   id,
		Name: cleaned,
		Icon: r.defaultIcon,
	}, nil
}
