package bookmark

import (
	"context"
	"fmt"
	"time"
)

type Action string

const (
	ActionSkip     Action = "skip"
	ActionOverride Action = "override"
	ActionAdd      Action = "add"
)

func (a Action) Valid() bool {
	return a == ActionSkip || a == ActionOverride || a == ActionAdd
}

// Entry is one link found in an uploaded bookmark file. It is never persisted.
type Entry struct {
	Title         string            `json:"title"`
	URL           string            `json:"url"`
	NormalizedURL string            `json:"normalized_url"`
	GroupName     string            `json:"group_name"`
	AddedAt       *time.Time        `json:"added_at,omitempty"`
	IsDuplicate   bool              `json:"is_duplicate"`
	Existing      *ExistingBookmark `json:"existing_bookmark,omitempty"`
	Action        Action            `json:"action"`
}

type GroupSummary struct {
	Name           string `json:"name"`
	Count          int    `json:"count"`
	DuplicateCount int    `json:"duplicate_count"`
}

type DuplicateChecker interface {
	CheckDuplicates(ctx context.Context, normalizedURLs []string) (map[string]ExistingBookmark, error)
}

// AnnotateDuplicates marks entries whose normalized URL already exists. When
// the check itself fails every entry is treated as new and the error is
// returned as a warning alongside the annotated entries.
func AnnotateDuplicates(ctx context.Context, checker DuplicateChecker, entries []Entry) ([]Entry, error) {
	seen := make(map[string]bool, len(entries))
	urls := make([]string, 0, len(entries))
	for i := range entries {
		if entries[i].NormalizedURL == "" {
			entries[i].NormalizedURL = NormalizeURL(entries[i].URL)
		}
		if u := entries[i].NormalizedURL; !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	duplicates, warning := checker.CheckDuplicates(ctx, urls)
	if warning != nil {
		warning = fmt.Errorf("duplicate check failed, treating all entries as new: %w", warning)
		duplicates = nil
	}

	annotated := make([]Entry, len(entries))
	for i, entry := range entries {
		existing, ok := duplicates[entry.NormalizedURL]
		entry.IsDuplicate = ok
		entry.Existing = nil
		entry.Action = ActionAdd
		if ok {
			e := existing
			entry.Existing = &e
			entry.Action = ActionSkip
		}
		annotated[i] = entry
	}

	return annotated, warning
}

// Summarize groups entries by name in first-encounter order.
func Summarize(entries []Entry) []GroupSummary {
	index := make(map[string]int)
	var summaries []GroupSummary

	for _, entry := range entries {
		i, ok := index[entry.GroupName]
		if !ok {
			i = len(summaries)
			index[entry.GroupName] = i
			summaries = append(summaries, GroupSummary{Name: entry.GroupName})
		}
		summaries[i].Count++
		if entry.IsDuplicate {
			summaries[i].DuplicateCount++
		}
	}

	return summaries
}

// SetDuplicateAction applies a bulk skip/override/add choice to the duplicate
// entries of one group, or of every group when groupName is empty.
func SetDuplicateAction(entries []Entry, groupName string, action Action) error {
	if !action.Valid() {
		return fmt.Errorf("invalid action %q", action)
	}
	for i := range entries {
		if !entries[i].IsDuplicate {
			continue
		}
		if groupName != "" && entries[i].GroupName != groupName {
			continue
		}
		entries[i].Action = action
	}
	return nil
}

// FilterForImport keeps entries that are not skipped and whose group was
// selected. A nil selection keeps every group.
func FilterForImport(entries []Entry, selectedGroups []string) []Entry {
	var selected map[string]bool
	if selectedGroups != nil {
		selected = make(map[string]bool, len(selectedGroups))
		for _, name := range selectedGroups {
			selected[NormalizeGroupName(name)] = true
		}
	}

	kept := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Action == ActionSkip {
			continue
		}
		if entry.Action == ActionOverride && entry.Existing == nil {
			entry.Action = ActionAdd
		}
		if selected != nil && !selected[NormalizeGroupName(entry.GroupName)] {
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}

// DistinctGroupNames returns the group names referenced by entries, first
// occurrence wins for each normalized name.
func DistinctGroupNames(entries []Entry) []string {
	seen := make(map[string]bool)
	var names []string
	for _, entry := range entries {
		key := NormalizeGroupName(entry.GroupName)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, entry.GroupName)
	}
	return names
}
