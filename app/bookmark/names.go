package bookmark

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	// UngroupedName is the group name of entries with no enclosing folder.
	// It never creates a real group.
	UngroupedName = "Ungrouped"

	MaxGroupNameLength = 18
)

var ErrGroupNameEmpty = errors.New("group name is empty")

// CleanGroupName collapses internal whitespace and trims the name.
func CleanGroupName(name string) string {
	return collapseSpace(name)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeGroupName is the comparison key for group names: NFC, whitespace
// collapsed, case folded.
func NormalizeGroupName(name string) string {
	return cases.Fold().String(norm.NFC.String(CleanGroupName(name)))
}

// GroupKey is the reconcile key of a folder name: the name as it would be
// stored (cleaned and truncated) then normalized. Names that truncate to the
// same stored name share a key.
func GroupKey(name string) string {
	stored, err := ValidateGroupName(name)
	if err != nil {
		return ""
	}
	return NormalizeGroupName(stored)
}

func IsUngrouped(name string) bool {
	n := NormalizeGroupName(name)
	return n == "" || n == NormalizeGroupName(UngroupedName)
}

// ValidateGroupName cleans the name and truncates it to MaxGroupNameLength runes.
func ValidateGroupName(name string) (string, error) {
	cleaned := CleanGroupName(name)
	if cleaned == "" {
		return "", ErrGroupNameEmpty
	}
	runes := []rune(cleaned)
	if len(runes) > MaxGroupNameLength {
		cleaned = strings.TrimSpace(string(runes[:MaxGroupNameLength]))
	}
	return cleaned, nil
}

// isDecorativeName reports names with no letters or digits, such as "---".
func isDecorativeName(name string) bool {
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
