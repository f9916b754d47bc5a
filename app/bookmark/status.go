package bookmark

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid state transition")

// Status is the enrichment state of a bookmark.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

var statusTransitions = map[Status][]Status{
	StatusPending: {StatusReady, StatusFailed},
	StatusReady:   {},
	StatusFailed:  {},
}

func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := statusTransitions[status]; !ok {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return status, nil
}

func (s Status) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range statusTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates s -> to against the transition table.
func (s Status) Transition(to Status) (Status, error) {
	if !s.CanTransition(to) {
		return s, fmt.Errorf("%w: status %s -> %s", ErrInvalidTransition, s, to)
	}
	return to, nil
}

// Edit is the explicit user edit path; it may move a bookmark out of a
// terminal status.
func (s Status) Edit(to Status) (Status, error) {
	if !to.Valid() {
		return s, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	return to, nil
}

// ImportState tracks the lifecycle of one import job.
type ImportState string

const (
	ImportIdle      ImportState = "idle"
	ImportImporting ImportState = "importing"
	ImportDone      ImportState = "done"
	ImportError     ImportState = "error"
	ImportStopped   ImportState = "stopped"
)

var importTransitions = map[ImportState][]ImportState{
	ImportIdle:      {ImportImporting},
	ImportImporting: {ImportDone, ImportError, ImportStopped},
	ImportDone:      {ImportIdle},
	ImportError:     {ImportIdle},
	ImportStopped:   {ImportIdle},
}

func (s ImportState) Finished() bool {
	return s == ImportDone || s == ImportError || s == ImportStopped
}

func (s ImportState) CanTransition(to ImportState) bool {
	for _, next := range importTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ImportState) Transition(to ImportState) (ImportState, error) {
	if !s.CanTransition(to) {
		return s, fmt.Errorf("%w: import %s -> %s", ErrInvalidTransition, s, to)
	}
	return to, nil
}
