package workspace

import (
	"context"
)

// ApplyThenReconcile snapshots state, applies action speculatively and then
// confirms it with serverCall. It returns the committed state, or the
// original snapshot together with the error when either step fails.
// action must not mutate its input.
func ApplyThenReconcile[S any](ctx context.Context, state S, action func(S) (S, error), serverCall func(context.Context, S) error) (S, error) {
	snapshot := state

	next, err := action(state)
	if err != nil {
		return snapshot, err
	}

	if err := serverCall(ctx, next); err != nil {
		return snapshot, err
	}

	return next, nil
}
