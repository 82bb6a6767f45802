package history

import (
	"context"

	"estatechat/internal/model"
)

// Store is the conversation-history contract the core depends on. The
// persistence mechanism behind it is a collaborator; the core only appends,
// finalizes in place, and reads snapshots.
type Store interface {
	// Append adds a turn at the tail of the history
	Append(ctx context.Context, turn model.Turn) error

	// ReplaceLastOfRole rewrites the text of the most recent turn of the
	// given role, appending instead when no such turn exists. Calling it
	// twice with the same text leaves exactly one turn.
	ReplaceLastOfRole(ctx context.Context, role model.Role, text string) error

	// Snapshot returns the full ordered history, oldest first
	Snapshot(ctx context.Context) ([]model.Turn, error)
}
