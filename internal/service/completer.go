package service

import (
	"context"

	"estatechat/internal/model"
)

// TextCompleter is the interface to the text-completion collaborator. The
// core treats it as a black box: it sends an assembled prompt plus prior
// turns and gets raw text back. No timeout is enforced here; callers who
// need one must bound the context themselves.
type TextCompleter interface {
	// Complete sends the prompt with conversation history and returns the
	// model's raw text output
	Complete(ctx context.Context, prompt string, history []model.Turn) (string, error)

	// IsEnabled returns whether the collaborator is configured and ready
	IsEnabled() bool
}

// DocumentStore is the interface to the document-store collaborator. Both
// operations are read-only; implementations must silently drop any
// attempted write operator.
type DocumentStore interface {
	Find(ctx context.Context, collection string, filter map[string]any, excluded []string) ([]model.Document, error)
	UnionFind(ctx context.Context, primary string, filter map[string]any, excluded []string, secondaries []model.Stage) ([]model.Document, error)
}
