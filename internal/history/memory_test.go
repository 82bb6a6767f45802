package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"estatechat/internal/model"
)

func TestMemoryStore_AppendAndSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Append(ctx, model.Turn{Role: model.RoleUser, Text: "hi"}))
	require.NoError(t, store.Append(ctx, model.Turn{Role: model.RoleAssistant, Text: "hello"}))

	turns, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, model.RoleUser, turns[0].Role)
	require.Equal(t, "hello", turns[1].Text)
}

func TestMemoryStore_ReplaceLastOfRole(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Append(ctx, model.Turn{Role: model.RoleUser, Text: "hi"}))
	require.NoError(t, store.Append(ctx, model.Turn{Role: model.RoleAssistant, Text: "draft"}))
	require.NoError(t, store.Append(ctx, model.Turn{Role: model.RoleUser, Text: "again"}))

	require.NoError(t, store.ReplaceLastOfRole(ctx, model.RoleAssistant, "final"))

	turns, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	require.Equal(t, "final", turns[1].Text)
	require.Equal(t, "again", turns[2].Text)
}

func TestMemoryStore_ReplaceLastOfRole_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Append(ctx, model.Turn{Role: model.RoleUser, Text: "hi"}))

	// First call appends (no assistant turn yet), second rewrites in place
	require.NoError(t, store.ReplaceLastOfRole(ctx, model.RoleAssistant, "Hello!"))
	require.NoError(t, store.ReplaceLastOfRole(ctx, model.RoleAssistant, "Hello!"))

	turns, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, model.RoleAssistant, turns[1].Role)
	require.Equal(t, "Hello!", turns[1].Text)
}

func TestMemoryStore_SnapshotIsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Append(ctx, model.Turn{Role: model.RoleUser, Text: "hi"}))

	turns, err := store.Snapshot(ctx)
	require.NoError(t, err)
	turns[0].Text = "tampered"

	again, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, "hi", again[0].Text)
}
