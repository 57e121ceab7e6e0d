// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ollama-relay/internal/model"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestStore_LoadEmpty(t *testing.T) {
	store, _ := openTemp(t)

	msgs, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)

	exists, err := store.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	store, _ := openTemp(t)

	first := []model.Message{*model.NewUserMessage("Hello")}
	require.NoError(t, store.Save(ctx, first))

	second := []model.Message{
		*model.NewUserMessage("Hello"),
		*model.NewMessage(model.RoleAssistant, "Hi there"),
	}
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.RoleAssistant, got[1].Role)
	assert.Equal(t, "Hi there", got[1].Content)
	assert.Equal(t, second[0].ID, got[0].ID)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	store, path := openTemp(t)
	require.NoError(t, store.Save(ctx, []model.Message{*model.NewUserMessage("kept")}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Content)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, _ := openTemp(t)

	require.NoError(t, store.Save(ctx, []model.Message{*model.NewUserMessage("x")}))
	require.NoError(t, store.Delete(ctx))

	exists, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists, "no persisted state after delete")

	// Deleting again is fine.
	assert.NoError(t, store.Delete(ctx))
}

func TestStore_Corrupt(t *testing.T) {
	ctx := context.Background()
	store, _ := openTemp(t)

	_, err := store.db.Exec(`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, 0)`, HistoryKey, "{not json")
	require.NoError(t, err)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStore_SeparateKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	a, err := OpenWithKey(path, "a")
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Save(ctx, []model.Message{*model.NewUserMessage("from a")}))

	b, err := OpenWithKey(path, "b")
	require.NoError(t, err)
	defer b.Close()

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_InMemory(t *testing.T) {
	ctx := context.Background()
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(ctx, nil))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
