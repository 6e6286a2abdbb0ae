package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/lucasmend/askdb/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", port.Message{Role: "user", Content: "how many partners?"}))
	require.NoError(t, store.Append(ctx, "s1", port.Message{Role: "assistant", Content: "Found 42 result(s)"}))

	msgs, err := store.History(ctx, "s1", 20)
	require.NoError(t, err)

	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "how many partners?", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
}

func TestHistory_SessionsAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", port.Message{Role: "user", Content: "first session"}))
	require.NoError(t, store.Append(ctx, "s2", port.Message{Role: "user", Content: "second session"}))

	msgs, err := store.History(ctx, "s2", 20)
	require.NoError(t, err)

	require.Len(t, msgs, 1)
	assert.Equal(t, "second session", msgs[0].Content)
}

func TestHistory_LimitKeepsMostRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Append(ctx, "s1", port.Message{Role: "user", Content: fmt.Sprintf("message %d", i)}))
	}

	msgs, err := store.History(ctx, "s1", 2)
	require.NoError(t, err)

	require.Len(t, msgs, 2)
	assert.Equal(t, "message 4", msgs[0].Content, "oldest of the kept window comes first")
	assert.Equal(t, "message 5", msgs[1].Content)
}

func TestHistory_EmptySession(t *testing.T) {
	store := newTestStore(t)

	msgs, err := store.History(context.Background(), "unknown", 20)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestNewSQLiteStore_PersistsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "s1", port.Message{Role: "user", Content: "survives restart"}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	msgs, err := reopened.History(ctx, "s1", 20)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "survives restart", msgs[0].Content)
}

func TestNoopStore(t *testing.T) {
	store := NoopStore{}
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", port.Message{Role: "user", Content: "ignored"}))
	msgs, err := store.History(ctx, "s1", 20)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	require.NoError(t, store.Close())
}
