package fulltext

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/bibsync-service/internal/domain"
)

func newTestStore(t *testing.T, maxSize int64) *Store {
	t.Helper()
	store, err := NewStore(Config{Dir: t.TempDir(), MaxSize: maxSize}, zerolog.Nop())
	require.NoError(t, err)
	return store
}

func TestStore_PutAndGet(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, 0)
	id := uuid.New()

	require.NoError(t, store.Put(context.Background(), id, "We present deep imaging of the cluster."))

	text, err := store.CachedFulltext(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "We present deep imaging of the cluster.", text)
}

func TestStore_MissingIsNotFound(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, 0)

	_, err := store.CachedFulltext(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_PutReplaces(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, 0)
	id := uuid.New()

	require.NoError(t, store.Put(context.Background(), id, "first version"))
	require.NoError(t, store.Put(context.Background(), id, "second version"))

	text, err := store.CachedFulltext(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "second version", text)
}

func TestStore_ReadIsCapped(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, 16)
	id := uuid.New()

	require.NoError(t, store.Put(context.Background(), id, strings.Repeat("x", 100)))

	text, err := store.CachedFulltext(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, text, 16)
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, 0)
	id := uuid.New()

	require.NoError(t, store.Put(context.Background(), id, "text"))
	require.NoError(t, store.Delete(context.Background(), id))
	require.NoError(t, store.Delete(context.Background(), id))

	_, err := store.CachedFulltext(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_RequiresDir(t *testing.T) {
	t.Parallel()
	_, err := NewStore(Config{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestStore_CancelledContext(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.CachedFulltext(ctx, uuid.New())
	assert.ErrorIs(t, err, context.Canceled)
}
