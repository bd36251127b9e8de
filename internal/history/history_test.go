package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func record(buildID, commit, status string) Record {
	return Record{
		BuildID:      buildID,
		SourceCommit: commit,
		Branch:       "lineage-20",
		Image:        "Image",
		Status:       status,
		Duration:     90 * time.Second,
	}
}

func TestAppendAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, record("b-1", "aaa", StatusSuccess)))
	require.NoError(t, store.Append(ctx, record("b-2", "bbb", StatusFailure)))

	records, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, "b-2", records[0].BuildID)
	assert.Equal(t, "bbb", records[0].SourceCommit)
	assert.Equal(t, StatusFailure, records[0].Status)
	assert.Equal(t, "b-1", records[1].BuildID)
	assert.Equal(t, 90*time.Second, records[1].Duration)
	assert.Equal(t, "lineage-20", records[1].Branch)
	assert.False(t, records[1].CreatedAt.IsZero())
}

func TestListLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, record(fmt.Sprintf("b-%d", i), "c", StatusSuccess)))
	}

	records, err := store.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, "b-4", records[0].BuildID)
}

func TestLastSuccessCommit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	commit, err := store.LastSuccessCommit(ctx)
	require.NoError(t, err)
	assert.Empty(t, commit, "empty history has no last success")

	require.NoError(t, store.Append(ctx, record("b-1", "aaa", StatusSuccess)))
	require.NoError(t, store.Append(ctx, record("b-2", "bbb", StatusWarning)))
	require.NoError(t, store.Append(ctx, record("b-3", "ccc", StatusFailure)))

	commit, err = store.LastSuccessCommit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bbb", commit, "failures do not count, warnings do")
}

func TestPersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history", "builds.db")

	store, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), record("b-1", "aaa", StatusSuccess)))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b-1", records[0].BuildID)
}
