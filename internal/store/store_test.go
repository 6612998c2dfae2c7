package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraywing/threadcast/internal/models"
)

func testRecord(slug string, success bool) *models.PublishRecord {
	return &models.PublishRecord{
		Slug:        slug,
		Success:     success,
		Platform:    "twitter",
		PostIDs:     models.StringArray{"100", "101"},
		UnitsPosted: 2,
		UnitsTotal:  2,
		PostedAt:    time.Now().UTC(),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	got, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.PutIfAbsent(ctx, testRecord("my-post", true)))

	got, err = store.Get(ctx, "my-post")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Success)
	assert.Equal(t, models.StringArray{"100", "101"}, got.PostIDs)
}

func TestFileStorePutIfAbsentRejectsSecondWrite(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.PutIfAbsent(ctx, testRecord("my-post", false)))
	err = store.PutIfAbsent(ctx, testRecord("my-post", true))
	assert.ErrorIs(t, err, ErrRecordExists)

	// The original record survives
	got, err := store.Get(ctx, "my-post")
	require.NoError(t, err)
	assert.False(t, got.Success)
}

func TestFileStorePutIfAbsentConcurrent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	winners := make(chan struct{}, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.PutIfAbsent(ctx, testRecord("contested", true)) == nil {
				winners <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(winners)

	// Exactly one writer wins
	assert.Len(t, winners, 1)
}

func TestFileStorePutReplaces(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.PutIfAbsent(ctx, testRecord("my-post", false)))
	require.NoError(t, store.Put(ctx, testRecord("my-post", true)))

	got, err := store.Get(ctx, "my-post")
	require.NoError(t, err)
	assert.True(t, got.Success)
}

func TestFileStoreList(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	older := testRecord("older", true)
	older.PostedAt = time.Now().Add(-time.Hour)
	newer := testRecord("newer", true)

	require.NoError(t, store.PutIfAbsent(ctx, older))
	require.NoError(t, store.PutIfAbsent(ctx, newer))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "newer", records[0].Slug)
	assert.Equal(t, "older", records[1].Slug)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	got, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.PutIfAbsent(ctx, testRecord("my-post", false)))
	assert.ErrorIs(t, store.PutIfAbsent(ctx, testRecord("my-post", true)), ErrRecordExists)

	require.NoError(t, store.Put(ctx, testRecord("my-post", true)))
	got, err = store.Get(ctx, "my-post")
	require.NoError(t, err)
	assert.True(t, got.Success)

	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.PutIfAbsent(ctx, testRecord("my-post", true)))

	got, err := store.Get(ctx, "my-post")
	require.NoError(t, err)
	got.Success = false

	again, err := store.Get(ctx, "my-post")
	require.NoError(t, err)
	assert.True(t, again.Success)
}
