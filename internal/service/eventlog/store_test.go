package eventlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func sampleEvents() []Event {
	return []Event{
		{ID: 1, SessionID: "s1", EventType: TypePageView, Timestamp: "2024-05-01T10:00:00.000Z", UserAgent: "ua", Referrer: "https://google.com", CreatedAt: baseTime},
		{ID: 2, SessionID: "s1", EventType: TypeChatOpen, CreatedAt: baseTime.Add(time.Hour)},
		{ID: 3, SessionID: "s2", EventType: TypeCVDownload, Referrer: "https://linkedin.com", CreatedAt: baseTime.Add(2 * time.Hour)},
	}
}

// exerciseStore checks the behavior every Store shares.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	for _, e := range sampleEvents() {
		require.NoError(t, store.Append(ctx, e))
	}

	all, err := store.List(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, sampleEvents()[0], all[0])
	assert.Equal(t, int64(3), all[2].ID)

	window, err := store.List(ctx, baseTime.Add(time.Hour), baseTime.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, TypeChatOpen, window[0].EventType)

	later, err := store.List(ctx, baseTime.Add(30*time.Minute), time.Time{})
	require.NoError(t, err)
	assert.Len(t, later, 2)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	exerciseStore(t, store)
}

func TestMemoryStoreDropsOldestAtCapacity(t *testing.T) {
	store := NewMemoryStoreWithCapacity(3)
	defer store.Close()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Append(ctx, Event{
			ID:        int64(i),
			SessionID: "s1",
			EventType: TypePageView,
			CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
		}))
	}
	assert.Equal(t, 3, store.Len())

	all, err := store.List(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, e := range all {
		assert.Equal(t, int64(i+3), e.ID)
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	exerciseStore(t, store)
	require.NoError(t, store.Close())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.List(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestFileStoreAppendAfterClose(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "events.jsonl"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Append(context.Background(), sampleEvents()[0]), os.ErrClosed)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	store, err := NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	defer store.Close()
	exerciseStore(t, store)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.pool.Exec(ctx, "TRUNCATE portfolio_events")
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	stream := "portfolio_events_test_" + time.Now().Format("150405.000000")
	store, err := NewRedisStore(ctx, url, stream)
	require.NoError(t, err)
	defer store.Close()
	defer store.client.Del(ctx, stream)

	exerciseStore(t, store)
}

func TestRedisFieldsRoundTrip(t *testing.T) {
	e := sampleEvents()[0]
	fields := eventFields(e)

	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	got, err := eventFromFields(values)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	delete(values, "id")
	_, err = eventFromFields(values)
	assert.Error(t, err)
}
