package credential

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.db")
	store, err := OpenStore(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	creds, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, creds)

	c := Credential{
		ID:         "primary",
		Label:      "Primary key",
		Key:        "AIza-test",
		Status:     StatusActive,
		QuotaUsed:  1200,
		QuotaLimit: 10_000,
		LastUsedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, c))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID, got[0].ID)
	assert.Equal(t, c.Key, got[0].Key)
	assert.Equal(t, c.QuotaUsed, got[0].QuotaUsed)
	assert.True(t, c.LastUsedAt.Equal(got[0].LastUsedAt))
}

func TestStoreUpsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.db")
	store, err := OpenStore(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	c := Credential{ID: "k", Key: "v1", Status: StatusActive, QuotaLimit: 100}
	require.NoError(t, store.Save(ctx, c))

	c.QuotaUsed = 95
	c.Status = StatusExhausted
	require.NoError(t, store.Save(ctx, c))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, StatusExhausted, got[0].Status)
	assert.Equal(t, int64(95), got[0].QuotaUsed)
}
