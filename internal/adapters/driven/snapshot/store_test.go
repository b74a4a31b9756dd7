package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
)

func testItems() []domain.RawItem {
	return []domain.RawItem{
		{
			Source:      "grantsgov",
			ExternalID:  "ABC-123",
			Title:       "Community Research Grant",
			PublishedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			Payload:     map[string]string{"agency": "NSF"},
		},
		{
			Source:     "fedregister",
			ExternalID: "2025-0042",
			Title:      "Notice of Funding Opportunity",
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	store, err := NewStore(path)
	require.NoError(t, err)

	snap := domain.SnapshotOf("scan-1", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), testItems())
	require.NoError(t, store.Save(ctx, snap))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "scan-1", loaded.ScanID)
	assert.Equal(t, snap.Items, loaded.Items)
}

func TestStoreMissingFileIsNotFound(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "snapshot.json"))
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreCorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0600))

	store, err := NewStore(path)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound, "corruption is distinct from first run")
}

func TestStoreSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	store, err := NewStore(path)
	require.NoError(t, err)

	snap := domain.SnapshotOf("scan-1", time.Now(), testItems())
	require.NoError(t, store.Save(context.Background(), snap))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")
}

func TestStoreSaveReplacesPriorGeneration(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(filepath.Join(t.TempDir(), "snapshot.json"))
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, domain.SnapshotOf("scan-1", time.Now(), testItems())))
	require.NoError(t, store.Save(ctx, domain.SnapshotOf("scan-2", time.Now(), nil)))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "scan-2", loaded.ScanID)
	assert.Empty(t, loaded.Items, "exactly one generation is retained")
}

func TestZombieStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewZombieStore(filepath.Join(t.TempDir(), "zombies.json"), 10)
	require.NoError(t, err)

	entries := map[domain.ItemKey]domain.ZombieEntry{
		"openawards/AW-1": {
			Identifier:     "openawards/AW-1",
			FirstSeen:      time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			LastSeen:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			Disappearances: 2,
		},
	}
	require.NoError(t, store.Save(ctx, entries))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, entries, loaded)
}

func TestZombieStoreMissingFileIsEmpty(t *testing.T) {
	store, err := NewZombieStore(filepath.Join(t.TempDir(), "zombies.json"), 10)
	require.NoError(t, err)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestZombieStoreCapsEntries(t *testing.T) {
	ctx := context.Background()
	store, err := NewZombieStore(filepath.Join(t.TempDir(), "zombies.json"), 3)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	entries := map[domain.ItemKey]domain.ZombieEntry{}
	for i := 0; i < 5; i++ {
		key := domain.MakeKey("openawards", string(rune('a'+i)))
		entries[key] = domain.ZombieEntry{
			Identifier: key,
			LastSeen:   base.Add(time.Duration(i) * time.Hour),
		}
	}
	require.NoError(t, store.Save(ctx, entries))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	// The most recently seen entries survive.
	assert.Contains(t, loaded, domain.MakeKey("openawards", "e"))
	assert.Contains(t, loaded, domain.MakeKey("openawards", "d"))
	assert.Contains(t, loaded, domain.MakeKey("openawards", "c"))
}
