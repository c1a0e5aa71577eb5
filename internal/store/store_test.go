package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcwatch/mcwatch/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testStore(t *testing.T) *store.FileStore {
	t.Helper()

	return store.New(filepath.Join(t.TempDir(), "servers.json"), zap.NewNop())
}

func testServer(address string) store.TrackedServer {
	return store.TrackedServer{
		Address:       address,
		Status:        store.StatusOnline,
		Version:       "1.20.4",
		PlayersOnline: 5,
		PlayersMax:    20,
		Description:   "A Minecraft Server",
		LatencyMS:     42.5,
		LastChecked:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		AddedTime:     time.Date(2024, 3, 1, 11, 55, 0, 0, time.UTC),
	}
}

func TestRoundTrip(t *testing.T) {
	database := testStore(t)

	servers := []store.TrackedServer{
		testServer("mc.example.com:25565"),
		{
			Address:     "other.example.com:25566",
			Status:      store.StatusOffline,
			Error:       "connection refused",
			LastChecked: time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC),
			AddedTime:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	require.NoError(t, database.Save(servers))

	loaded, errLoad := database.Load()
	require.NoError(t, errLoad)
	require.Equal(t, servers, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	database := testStore(t)

	servers, errLoad := database.Load()
	require.NoError(t, errLoad)
	require.Empty(t, servers)
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	database := store.New(path, zap.NewNop())

	servers, errLoad := database.Load()
	require.NoError(t, errLoad)
	require.Empty(t, servers)
}

func TestReplaceKeepsConcurrentAdds(t *testing.T) {
	database := testStore(t)

	stale := testServer("stale.example.com:25565")
	require.NoError(t, database.Save([]store.TrackedServer{stale}))

	loadedAt := time.Now()

	snapshot, errLoad := database.Load()
	require.NoError(t, errLoad)
	require.Len(t, snapshot, 1)

	// Lands after the snapshot was taken, as a form POST would mid-cycle.
	concurrent := testServer("new.example.com:25565")
	concurrent.AddedTime = time.Now()

	added, errAdd := database.Add(concurrent)
	require.NoError(t, errAdd)
	require.True(t, added)

	refreshed := snapshot[0]
	refreshed.PlayersOnline = 9

	merged, errReplace := database.Replace(loadedAt, []store.TrackedServer{refreshed})
	require.NoError(t, errReplace)
	require.Len(t, merged, 2)

	servers, errReload := database.Load()
	require.NoError(t, errReload)
	require.Len(t, servers, 2)
	require.Equal(t, 9, servers[0].PlayersOnline)
	require.Equal(t, concurrent.Address, servers[1].Address)
}

func TestReplaceOverwritesStaleEntries(t *testing.T) {
	database := testStore(t)

	require.NoError(t, database.Save([]store.TrackedServer{
		testServer("gone.example.com:25565"),
		testServer("kept.example.com:25565"),
	}))

	merged, errReplace := database.Replace(time.Now(), []store.TrackedServer{
		testServer("kept.example.com:25565"),
	})
	require.NoError(t, errReplace)
	require.Len(t, merged, 1)

	servers, errLoad := database.Load()
	require.NoError(t, errLoad)
	require.Len(t, servers, 1)
	require.Equal(t, "kept.example.com:25565", servers[0].Address)
}

func TestAddDedup(t *testing.T) {
	database := testStore(t)

	added, errAdd := database.Add(testServer("mc.example.com:25565"))
	require.NoError(t, errAdd)
	require.True(t, added)

	again, errAgain := database.Add(testServer("mc.example.com:25565"))
	require.NoError(t, errAgain)
	require.False(t, again)

	servers, errLoad := database.Load()
	require.NoError(t, errLoad)
	require.Len(t, servers, 1)
}
