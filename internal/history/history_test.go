package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/mcwatch/mcwatch/internal/history"
	"github.com/mcwatch/mcwatch/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testResult(address string, online bool, checked time.Time) store.TrackedServer {
	status := store.StatusOffline
	if online {
		status = store.StatusOnline
	}

	return store.TrackedServer{
		Address:       address,
		Status:        status,
		Version:       "1.20.4",
		PlayersOnline: 5,
		PlayersMax:    20,
		LatencyMS:     12.3,
		LastChecked:   checked,
	}
}

func TestHistory(t *testing.T) {
	database := history.New(":memory:", zap.NewNop())
	require.NoError(t, database.Init())

	t.Cleanup(func() {
		_ = database.Close()
	})

	const address = "mc.example.com:25565"

	now := time.Now()

	t.Run("Save Results", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			result := testResult(address, i%2 == 0, now.Add(-time.Duration(i)*time.Hour))
			require.NoError(t, database.SaveResult(context.TODO(), result))
		}

		require.NoError(t, database.SaveResult(context.TODO(),
			testResult("other.example.com:25565", true, now)))
	})

	t.Run("Fetch By Address", func(t *testing.T) {
		records, errFetch := database.Fetch(context.TODO(), address, 10)
		require.NoError(t, errFetch)
		require.Len(t, records, 3)
		require.Equal(t, address, records[0].Address)
		require.True(t, records[0].CreatedOn.After(records[1].CreatedOn))
	})

	t.Run("Fetch Honours Limit", func(t *testing.T) {
		records, errFetch := database.Fetch(context.TODO(), address, 2)
		require.NoError(t, errFetch)
		require.Len(t, records, 2)
	})

	t.Run("Prune Old Rows", func(t *testing.T) {
		removed, errPrune := database.Prune(context.TODO(), 90*time.Minute)
		require.NoError(t, errPrune)
		require.Equal(t, int64(1), removed)

		records, errFetch := database.Fetch(context.TODO(), address, 10)
		require.NoError(t, errFetch)
		require.Len(t, records, 2)
	})
}
