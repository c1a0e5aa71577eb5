package monitor_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mcwatch/mcwatch/internal/monitor"
	"github.com/mcwatch/mcwatch/internal/store"
	"github.com/mcwatch/mcwatch/internal/tr"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProber returns canned results without touching the network. onProbe,
// when set, runs once inside the next Probe call so tests can interleave
// work with an in-flight refresh cycle.
type fakeProber struct {
	mu      sync.Mutex
	results map[string]store.TrackedServer
	calls   map[string]int
	onProbe func()
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		results: map[string]store.TrackedServer{},
		calls:   map[string]int{},
	}
}

func (p *fakeProber) setOnline(address string, online int, max int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.results[address] = store.TrackedServer{
		Address:       address,
		Status:        store.StatusOnline,
		Version:       "1.20.4",
		PlayersOnline: online,
		PlayersMax:    max,
		Description:   "A Minecraft Server",
		LatencyMS:     12.5,
	}
}

func (p *fakeProber) setOffline(address string, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.results[address] = store.TrackedServer{
		Address: address,
		Status:  store.StatusOffline,
		Error:   reason,
	}
}

func (p *fakeProber) callCount(address string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls[address]
}

func (p *fakeProber) Probe(_ context.Context, address string) store.TrackedServer {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls[address]++

	if p.onProbe != nil {
		hook := p.onProbe
		p.onProbe = nil
		hook()
	}

	result, found := p.results[address]
	if !found {
		result = store.TrackedServer{
			Address: address,
			Status:  store.StatusOffline,
			Error:   "no response",
		}
	}

	result.LastChecked = time.Now()

	return result
}

func testApp(t *testing.T) (*monitor.Monitor, *fakeProber, *store.FileStore) {
	t.Helper()

	// Pin the locale so rendered labels are the English forms.
	t.Setenv("LC_ALL", "en_US.UTF-8")

	settings, errSettings := monitor.NewSettings()
	require.NoError(t, errSettings)

	settings.RunMode = monitor.ModeTest

	translator, errTranslator := tr.NewTranslator()
	require.NoError(t, errTranslator)

	dataStore := store.New(filepath.Join(t.TempDir(), "servers.json"), zap.NewNop())
	prober := newFakeProber()

	app := monitor.New(zap.NewNop(), settings, dataStore, nil, prober, translator, monitor.Version{Version: "test"})

	return app, prober, dataStore
}

func TestRefreshAgeGate(t *testing.T) {
	app, prober, dataStore := testApp(t)

	fresh := store.TrackedServer{
		Address:     "fresh.example.com:25565",
		Status:      store.StatusOnline,
		LastChecked: time.Now(),
		AddedTime:   time.Now(),
	}
	require.NoError(t, dataStore.Save([]store.TrackedServer{fresh}))

	app.RefreshServers(context.TODO())

	require.Equal(t, 0, prober.callCount(fresh.Address))

	servers, errLoad := dataStore.Load()
	require.NoError(t, errLoad)
	require.Len(t, servers, 1)
	require.Equal(t, fresh.Address, servers[0].Address)
}

func TestRefreshPrunesOffline(t *testing.T) {
	app, prober, dataStore := testApp(t)

	const address = "gone.example.com:25565"

	prober.setOffline(address, "connection refused")

	stale := store.TrackedServer{
		Address:     address,
		Status:      store.StatusOnline,
		LastChecked: time.Now().Add(-10 * time.Minute),
		AddedTime:   time.Now().Add(-10 * time.Minute),
	}
	require.NoError(t, dataStore.Save([]store.TrackedServer{stale}))

	app.RefreshServers(context.TODO())

	require.Equal(t, 1, prober.callCount(address))

	servers, errLoad := dataStore.Load()
	require.NoError(t, errLoad)
	require.Empty(t, servers)
}

func TestRefreshKeepsConcurrentAdd(t *testing.T) {
	app, prober, dataStore := testApp(t)

	const (
		staleAddress = "stale.example.com:25565"
		newAddress   = "new.example.com:25565"
	)

	prober.setOnline(staleAddress, 3, 10)

	old := time.Now().Add(-10 * time.Minute)
	require.NoError(t, dataStore.Save([]store.TrackedServer{{
		Address:     staleAddress,
		Status:      store.StatusOnline,
		LastChecked: old,
		AddedTime:   old,
	}}))

	// A form POST lands while the cycle is out probing.
	prober.onProbe = func() {
		added, errAdd := dataStore.Add(store.TrackedServer{
			Address:     newAddress,
			Status:      store.StatusOnline,
			LastChecked: time.Now(),
			AddedTime:   time.Now(),
		})
		require.NoError(t, errAdd)
		require.True(t, added)
	}

	app.RefreshServers(context.TODO())

	servers, errLoad := dataStore.Load()
	require.NoError(t, errLoad)

	addresses := make([]string, 0, len(servers))
	for _, server := range servers {
		addresses = append(addresses, server.Address)
	}

	require.Contains(t, addresses, staleAddress)
	require.Contains(t, addresses, newAddress)
}

func TestRefreshUpdatesOnline(t *testing.T) {
	app, prober, dataStore := testApp(t)

	const address = "alive.example.com:25565"

	prober.setOnline(address, 7, 40)

	addedTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	stale := store.TrackedServer{
		Address:       address,
		Status:        store.StatusOnline,
		PlayersOnline: 1,
		PlayersMax:    40,
		LastChecked:   addedTime,
		AddedTime:     addedTime,
	}
	require.NoError(t, dataStore.Save([]store.TrackedServer{stale}))

	app.RefreshServers(context.TODO())

	servers, errLoad := dataStore.Load()
	require.NoError(t, errLoad)
	require.Len(t, servers, 1)
	require.Equal(t, 7, servers[0].PlayersOnline)
	require.True(t, servers[0].AddedTime.Equal(addedTime))
	require.True(t, servers[0].LastChecked.After(addedTime))
}
