package monitor

import (
	"context"
	gerrors "errors"
	"time"

	"github.com/mcwatch/mcwatch/internal/history"
	"github.com/mcwatch/mcwatch/internal/probe"
	"github.com/mcwatch/mcwatch/internal/store"
	"github.com/mcwatch/mcwatch/internal/tr"
	"go.uber.org/zap"
)

type Version struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	BuiltBy string `json:"built_by"`
}

// Monitor is the application container tying the prober, stores and web
// surface together and owning the background refresher.
type Monitor struct {
	log         *zap.Logger
	settings    *UserSettings
	dataStore   store.DataStore
	history     history.Store
	prober      probe.Prober
	translator  *tr.Translator
	hub         *wsHub
	Web         *Web
	versionInfo Version
	startupTime time.Time
}

func New(logger *zap.Logger, settings *UserSettings, dataStore store.DataStore, historyStore history.Store,
	prober probe.Prober, translator *tr.Translator, versionInfo Version,
) *Monitor {
	application := &Monitor{
		log:         logger,
		settings:    settings,
		dataStore:   dataStore,
		history:     historyStore,
		prober:      prober,
		translator:  translator,
		hub:         newWSHub(logger),
		versionInfo: versionInfo,
		startupTime: time.Now(),
	}

	web, errWeb := NewWeb(application)
	if errWeb != nil {
		panic(errWeb)
	}

	application.Web = web

	return application
}

func (m *Monitor) Settings() *UserSettings {
	return m.settings
}

// Start launches the background refresher and blocks serving the web surface
// until the context is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go m.refreshHandler(ctx)

	if errWeb := m.Web.startWeb(ctx); errWeb != nil {
		m.log.Error("Web server returned error", zap.Error(errWeb))
	}
}

func (m *Monitor) Shutdown(ctx context.Context) error {
	var err error

	if m.history != nil {
		if errCloseDB := m.history.Close(); errCloseDB != nil {
			err = gerrors.Join(err, errCloseDB)
		}
	}

	if errWeb := m.Web.Stop(ctx); errWeb != nil {
		err = gerrors.Join(err, errWeb)
	}

	if m.settings.DebugLogEnabled {
		err = gerrors.Join(err, m.log.Sync())
	}

	return err
}

func (m *Monitor) refreshHandler(ctx context.Context) {
	log := m.log.Named("refresh")
	defer log.Debug("refreshHandler exited")

	refreshTimer := time.NewTicker(m.settings.CheckInterval())

	for {
		select {
		case <-ctx.Done():
			return
		case <-refreshTimer.C:
			m.RefreshServers(ctx)
		}
	}
}

// RefreshServers runs one refresh cycle: servers younger than the grace
// period are kept untouched, the rest are re-probed; entries that come back
// online are replaced with the fresh status and offline ones are dropped.
// Every failure is logged and swallowed so the caller's loop never dies.
func (m *Monitor) RefreshServers(ctx context.Context) {
	log := m.log.Named("refresh")

	loadedAt := time.Now()

	servers, errLoad := m.dataStore.Load()
	if errLoad != nil {
		log.Error("Failed to load server list", zap.Error(errLoad))

		return
	}

	var (
		grace   = m.settings.GracePeriod()
		updated = make([]store.TrackedServer, 0, len(servers))
		checked int
		dropped int
	)

	for _, server := range servers {
		if time.Since(server.AddedTime) <= grace {
			updated = append(updated, server)

			continue
		}

		checked++

		result := m.prober.Probe(ctx, server.Address)
		m.recordHistory(ctx, result)

		if !result.Online() {
			dropped++

			log.Info("Dropping offline server",
				zap.String("address", server.Address), zap.String("error", result.Error))

			continue
		}

		result.AddedTime = server.AddedTime
		updated = append(updated, result)
	}

	// Replace merges back anything added while the probes above were running,
	// so a concurrent add is never lost to this cycle's write.
	merged, errSave := m.dataStore.Replace(loadedAt, updated)
	if errSave != nil {
		log.Error("Failed to save server list", zap.Error(errSave))

		return
	}

	m.pruneHistory(ctx)
	m.hub.broadcast(wsEvent{Event: eventRefresh, Payload: merged})

	log.Info("Server check completed",
		zap.Int("online", len(merged)), zap.Int("checked", checked), zap.Int("dropped", dropped))
}

func (m *Monitor) recordHistory(ctx context.Context, result store.TrackedServer) {
	if m.history == nil {
		return
	}

	if errSave := m.history.SaveResult(ctx, result); errSave != nil {
		m.log.Error("Failed to record probe history",
			zap.String("address", result.Address), zap.Error(errSave))
	}
}

func (m *Monitor) pruneHistory(ctx context.Context) {
	if m.history == nil {
		return
	}

	removed, errPrune := m.history.Prune(ctx, m.settings.HistoryMaxAge())
	if errPrune != nil {
		m.log.Error("Failed to prune probe history", zap.Error(errPrune))

		return
	}

	if removed > 0 {
		m.log.Debug("Pruned probe history", zap.Int64("rows", removed))
	}
}
