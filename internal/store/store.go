package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// TrackedServer is one monitored Minecraft server. Address is the unique key,
// version/players/description/latency are only meaningful while online.
type TrackedServer struct {
	Address       string    `json:"address"`
	Status        Status    `json:"status"`
	Version       string    `json:"version,omitempty"`
	PlayersOnline int       `json:"players_online"`
	PlayersMax    int       `json:"players_max"`
	Description   string    `json:"description,omitempty"`
	LatencyMS     float64   `json:"latency"`
	Error         string    `json:"error,omitempty"`
	LastChecked   time.Time `json:"last_checked"`
	AddedTime     time.Time `json:"added_time"`
}

func (server TrackedServer) Online() bool {
	return server.Status == StatusOnline
}

type DataStore interface {
	Load() ([]TrackedServer, error)
	Save(servers []TrackedServer) error
	Add(server TrackedServer) (bool, error)
	Replace(loadedAt time.Time, updated []TrackedServer) ([]TrackedServer, error)
}

// FileStore persists the tracked server list as a pretty printed JSON array.
// All read-modify-write sequences hold the one mutex and writes go through a
// temp file + rename, so a refresher write can no longer lose a concurrent add.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

func New(path string, logger *zap.Logger) *FileStore {
	return &FileStore{path: path, logger: logger.Named("store")}
}

func (store *FileStore) Load() ([]TrackedServer, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	return store.load()
}

func (store *FileStore) load() ([]TrackedServer, error) {
	body, errRead := os.ReadFile(store.path)
	if errRead != nil {
		if os.IsNotExist(errRead) {
			return []TrackedServer{}, nil
		}

		return nil, errors.Wrap(errRead, "Failed to read server list")
	}

	var servers []TrackedServer
	if errDecode := json.Unmarshal(body, &servers); errDecode != nil {
		// A mangled list is treated the same as a missing one.
		store.logger.Warn("Server list is corrupt, starting empty", zap.Error(errDecode))

		return []TrackedServer{}, nil
	}

	if servers == nil {
		servers = []TrackedServer{}
	}

	return servers, nil
}

func (store *FileStore) Save(servers []TrackedServer) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	return store.save(servers)
}

func (store *FileStore) save(servers []TrackedServer) error {
	if servers == nil {
		servers = []TrackedServer{}
	}

	body, errEncode := json.MarshalIndent(servers, "", "  ")
	if errEncode != nil {
		return errors.Wrap(errEncode, "Failed to encode server list")
	}

	outFile, errTemp := os.CreateTemp(filepath.Dir(store.path), ".servers-*.json")
	if errTemp != nil {
		return errors.Wrap(errTemp, "Failed to create temp server list")
	}

	if _, errWrite := outFile.Write(body); errWrite != nil {
		_ = outFile.Close()
		_ = os.Remove(outFile.Name())

		return errors.Wrap(errWrite, "Failed to write server list")
	}

	if errClose := outFile.Close(); errClose != nil {
		_ = os.Remove(outFile.Name())

		return errors.Wrap(errClose, "Failed to close server list")
	}

	if errRename := os.Rename(outFile.Name(), store.path); errRename != nil {
		_ = os.Remove(outFile.Name())

		return errors.Wrap(errRename, "Failed to replace server list")
	}

	return nil
}

// Replace overwrites the list with updated, first merging back any server
// added after loadedAt. A caller that loads, probes for a while with no lock
// held and then writes back would otherwise drop entries added in between.
// Returns the list as written.
func (store *FileStore) Replace(loadedAt time.Time, updated []TrackedServer) ([]TrackedServer, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	current, errLoad := store.load()
	if errLoad != nil {
		return nil, errLoad
	}

	known := make(map[string]bool, len(updated))
	for _, server := range updated {
		known[server.Address] = true
	}

	for _, server := range current {
		if server.AddedTime.After(loadedAt) && !known[server.Address] {
			updated = append(updated, server)
		}
	}

	if errSave := store.save(updated); errSave != nil {
		return nil, errSave
	}

	return updated, nil
}

// Add appends the server unless its address is already tracked, returning
// whether a new entry was stored.
func (store *FileStore) Add(server TrackedServer) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	servers, errLoad := store.load()
	if errLoad != nil {
		return false, errLoad
	}

	for _, known := range servers {
		if known.Address == server.Address {
			return false, nil
		}
	}

	servers = append(servers, server)

	if errSave := store.save(servers); errSave != nil {
		return false, errSave
	}

	return true, nil
}
