package monitor

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kirsle/configdir"
	"github.com/mcwatch/mcwatch/pkg/util"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	configRoot            = "mcwatch"
	defaultConfigFileName = "mcwatch.yaml"
)

var errConfigNotFound = errors.New("config path does not exist")

type UserSettings struct {
	*sync.RWMutex `yaml:"-"`
	// Path to config used when reading UserSettings
	configPath         string   `yaml:"-"`
	RunMode            RunModes `yaml:"run_mode"`
	LogLevel           string   `yaml:"log_level"`
	DebugLogEnabled    bool     `yaml:"debug_log_enabled"`
	HTTPListenAddr     string   `yaml:"http_listen_addr"`
	StaticRoot         string   `yaml:"static_root"`
	MediaRoot          string   `yaml:"media_root"`
	ServersFile        string   `yaml:"servers_file"`
	HistoryDB          string   `yaml:"history_db"`
	CheckIntervalSecs  int      `yaml:"check_interval_secs"`
	GracePeriodSecs    int      `yaml:"grace_period_secs"`
	ProbeTimeoutSecs   int      `yaml:"probe_timeout_secs"`
	ProbeRatePerSecond float64  `yaml:"probe_rate_per_second"`
	HistoryMaxAgeHours int      `yaml:"history_max_age_hours"`
}

func NewSettings() (*UserSettings, error) {
	newSettings := UserSettings{
		RWMutex:            &sync.RWMutex{},
		configPath:         "",
		RunMode:            ModeProd,
		LogLevel:           "info",
		DebugLogEnabled:    false,
		HTTPListenAddr:     "localhost:8900",
		StaticRoot:         "./static",
		MediaRoot:          "./media",
		ServersFile:        "servers.json",
		HistoryDB:          "history.sqlite",
		CheckIntervalSecs:  int(DurationCheckInterval.Seconds()),
		GracePeriodSecs:    int(DurationGracePeriod.Seconds()),
		ProbeTimeoutSecs:   int(DurationProbeTimeout.Seconds()),
		ProbeRatePerSecond: 5,
		HistoryMaxAgeHours: int(DurationHistoryMaxAge.Hours()),
	}

	return &newSettings, nil
}

func (s *UserSettings) ConfigRoot() string {
	configPath := configdir.LocalConfig(configRoot)
	if err := configdir.MakePath(configPath); err != nil {
		return ""
	}

	return configPath
}

func (s *UserSettings) LogFilePath() string {
	return filepath.Join(configdir.LocalConfig(configRoot), "mcwatch.log")
}

func (s *UserSettings) ServersPath() string {
	s.RLock()
	defer s.RUnlock()

	if filepath.IsAbs(s.ServersFile) {
		return s.ServersFile
	}

	return filepath.Join(s.ConfigRoot(), s.ServersFile)
}

func (s *UserSettings) HistoryDBPath() string {
	s.RLock()
	defer s.RUnlock()

	if filepath.IsAbs(s.HistoryDB) {
		return s.HistoryDB
	}

	return filepath.Join(s.ConfigRoot(), s.HistoryDB)
}

func (s *UserSettings) ListenAddr() string {
	s.RLock()
	defer s.RUnlock()

	return s.HTTPListenAddr
}

func (s *UserSettings) CheckInterval() time.Duration {
	s.RLock()
	defer s.RUnlock()

	return time.Second * time.Duration(s.CheckIntervalSecs)
}

func (s *UserSettings) GracePeriod() time.Duration {
	s.RLock()
	defer s.RUnlock()

	return time.Second * time.Duration(s.GracePeriodSecs)
}

func (s *UserSettings) ProbeTimeout() time.Duration {
	s.RLock()
	defer s.RUnlock()

	return time.Second * time.Duration(s.ProbeTimeoutSecs)
}

func (s *UserSettings) HistoryMaxAge() time.Duration {
	s.RLock()
	defer s.RUnlock()

	return time.Hour * time.Duration(s.HistoryMaxAgeHours)
}

func (s *UserSettings) GetConfigPath() string {
	s.RLock()
	defer s.RUnlock()

	return s.configPath
}

func (s *UserSettings) ReadDefaultOrCreate() error {
	configPath := configdir.LocalConfig(configRoot)
	if err := configdir.MakePath(configPath); err != nil {
		return errors.Wrap(err, "Failed to create config dir")
	}

	errRead := s.ReadFilePath(filepath.Join(configPath, defaultConfigFileName))
	if errRead != nil && errors.Is(errRead, errConfigNotFound) {
		return s.Save()
	}

	return errRead
}

func (s *UserSettings) ReadFilePath(filePath string) error {
	if !util.Exists(filePath) {
		// Use defaults
		s.configPath = filePath

		return errConfigNotFound
	}

	settingsFile, errOpen := os.Open(filePath)
	if errOpen != nil {
		return errors.Wrap(errOpen, "Failed to open settings file")
	}

	defer util.IgnoreClose(settingsFile)

	if errRead := s.Read(settingsFile); errRead != nil {
		return errRead
	}

	s.configPath = filePath

	return nil
}

func (s *UserSettings) Read(inputFile io.Reader) error {
	s.Lock()
	defer s.Unlock()

	if errDecode := yaml.NewDecoder(inputFile).Decode(&s); errDecode != nil {
		return errors.Wrap(errDecode, "Failed to decode settings")
	}

	return nil
}

func (s *UserSettings) Save() error {
	return s.WriteFilePath(s.GetConfigPath())
}

func (s *UserSettings) WriteFilePath(filePath string) error {
	settingsFile, errOpen := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o755)
	if errOpen != nil {
		return errors.Wrap(errOpen, "Failed to open settings file for writing")
	}

	defer util.IgnoreClose(settingsFile)

	return s.Write(settingsFile)
}

func (s *UserSettings) Write(outputFile io.Writer) error {
	s.RLock()
	defer s.RUnlock()

	return yaml.NewEncoder(outputFile).Encode(s)
}
