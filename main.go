package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcwatch/mcwatch/internal/history"
	"github.com/mcwatch/mcwatch/internal/monitor"
	"github.com/mcwatch/mcwatch/internal/probe"
	"github.com/mcwatch/mcwatch/internal/store"
	"github.com/mcwatch/mcwatch/internal/tr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// Build info embedded by goreleaser.
	version = "master" //nolint:gochecknoglobals
	commit  = "latest" //nolint:gochecknoglobals
	date    = "n/a"    //nolint:gochecknoglobals
	builtBy = "src"    //nolint:gochecknoglobals
)

func run() int {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	versionInfo := monitor.Version{Version: version, Commit: commit, Date: date, BuiltBy: builtBy}

	userSettings, errSettings := monitor.NewSettings()
	if errSettings != nil {
		panic(errSettings)
	}

	if errRead := userSettings.ReadDefaultOrCreate(); errRead != nil {
		panic(errRead)
	}

	logger := monitor.MustCreateLogger(userSettings)

	logger.Info("Starting mcwatch",
		zap.String("version", versionInfo.Version),
		zap.String("date", versionInfo.Date),
		zap.String("commit", versionInfo.Commit),
		zap.String("via", versionInfo.BuiltBy))

	dataStore := store.New(userSettings.ServersPath(), logger)

	historyStore := history.New(userSettings.HistoryDBPath(), logger)
	if errInit := historyStore.Init(); errInit != nil {
		logger.Error("Failed to initialize history database", zap.Error(errInit))

		return 1
	}

	translator, errTranslator := tr.NewTranslator()
	if errTranslator != nil {
		logger.Error("Failed to create translator", zap.Error(errTranslator))

		return 1
	}

	prober := probe.NewJavaProber(logger, userSettings.ProbeTimeout(), userSettings.ProbeRatePerSecond)

	application := monitor.New(logger, userSettings, dataStore, historyStore, prober, translator, versionInfo)

	serviceGroup, serviceCtx := errgroup.WithContext(rootCtx)
	serviceGroup.Go(func() error {
		application.Start(serviceCtx)

		return nil
	})

	serviceGroup.Go(func() error {
		<-serviceCtx.Done()

		if errShutdown := application.Shutdown(context.Background()); errShutdown != nil { //nolint:contextcheck
			logger.Error("Failed to gracefully shutdown", zap.Error(errShutdown))
		}

		return nil
	})

	if err := serviceGroup.Wait(); err != nil {
		logger.Error("Sad Goodbye", zap.Error(err))

		return 1
	}

	return 0
}

func main() {
	os.Exit(run())
}
