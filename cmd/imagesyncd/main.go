package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"arenasync-backend/lib/configutil"
	configsqlite "arenasync-backend/lib/configutil/sqlite"
	"arenasync-backend/lib/platforms/arenatrade"
	"arenasync-backend/lib/serviceutil"
	"arenasync-backend/lib/telemetry"
	tokenstoredb "arenasync-backend/lib/tokenstore/db"
	"arenasync-backend/services/imagesync"
)

type Config struct {
	Database       configsqlite.Struct `json:"database"`
	BaseUrl        string              `json:"base_url"`
	TimeoutSeconds int                 `json:"timeout_seconds"`
	// 0 runs a single pass and exits
	IntervalSeconds int              `json:"interval_seconds"`
	Downloader      imagesync.Config `json:"downloader"`
}

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if config.BaseUrl == "" {
		serviceutil.Fatal("failed to read config", errors.New("base_url is required"))
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 30
	}

	db, err := config.Database.OpenDB(tokenstoredb.Schema)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}

	t, err := telemetry.SetupFromEnv(ctx, "imagesyncd")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	client := arenatrade.NewClient(config.BaseUrl, time.Duration(config.TimeoutSeconds)*time.Second)
	service := imagesync.NewService(db, client, config.Downloader)

	serviceutil.RunEvery(ctx, "imagesync",
		time.Duration(config.IntervalSeconds)*time.Second,
		func(ctx context.Context) error {
			stats, err := service.Run(ctx)
			if err != nil {
				return err
			}
			slog.Info("download summary",
				"candidates", stats.Candidates,
				"batches", stats.Batches,
				"succeeded", stats.Succeeded,
				"failed", stats.Failed,
				"timed_out", stats.TimedOut,
				"errored", stats.Errored,
				"took", stats.FinishedAt.Sub(stats.StartedAt),
			)
			return nil
		})
}
