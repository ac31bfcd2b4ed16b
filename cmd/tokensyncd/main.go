package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"arenasync-backend/lib/configutil"
	configsqlite "arenasync-backend/lib/configutil/sqlite"
	"arenasync-backend/lib/platforms/arenapro"
	"arenasync-backend/lib/serviceutil"
	"arenasync-backend/lib/telemetry"
	tokenstoredb "arenasync-backend/lib/tokenstore/db"
	"arenasync-backend/services/tokensync"
)

type Config struct {
	Database configsqlite.Struct `json:"database"`
	BaseUrl  string              `json:"base_url"`
	// 0 runs the extraction once and exits
	IntervalSeconds int              `json:"interval_seconds"`
	Pipeline        tokensync.Config `json:"pipeline"`
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

	db, err := config.Database.OpenDB(tokenstoredb.Schema)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}

	t, err := telemetry.SetupFromEnv(ctx, "tokensyncd")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	client := arenapro.NewClient(config.BaseUrl)
	service := tokensync.NewService(db, client, config.Pipeline)

	serviceutil.RunEvery(ctx, "tokensync",
		time.Duration(config.IntervalSeconds)*time.Second,
		func(ctx context.Context) error {
			estimated := service.EstimateTotalAvailable(ctx)
			slog.Info("estimated total tokens available", "estimate", estimated)

			stats, err := service.Run(ctx)
			if err != nil {
				return err
			}
			slog.Info("extraction summary",
				"pages_fetched", stats.PagesFetched,
				"tokens_fetched", stats.TokensFetched,
				"mappings_found", stats.MappingsFound,
				"rows_updated", stats.RowsUpdated,
				"failed_flushes", stats.FailedFlushes,
				"final_offset", stats.FinalOffset,
				"took", stats.FinishedAt.Sub(stats.StartedAt),
			)
			return nil
		})
}
