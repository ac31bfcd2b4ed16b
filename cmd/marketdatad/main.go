package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"arenasync-backend/lib/configutil"
	configsqlite "arenasync-backend/lib/configutil/sqlite"
	"arenasync-backend/lib/platforms/dexscreener"
	"arenasync-backend/lib/serviceutil"
	"arenasync-backend/lib/telemetry"
	tokenstoredb "arenasync-backend/lib/tokenstore/db"
	"arenasync-backend/services/marketdata"
)

type Config struct {
	Database configsqlite.Struct `json:"database"`
	BaseUrl  string              `json:"base_url"`
	ChainID  string              `json:"chain_id"`
	// 0 runs a single refresh and exits
	IntervalSeconds int               `json:"interval_seconds"`
	Refresher       marketdata.Config `json:"refresher"`
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
	if config.ChainID == "" {
		config.ChainID = "avalanche"
	}

	db, err := config.Database.OpenDB(tokenstoredb.Schema)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}

	t, err := telemetry.SetupFromEnv(ctx, "marketdatad")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	client := dexscreener.NewClient(config.BaseUrl, config.ChainID)
	service := marketdata.NewService(db, client, config.Refresher)

	serviceutil.RunEvery(ctx, "marketdata",
		time.Duration(config.IntervalSeconds)*time.Second,
		func(ctx context.Context) error {
			stats, err := service.Run(ctx)
			if err != nil {
				return err
			}
			slog.Info("refresh summary",
				"bonded_tokens", stats.BondedTokens,
				"updated", stats.Updated,
				"no_pair_found", stats.NoPairFound,
				"fetch_failed", stats.FetchFailed,
				"took", stats.FinishedAt.Sub(stats.StartedAt),
			)
			return nil
		})
}
