// Package marketdata refreshes market fields for bonded tokens from the
// Dexscreener API. Unlike image URLs, market data is last-writer-wins:
// every run overwrites the previous snapshot.
package marketdata

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"arenasync-backend/lib/fetchfail"
	"arenasync-backend/lib/platforms/dexscreener"
	"arenasync-backend/lib/retry"
	"arenasync-backend/lib/tokenstore/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/marketdata")

type Config struct {
	// pause between per-token API calls
	PerTokenDelayMillis int `json:"per_token_delay_millis"`
}

func (c Config) withDefaults() Config {
	if c.PerTokenDelayMillis <= 0 {
		c.PerTokenDelayMillis = 100
	}
	return c
}

type RunStatistics struct {
	BondedTokens int
	Updated      int
	NoPairFound  int
	FetchFailed  int
	StartedAt    time.Time
	FinishedAt   time.Time
}

type Service struct {
	db     *sql.DB
	qry    *db.Queries
	client *dexscreener.Client
	cfg    Config
}

func NewService(database *sql.DB, client *dexscreener.Client, cfg Config) Service {
	return Service{
		db:     database,
		qry:    db.New(database),
		client: client,
		cfg:    cfg.withDefaults(),
	}
}

// Run fetches market data for every bonded token and upserts it. Per
// token failures are counted and skipped; only a store failure listing
// the bonded set aborts the run.
func (s Service) Run(ctx context.Context) (RunStatistics, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	stats := RunStatistics{StartedAt: time.Now()}

	bonded, err := s.qry.ListBondedTokens(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stats, fetchfail.New(fetchfail.Persistence, err)
	}
	stats.BondedTokens = len(bonded)
	if len(bonded) == 0 {
		slog.Warn("no bonded tokens found")
		stats.FinishedAt = time.Now()
		return stats, nil
	}
	slog.Info("refreshing market data", "bonded_tokens", len(bonded))

	delay := time.Duration(s.cfg.PerTokenDelayMillis) * time.Millisecond
	for i, token := range bonded {
		if err := ctx.Err(); err != nil {
			stats.FinishedAt = time.Now()
			return stats, err
		}

		data, err := s.client.Search(ctx, token.TokenAddress)
		if err != nil {
			stats.FetchFailed++
			slog.Warn("market data fetch failed", "address", token.TokenAddress, "err", err.Error())
		} else if data == nil {
			stats.NoPairFound++
		} else {
			err = s.upsert(ctx, token, data)
			if err != nil {
				slog.Error("market data upsert failed", "address", token.TokenAddress, "err", err.Error())
			} else {
				stats.Updated++
			}
		}

		if i < len(bonded)-1 {
			if err := retry.Sleep(ctx, delay); err != nil {
				stats.FinishedAt = time.Now()
				return stats, err
			}
		}
	}

	stats.FinishedAt = time.Now()
	span.SetAttributes(
		attribute.Int("bonded_tokens", stats.BondedTokens),
		attribute.Int("updated", stats.Updated),
	)
	slog.Info("market data refresh complete",
		"updated", stats.Updated,
		"no_pair", stats.NoPairFound,
		"failed", stats.FetchFailed,
	)
	return stats, nil
}

func (s Service) upsert(ctx context.Context, token db.ListBondedTokensRow, data *dexscreener.MarketData) error {
	params := db.UpsertMarketDataParams{
		TokenAddress: token.TokenAddress,
		TokenName:    token.TokenName,
		TokenSymbol:  token.TokenSymbol,
		LastUpdated:  time.Now().Unix(),
	}
	// prefer the names the pair reports, the store's copy may be stale
	if data.Name != "" {
		params.TokenName = sql.NullString{String: data.Name, Valid: true}
	}
	if data.Symbol != "" {
		params.TokenSymbol = sql.NullString{String: data.Symbol, Valid: true}
	}
	if data.MarketCap != nil {
		params.MarketCap = sql.NullInt64{Int64: int64(*data.MarketCap), Valid: true}
	}
	if data.PriceUsd != nil {
		params.PriceUsd = sql.NullFloat64{Float64: *data.PriceUsd, Valid: true}
	}
	if data.Volume24h != nil {
		params.Volume24h = sql.NullFloat64{Float64: *data.Volume24h, Valid: true}
	}
	if data.LiquidityUsd != nil {
		params.LiquidityUsd = sql.NullFloat64{Float64: *data.LiquidityUsd, Valid: true}
	}
	if data.Website != "" {
		params.Website = sql.NullString{String: data.Website, Valid: true}
	}

	err := s.qry.UpsertMarketData(ctx, params)
	if err != nil {
		return fetchfail.New(fetchfail.Persistence, err)
	}
	return nil
}
