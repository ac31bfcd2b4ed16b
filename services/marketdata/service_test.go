package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"arenasync-backend/lib/platforms/dexscreener"
	"arenasync-backend/lib/testutil"
	"arenasync-backend/lib/tokenstore/db"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func searchHandler(responses map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body, ok := responses[r.URL.Query().Get("q")]
		if !ok {
			body = `{"pairs":[]}`
		}
		fmt.Fprint(w, body)
	}
}

func TestService(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/marketdata",
		DbSchema: db.Schema,
	})
	defer cleanup()

	_, err := setup.DB.Exec(`
		INSERT INTO token_deployments (token_address, token_name, token_symbol, lp_deployed) VALUES
			('0xaaa', 'Alpha', 'ALPHA', TRUE),
			('0xbbb', 'Beta', 'BETA', TRUE),
			('0xccc', 'Gamma', 'GAMMA', FALSE)
	`)
	require.NoError(t, err)

	responses := map[string]string{
		"0xaaa": `{"pairs":[
			{"chainId":"avalanche","baseToken":{"address":"0xAAA","name":"Alpha Coin","symbol":"ALPHA"},
			 "priceUsd":"1.25","volume":{"h24":1000},"liquidity":{"usd":50000},"marketCap":200000,
			 "info":{"websites":[{"url":"https://alpha.example.com"}]}},
			{"chainId":"avalanche","baseToken":{"address":"0xaaa","name":"Alpha Thin","symbol":"ALPHA"},
			 "priceUsd":"1.30","volume":{"h24":10},"liquidity":{"usd":5}},
			{"chainId":"ethereum","baseToken":{"address":"0xaaa","name":"Alpha Wrong Chain","symbol":"ALPHA"},
			 "priceUsd":"9.99","volume":{"h24":1},"liquidity":{"usd":999999}}
		]}`,
		"0xbbb": `{"pairs":[
			{"chainId":"avalanche","baseToken":{"address":"0xbbb","name":"Beta Coin","symbol":"BETA"},
			 "priceUsd":"0.04","volume":{"h24":200},"liquidity":{"usd":3000},"fdv":42000}
		]}`,
	}
	server := httptest.NewServer(searchHandler(responses))
	defer server.Close()

	client := dexscreener.NewClient(server.URL, "avalanche")
	service := NewService(setup.DB, client, Config{PerTokenDelayMillis: 1})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	{
		stats, err := service.Run(ctx)
		require.NoError(t, err)

		// 0xccc never bonded, so only two tokens are looked up
		require.Equal(t, 2, stats.BondedTokens)
		require.Equal(t, 2, stats.Updated)
		require.Equal(t, 0, stats.NoPairFound)
		require.Equal(t, 0, stats.FetchFailed)
	}
	{
		data, err := db.New(setup.DB).GetMarketData(ctx, "0xaaa")
		require.NoError(t, err)

		// the most liquid pair on the configured chain wins
		require.Equal(t, "Alpha Coin", data.TokenName.String)
		require.Equal(t, int64(200000), data.MarketCap.Int64)
		require.Equal(t, 1.25, data.PriceUsd.Float64)
		require.Equal(t, float64(1000), data.Volume24h.Float64)
		require.Equal(t, float64(50000), data.LiquidityUsd.Float64)
		require.Equal(t, "https://alpha.example.com", data.Website.String)
	}
	{
		// fdv stands in when the pair has no market cap
		data, err := db.New(setup.DB).GetMarketData(ctx, "0xbbb")
		require.NoError(t, err)
		require.Equal(t, int64(42000), data.MarketCap.Int64)
		require.False(t, data.Website.Valid)
	}
	{
		// every refresh overwrites the prior snapshot
		responses["0xaaa"] = `{"pairs":[
			{"chainId":"avalanche","baseToken":{"address":"0xaaa","name":"Alpha Coin","symbol":"ALPHA"},
			 "priceUsd":"2.50","volume":{"h24":4000},"liquidity":{"usd":60000},"marketCap":400000}
		]}`

		stats, err := service.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, stats.Updated)

		data, err := db.New(setup.DB).GetMarketData(ctx, "0xaaa")
		require.NoError(t, err)
		require.Equal(t, int64(400000), data.MarketCap.Int64)
		require.Equal(t, 2.50, data.PriceUsd.Float64)
		require.False(t, data.Website.Valid)
	}
}

func TestRunNoPair(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/marketdata",
		DbSchema: db.Schema,
	})
	defer cleanup()

	_, err := setup.DB.Exec(`
		INSERT INTO token_deployments (token_address, lp_deployed) VALUES ('0xnew', TRUE)
	`)
	require.NoError(t, err)

	server := httptest.NewServer(searchHandler(nil))
	defer server.Close()

	service := NewService(setup.DB, dexscreener.NewClient(server.URL, "avalanche"), Config{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	stats, err := service.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.BondedTokens)
	require.Equal(t, 1, stats.NoPairFound)
	require.Equal(t, 0, stats.Updated)

	_, err = db.New(setup.DB).GetMarketData(ctx, "0xnew")
	require.ErrorIs(t, err, sql.ErrNoRows)
}
