// Package dexscreener is a client for the Dexscreener pair-search API.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"arenasync-backend/lib/fetchfail"
	"arenasync-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("platforms/dexscreener")

type Pair struct {
	ChainID   string `json:"chainId"`
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUsd string `json:"priceUsd"`
	Volume   struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		Usd float64 `json:"usd"`
	} `json:"liquidity"`
	MarketCap *float64 `json:"marketCap"`
	Fdv       *float64 `json:"fdv"`
	Info      struct {
		Websites []struct {
			URL string `json:"url"`
		} `json:"websites"`
	} `json:"info"`
}

type searchResponse struct {
	Pairs []Pair `json:"pairs"`
}

// MarketData is the distilled view of the most liquid pair for a token.
type MarketData struct {
	Name         string
	Symbol       string
	MarketCap    *float64
	PriceUsd     *float64
	Volume24h    *float64
	LiquidityUsd *float64
	Website      string
}

type Client struct {
	http    *resty.Client
	chainID string
}

func NewClient(baseUrl, chainID string) *Client {
	client := resty.New()
	client.SetBaseURL(baseUrl)
	client.SetTimeout(15 * time.Second)
	client.SetHeader("Accept", "application/json")

	telemetry.InstrumentResty(client, "platforms/dexscreener/http")

	return &Client{http: client, chainID: strings.ToLower(chainID)}
}

// Search looks up a token address and returns market data for its most
// liquid pair on the configured chain. Returns nil when the token has no
// matching pair, which is common for tokens with no liquidity yet.
func (c *Client) Search(ctx context.Context, address string) (*MarketData, error) {
	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()

	address = strings.ToLower(address)
	span.SetAttributes(attribute.String("address", address))

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", address).
		Get("/latest/dex/search")
	if err != nil {
		ferr := fetchfail.FromTransport(err)
		span.RecordError(ferr)
		span.SetStatus(codes.Error, ferr.Error())
		return nil, ferr
	}
	if res.StatusCode() != http.StatusOK {
		ferr := fetchfail.FromStatus(res.StatusCode(), res.Header().Get("Retry-After"))
		span.RecordError(ferr)
		span.SetStatus(codes.Error, ferr.Error())
		return nil, ferr
	}

	var body searchResponse
	err = json.Unmarshal(res.Body(), &body)
	if err != nil {
		ferr := fetchfail.New(fetchfail.Malformed, fmt.Errorf("unexpected response shape: %w", err))
		span.RecordError(ferr)
		span.SetStatus(codes.Error, ferr.Error())
		return nil, ferr
	}

	pair := mostLiquidPair(body.Pairs, c.chainID, address)
	if pair == nil {
		return nil, nil
	}

	data := &MarketData{
		Name:   pair.BaseToken.Name,
		Symbol: pair.BaseToken.Symbol,
	}
	if pair.MarketCap != nil {
		data.MarketCap = pair.MarketCap
	} else if pair.Fdv != nil {
		// market cap is missing for a lot of small pairs, fall back to
		// fully diluted valuation
		data.MarketCap = pair.Fdv
	}
	if price, err := strconv.ParseFloat(pair.PriceUsd, 64); err == nil {
		data.PriceUsd = &price
	}
	vol := pair.Volume.H24
	data.Volume24h = &vol
	liq := pair.Liquidity.Usd
	data.LiquidityUsd = &liq
	if len(pair.Info.Websites) > 0 {
		data.Website = pair.Info.Websites[0].URL
	}

	return data, nil
}

func mostLiquidPair(pairs []Pair, chainID, address string) *Pair {
	var best *Pair
	maxLiquidity := -1.0
	for i := range pairs {
		p := &pairs[i]
		if strings.ToLower(p.ChainID) != chainID {
			continue
		}
		if strings.ToLower(p.BaseToken.Address) != address {
			continue
		}
		if p.Liquidity.Usd > maxLiquidity {
			maxLiquidity = p.Liquidity.Usd
			best = p
		}
	}
	return best
}
