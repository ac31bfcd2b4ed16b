// Package arenapro is a client for arenapro-style token listing APIs
// (PostgREST dialect: order/limit/offset query params, JSON array body).
package arenapro

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"arenasync-backend/lib/fetchfail"
	"arenasync-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("platforms/arenapro")

// Token is one record from the listing endpoint. Only the fields this
// system consumes are typed, the upstream payload carries many more.
type Token struct {
	ContractAddress string `json:"token_contract_address"`
	Name            string `json:"token_name"`
	Symbol          string `json:"token_symbol"`
	PhotoURL        string `json:"photo_url"`
	CreateTime      int64  `json:"create_time"`
	LpDeployed      bool   `json:"lp_deployed"`
}

type Client struct {
	http *resty.Client
}

func NewClient(baseUrl string) *Client {
	client := resty.New()
	client.SetBaseURL(baseUrl)
	client.SetTimeout(15 * time.Second)
	// the upstream rejects non-browser requests
	client.SetHeaders(map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		"Accept":     "application/json",
		"Referer":    "https://www.arenapro.io/",
	})

	telemetry.InstrumentResty(client, "platforms/arenapro/http")

	return &Client{http: client}
}

// Tokens fetches one page of token records ordered by creation time
// descending. Errors carry the fetchfail taxonomy so callers can decide
// whether to retry.
func (c *Client) Tokens(ctx context.Context, limit, offset int) ([]Token, error) {
	ctx, span := tracer.Start(ctx, "Tokens")
	defer span.End()

	span.SetAttributes(
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"order":             "create_time.desc",
			"limit":             strconv.Itoa(limit),
			"offset":            strconv.Itoa(offset),
			"tokens_by_creator": "lte.10",
		}).
		Get("/tokens")
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

	var tokens []Token
	err = json.Unmarshal(res.Body(), &tokens)
	if err != nil {
		ferr := fetchfail.New(fetchfail.Malformed, fmt.Errorf("unexpected response shape: %w", err))
		span.RecordError(ferr)
		span.SetStatus(codes.Error, ferr.Error())
		return nil, ferr
	}

	return tokens, nil
}
