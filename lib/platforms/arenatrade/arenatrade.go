// Package arenatrade fetches token opengraph images from arena.trade-style
// endpoints.
package arenatrade

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"arenasync-backend/lib/fetchfail"
	"arenasync-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("platforms/arenatrade")

type Client struct {
	http *resty.Client
}

func NewClient(baseUrl string, timeout time.Duration) *Client {
	client := resty.New()
	client.SetBaseURL(baseUrl)
	client.SetTimeout(timeout)
	client.SetHeaders(map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		"Accept":     "image/*",
		"Origin":     "https://arena.trade",
		"Referer":    "https://arena.trade/",
	})

	telemetry.InstrumentResty(client, "platforms/arenatrade/http")

	return &Client{http: client}
}

// ImageURL returns the public URL the image for a token is served from.
func (c *Client) ImageURL(address string) string {
	return fmt.Sprintf("%s/token/%s/opengraph-image", c.http.BaseURL, address)
}

// OpengraphImage fetches the raw image bytes for a token.
func (c *Client) OpengraphImage(ctx context.Context, address string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "OpengraphImage")
	defer span.End()

	span.SetAttributes(attribute.String("address", address))

	res, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/token/%s/opengraph-image", address))
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

	return res.Body(), nil
}
