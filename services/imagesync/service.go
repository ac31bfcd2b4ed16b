// Package imagesync downloads arena opengraph images for tokens in the
// store and records per-token scrape status. Downloads run under a
// bounded worker pool; one failure never aborts the batch.
package imagesync

import (
	"database/sql"
	"time"

	"arenasync-backend/lib/platforms/arenatrade"
	"arenasync-backend/lib/tokenstore/db"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("services/imagesync")

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// Outcome is the per-token result of one download attempt. LocalPath is
// only set on success.
type Outcome struct {
	Address   string
	Status    Status
	LocalPath string
}

type Config struct {
	ImagesDir string `json:"images_dir"`
	// simultaneous transfers within a batch
	MaxConcurrent int `json:"max_concurrent"`
	// addresses per batch; batches run sequentially
	BatchSize         int     `json:"batch_size"`
	BatchDelaySeconds float64 `json:"batch_delay_seconds"`
	// rescrape rows older than this
	StaleAfterDays int `json:"stale_after_days"`
	// skip rows whose canonical URL already comes from this host,
	// empty disables the filter
	SkipCanonicalHost string `json:"skip_canonical_host"`
	// cap on addresses per run, 0 means no cap
	Limit int `json:"limit"`
}

func (c Config) withDefaults() Config {
	if c.ImagesDir == "" {
		c.ImagesDir = "token_images"
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.BatchDelaySeconds <= 0 {
		c.BatchDelaySeconds = 1.0
	}
	if c.StaleAfterDays <= 0 {
		c.StaleAfterDays = 7
	}
	return c
}

type RunStatistics struct {
	Candidates int
	Batches    int
	Succeeded  int
	Failed     int
	TimedOut   int
	Errored    int
	StartedAt  time.Time
	FinishedAt time.Time
}

type Service struct {
	db     *sql.DB
	qry    *db.Queries
	client *arenatrade.Client
	cfg    Config
}

// NewService builds the image sync service. client may be nil when only
// Cleanup or Stats will be used.
func NewService(database *sql.DB, client *arenatrade.Client, cfg Config) Service {
	return Service{
		db:     database,
		qry:    db.New(database),
		client: client,
		cfg:    cfg.withDefaults(),
	}
}
