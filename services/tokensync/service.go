// Package tokensync implements the bulk image-URL extraction pipeline:
// paginated fetch from the token listing API, mapping extraction, periodic
// checkpointing, and fill-if-empty batch writes into the token store.
package tokensync

import (
	"database/sql"
	"time"

	"arenasync-backend/lib/platforms/arenapro"
	"arenasync-backend/lib/retry"
	"arenasync-backend/lib/tokenstore/db"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("services/tokensync")

type Config struct {
	// tokens per page request
	PageSize int `json:"page_size"`
	// steady-state delay between successful page fetches, jittered
	BaseDelaySeconds float64 `json:"base_delay_seconds"`
	MaxRetries       int     `json:"max_retries"`
	BackoffFactor    float64 `json:"backoff_factor"`
	// consecutive empty/failed pages before the stream counts as exhausted
	MaxConsecutiveEmpty int `json:"max_consecutive_empty"`
	// checkpoint cadence in offset units advanced
	CheckpointEveryOffset int `json:"checkpoint_every_offset"`
	// flush accumulated mappings to the store once this many are pending
	FlushEveryMappings int `json:"flush_every_mappings"`
	// hard cap on the total offset processed in one run
	MaxOffset     int    `json:"max_offset"`
	CheckpointDir string `json:"checkpoint_dir"`
	// image URLs must contain this host substring to be kept
	AllowedImageHost string `json:"allowed_image_host"`
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	if c.BaseDelaySeconds <= 0 {
		c.BaseDelaySeconds = 2.0
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 2.0
	}
	if c.MaxConsecutiveEmpty <= 0 {
		c.MaxConsecutiveEmpty = 3
	}
	if c.CheckpointEveryOffset <= 0 {
		c.CheckpointEveryOffset = 1000
	}
	if c.FlushEveryMappings <= 0 {
		c.FlushEveryMappings = 500
	}
	if c.MaxOffset <= 0 {
		c.MaxOffset = 100_000
	}
	if c.AllowedImageHost == "" {
		c.AllowedImageHost = "static.starsarena.com"
	}
	return c
}

// RunStatistics accumulates over a single run and is returned to the
// caller; there is deliberately no package-level counter state.
type RunStatistics struct {
	PagesFetched  int
	EmptyPages    int
	TokensFetched int
	MappingsFound int
	RowsUpdated   int64
	FailedFlushes int
	FinalOffset   int
	StartedAt     time.Time
	FinishedAt    time.Time
}

type Service struct {
	db          *sql.DB
	qry         *db.Queries
	client      *arenapro.Client
	checkpoints Checkpointer
	policy      retry.Policy
	limiter     retry.Limiter
	cfg         Config
}

func NewService(database *sql.DB, client *arenapro.Client, cfg Config) Service {
	cfg = cfg.withDefaults()
	base := time.Duration(cfg.BaseDelaySeconds * float64(time.Second))
	return Service{
		db:          database,
		qry:         db.New(database),
		client:      client,
		checkpoints: Checkpointer{Dir: cfg.CheckpointDir},
		policy: retry.Policy{
			MaxAttempts: cfg.MaxRetries,
			Base:        base,
			Factor:      cfg.BackoffFactor,
		},
		limiter: retry.Limiter{
			Base:  base,
			Floor: 500 * time.Millisecond,
		},
		cfg: cfg,
	}
}
