package tokensync

import (
	"context"
	"log/slog"
	"time"

	"arenasync-backend/lib/fetchfail"
	"arenasync-backend/lib/platforms/arenapro"
	"arenasync-backend/lib/retry"
	"arenasync-backend/lib/tokenstore/db"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Run walks the token listing from offset zero until the stream is
// exhausted (MaxConsecutiveEmpty empty or failed pages in a row) or the
// safety cap is reached. Mappings accumulate for the whole run; pending
// ones are flushed to the store in batches and the full set is applied
// once more at the end, which is safe because writes are fill-if-empty.
func (s Service) Run(ctx context.Context) (RunStatistics, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	stats := RunStatistics{StartedAt: time.Now()}

	all := map[string]string{}
	// mappings accumulated since the last successful flush. cleared only
	// after the store write commits, so a failed flush retries the same
	// set on the next boundary instead of dropping it.
	pending := map[string]string{}

	offset := 0
	consecutiveEmpty := 0
	lastCheckpoint := 0

	for consecutiveEmpty < s.cfg.MaxConsecutiveEmpty {
		if err := ctx.Err(); err != nil {
			stats.FinishedAt = time.Now()
			return stats, err
		}

		records, err := s.fetchPage(ctx, s.cfg.PageSize, offset)
		stats.PagesFetched++

		if err != nil || len(records) == 0 {
			consecutiveEmpty++
			stats.EmptyPages++
			if err != nil {
				slog.Warn("page fetch failed",
					"offset", offset,
					"consecutive_empty", consecutiveEmpty,
					"err", err.Error(),
				)
			} else {
				slog.Info("empty page",
					"offset", offset,
					"consecutive_empty", consecutiveEmpty,
				)
			}
		} else {
			consecutiveEmpty = 0
			stats.TokensFetched += len(records)

			batch := ExtractMappings(records, s.cfg.AllowedImageHost)
			for addr, url := range batch {
				if _, seen := all[addr]; !seen {
					stats.MappingsFound++
				}
				all[addr] = url
				pending[addr] = url
			}
			if len(batch) > 0 {
				slog.Info("extracted mappings", "offset", offset, "count", len(batch))
			}
		}

		if offset-lastCheckpoint >= s.cfg.CheckpointEveryOffset {
			s.checkpoint(offset, all)
			lastCheckpoint = offset
		}

		if len(pending) >= s.cfg.FlushEveryMappings {
			updated, err := s.Apply(ctx, pending)
			if err != nil {
				stats.FailedFlushes++
				slog.Error("batch flush failed, keeping mappings pending", "err", err.Error())
			} else {
				stats.RowsUpdated += updated
				pending = map[string]string{}
			}
		}

		offset += s.cfg.PageSize

		if offset > s.cfg.MaxOffset {
			slog.Warn("reached safety cap", "max_offset", s.cfg.MaxOffset)
			break
		}

		if consecutiveEmpty < s.cfg.MaxConsecutiveEmpty {
			if _, err := s.limiter.Delay(ctx); err != nil {
				stats.FinishedAt = time.Now()
				return stats, err
			}
		}
	}

	// final apply covers everything: rows filled by earlier flushes are
	// untouched by the fill-if-empty condition, so this cannot double
	// count or clobber.
	updated, err := s.Apply(ctx, all)
	if err != nil {
		stats.FailedFlushes++
		slog.Error("final flush failed", "err", err.Error())
	} else {
		stats.RowsUpdated += updated
	}

	s.checkpoint(offset, all)

	stats.FinalOffset = offset
	stats.FinishedAt = time.Now()

	span.SetAttributes(
		attribute.Int("pages_fetched", stats.PagesFetched),
		attribute.Int("tokens_fetched", stats.TokensFetched),
		attribute.Int("mappings_found", stats.MappingsFound),
		attribute.Int64("rows_updated", stats.RowsUpdated),
	)
	return stats, nil
}

// fetchPage retries transient failures per the policy. Exhausted retries
// and malformed responses surface as an error the caller counts as an
// empty page; nothing here is fatal to the run.
func (s Service) fetchPage(ctx context.Context, limit, offset int) ([]arenapro.Token, error) {
	var records []arenapro.Token
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		page, err := s.client.Tokens(ctx, limit, offset)
		if err != nil {
			return err
		}
		records = page
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Apply writes a mapping batch inside one transaction with fill-if-empty
// semantics. On any failure the whole batch rolls back and zero rows are
// reported, so retrying the same batch is always safe.
func (s Service) Apply(ctx context.Context, mappings map[string]string) (int64, error) {
	if len(mappings) == 0 {
		return 0, nil
	}

	ctx, span := tracer.Start(ctx, "Apply")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(mappings)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fetchfail.New(fetchfail.Persistence, err)
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	var updated int64
	for addr, url := range mappings {
		n, err := txqry.SetImageUrlIfEmpty(ctx, db.SetImageUrlIfEmptyParams{
			ImageUrl:     url,
			TokenAddress: addr,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, fetchfail.New(fetchfail.Persistence, err)
		}
		updated += n
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fetchfail.New(fetchfail.Persistence, err)
	}

	span.SetAttributes(attribute.Int64("rows_updated", updated))
	return updated, nil
}

// checkpoint is best-effort: a failed write is logged and the run goes on.
func (s Service) checkpoint(offset int, mappings map[string]string) {
	artifact, err := s.checkpoints.Write(Progress{
		Offset:        offset,
		TotalMappings: len(mappings),
		Mappings:      mappings,
	})
	if err != nil {
		slog.Warn("checkpoint write failed", "err", err.Error())
		return
	}
	slog.Info("progress saved", "artifact", artifact, "offset", offset, "mappings", len(mappings))
}

// EstimateTotalAvailable probes increasing offsets with single-record
// requests to gauge how many tokens the upstream will serve, purely for
// progress reporting.
func (s Service) EstimateTotalAvailable(ctx context.Context) int {
	probes := []int{0, 1000, 5000, 10_000, 25_000, 50_000}
	for _, offset := range probes {
		records, err := s.fetchPage(ctx, 1, offset)
		if err != nil || len(records) == 0 {
			return offset
		}
		if err := retry.Sleep(ctx, time.Second); err != nil {
			return offset
		}
	}
	return 50_000
}
