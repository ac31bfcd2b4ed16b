package imagesync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"arenasync-backend/lib/fetchfail"
	"arenasync-backend/lib/retry"
	"arenasync-backend/lib/tokenstore/db"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Run selects every address needing an arena image and works through them
// in sequential batches, each batch downloading under the concurrency
// cap. Each address gets its own recorded outcome; failures are data, not
// errors.
func (s Service) Run(ctx context.Context) (RunStatistics, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	stats := RunStatistics{StartedAt: time.Now()}

	err := os.MkdirAll(s.cfg.ImagesDir, 0o755)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stats, err
	}

	limit := int64(s.cfg.Limit)
	if limit == 0 {
		limit = -1
	}
	staleBefore := time.Now().AddDate(0, 0, -s.cfg.StaleAfterDays).Unix()
	addresses, err := s.qry.ListAddressesNeedingArenaImage(ctx, db.ListAddressesNeedingArenaImageParams{
		StaleBefore: staleBefore,
		SkipHost:    s.cfg.SkipCanonicalHost,
		Limit:       limit,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stats, fetchfail.New(fetchfail.Persistence, err)
	}

	stats.Candidates = len(addresses)
	if len(addresses) == 0 {
		slog.Info("no tokens need image scraping")
		stats.FinishedAt = time.Now()
		return stats, nil
	}

	totalBatches := (len(addresses) + s.cfg.BatchSize - 1) / s.cfg.BatchSize
	slog.Info("starting image scrape", "tokens", len(addresses), "batches", totalBatches)

	for start := 0; start < len(addresses); start += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			stats.FinishedAt = time.Now()
			return stats, err
		}

		end := min(start+s.cfg.BatchSize, len(addresses))
		batch := addresses[start:end]
		stats.Batches++

		outcomes := s.downloadBatch(ctx, batch)
		for _, outcome := range outcomes {
			s.recordOutcome(ctx, outcome)
			switch outcome.Status {
			case StatusSuccess:
				stats.Succeeded++
			case StatusFailed:
				stats.Failed++
			case StatusTimeout:
				stats.TimedOut++
			case StatusError:
				stats.Errored++
			}
		}
		slog.Info("batch complete",
			"batch", stats.Batches,
			"total_batches", totalBatches,
			"succeeded", stats.Succeeded,
		)

		if end < len(addresses) {
			delay := time.Duration(s.cfg.BatchDelaySeconds * float64(time.Second))
			if err := retry.Sleep(ctx, delay); err != nil {
				stats.FinishedAt = time.Now()
				return stats, err
			}
		}
	}

	stats.FinishedAt = time.Now()
	span.SetAttributes(
		attribute.Int("candidates", stats.Candidates),
		attribute.Int("succeeded", stats.Succeeded),
	)
	return stats, nil
}

// downloadBatch fans the batch out to the worker pool. Outcomes come back
// positionally, there is no ordering guarantee among the transfers
// themselves.
func (s Service) downloadBatch(ctx context.Context, addresses []string) []Outcome {
	sem := make(chan struct{}, s.cfg.MaxConcurrent)
	outcomes := make([]Outcome, len(addresses))

	var wg sync.WaitGroup
	for i, address := range addresses {
		wg.Add(1)
		go func(i int, address string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = s.download(ctx, address)
		}(i, address)
	}
	wg.Wait()

	return outcomes
}

// download fetches one image and persists it atomically: bytes land in a
// temp file which is renamed into place, so a failure never leaves a
// partial image at the final path.
func (s Service) download(ctx context.Context, address string) Outcome {
	data, err := s.client.OpengraphImage(ctx, address)
	if err != nil {
		return Outcome{Address: address, Status: classify(err)}
	}

	finalPath := filepath.Join(s.cfg.ImagesDir, fmt.Sprintf("%s.png", address))
	tmp, err := os.CreateTemp(s.cfg.ImagesDir, fmt.Sprintf(".%s-*", address))
	if err != nil {
		slog.Error("failed to create temp file", "address", address, "err", err.Error())
		return Outcome{Address: address, Status: StatusError}
	}
	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), finalPath)
	}
	if err != nil {
		os.Remove(tmp.Name())
		slog.Error("failed to persist image", "address", address, "err", err.Error())
		return Outcome{Address: address, Status: StatusError}
	}

	return Outcome{Address: address, Status: StatusSuccess, LocalPath: finalPath}
}

func classify(err error) Status {
	if fetchfail.IsTimeout(err) {
		return StatusTimeout
	}
	var fe *fetchfail.Error
	if errors.As(err, &fe) && fe.Status != 0 {
		return StatusFailed
	}
	return StatusError
}

// recordOutcome is best-effort per address: a status row that fails to
// write is logged, the batch keeps going.
func (s Service) recordOutcome(ctx context.Context, outcome Outcome) {
	params := db.RecordArenaImageResultParams{
		ScrapedAt:    time.Now().Unix(),
		Status:       string(outcome.Status),
		TokenAddress: outcome.Address,
	}
	if outcome.Status == StatusSuccess {
		params.ImageUrl = sql.NullString{String: s.client.ImageURL(outcome.Address), Valid: true}
		params.FilePath = sql.NullString{String: outcome.LocalPath, Valid: true}
	}

	err := s.qry.RecordArenaImageResult(ctx, params)
	if err != nil {
		slog.Error("failed to record scrape outcome",
			"address", outcome.Address,
			"status", outcome.Status,
			"err", err.Error(),
		)
	}
}

// Cleanup removes image files for tokens whose recorded status is not
// success and clears their stored paths, so the images directory only
// holds verified downloads.
func (s Service) Cleanup(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Cleanup")
	defer span.End()

	rows, err := s.qry.ListOrphanedImageRows(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fetchfail.New(fetchfail.Persistence, err)
	}

	removed := 0
	for _, row := range rows {
		path := filepath.Join(s.cfg.ImagesDir, fmt.Sprintf("%s.png", row.TokenAddress))
		if row.ArenaImageFilePath.Valid {
			path = row.ArenaImageFilePath.String
		}
		err := os.Remove(path)
		if err == nil {
			removed++
		} else if !os.IsNotExist(err) {
			slog.Warn("failed to remove orphaned image", "path", path, "err", err.Error())
		}
	}

	err = s.qry.ClearFailedImagePaths(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return removed, fetchfail.New(fetchfail.Persistence, err)
	}

	slog.Info("cleaned up failed image files", "removed", removed)
	return removed, nil
}
