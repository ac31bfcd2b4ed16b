package imagesync

import (
	"context"

	"arenasync-backend/lib/fetchfail"
)

// Stats summarizes scraping progress across the whole store.
type Stats struct {
	TotalTokens       int64
	Succeeded         int64
	Failed            int64
	NotAttempted      int64
	WithArenaUrl      int64
	WithCanonicalUrl  int64
	FromCanonicalHost int64
}

func (s Service) Stats(ctx context.Context) (Stats, error) {
	ctx, span := tracer.Start(ctx, "Stats")
	defer span.End()

	var stats Stats
	var err error

	if stats.TotalTokens, err = s.qry.CountTokenDeployments(ctx); err != nil {
		return stats, fetchfail.New(fetchfail.Persistence, err)
	}
	if stats.Succeeded, err = s.qry.CountArenaImageStatus(ctx, string(StatusSuccess)); err != nil {
		return stats, fetchfail.New(fetchfail.Persistence, err)
	}
	if stats.Failed, err = s.qry.CountArenaImageStatus(ctx, string(StatusFailed)); err != nil {
		return stats, fetchfail.New(fetchfail.Persistence, err)
	}
	if stats.NotAttempted, err = s.qry.CountArenaImageNotAttempted(ctx); err != nil {
		return stats, fetchfail.New(fetchfail.Persistence, err)
	}
	if stats.WithArenaUrl, err = s.qry.CountWithArenaImageUrl(ctx); err != nil {
		return stats, fetchfail.New(fetchfail.Persistence, err)
	}
	if stats.WithCanonicalUrl, err = s.qry.CountWithImageUrl(ctx); err != nil {
		return stats, fetchfail.New(fetchfail.Persistence, err)
	}
	if s.cfg.SkipCanonicalHost != "" {
		if stats.FromCanonicalHost, err = s.qry.CountImageUrlFromHost(ctx, s.cfg.SkipCanonicalHost); err != nil {
			return stats, fetchfail.New(fetchfail.Persistence, err)
		}
	}

	return stats, nil
}
