package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/casaview/internal/core/ports"
	"github.com/samirrijal/casaview/internal/pkg/metrics"
)

// SyncService mirrors the upstream content store into the local repository.
type SyncService struct {
	upstream ports.ListingSource
	mirror   ports.ListingRepository
	events   ports.EventPublisher
	now      func() time.Time
}

// NewSyncService creates a new SyncService. events may be nil.
func NewSyncService(upstream ports.ListingSource, mirror ports.ListingRepository, events ports.EventPublisher) *SyncService {
	return &SyncService{upstream: upstream, mirror: mirror, events: events, now: time.Now}
}

// Sync copies every upstream listing into the mirror and removes the ones
// that disappeared upstream. An empty upstream never empties the mirror.
func (s *SyncService) Sync(ctx context.Context) (*ports.SyncEvent, error) {
	listings, err := s.upstream.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch upstream: %w", err)
	}

	if err := s.mirror.UpsertBatch(ctx, listings); err != nil {
		return nil, fmt.Errorf("upsert listings: %w", err)
	}

	var deleted int64
	if len(listings) > 0 {
		keep := make([]int64, len(listings))
		for i, l := range listings {
			keep[i] = l.ID
		}
		deleted, err = s.mirror.DeleteMissing(ctx, keep)
		if err != nil {
			return nil, fmt.Errorf("prune listings: %w", err)
		}
	} else {
		slog.Warn("upstream returned no listings, mirror left untouched")
	}

	metrics.ListingsSynced.Add(float64(len(listings)))

	event := &ports.SyncEvent{
		Upserted: len(listings),
		Deleted:  deleted,
		SyncedAt: s.now().UTC(),
	}

	if s.events != nil {
		if err := s.events.PublishListingsSynced(ctx, event); err != nil {
			slog.Warn("failed to publish sync event", "error", err)
		}
	}

	slog.Info("listings synced", "upserted", event.Upserted, "deleted", event.Deleted)
	return event, nil
}
