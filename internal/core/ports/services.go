package ports

import (
	"context"
	"errors"
	"time"
)

// SyncEvent announces that the listing mirror changed.
type SyncEvent struct {
	Upserted int       `json:"upserted"`
	Deleted  int64     `json:"deleted"`
	SyncedAt time.Time `json:"synced_at"`
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishListingsSynced(ctx context.Context, event *SyncEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeListingsSynced(ctx context.Context, handler func(ctx context.Context, event *SyncEvent) error) error
}

// ErrCacheMiss is returned by CacheService.Get for an absent key.
var ErrCacheMiss = errors.New("cache miss")

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
