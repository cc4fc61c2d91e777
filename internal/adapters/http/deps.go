package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/casaview/internal/adapters/postgres"
	"github.com/samirrijal/casaview/internal/adapters/valkey"
	"github.com/samirrijal/casaview/internal/core/mapsync"
	"github.com/samirrijal/casaview/internal/core/usecases"
)

// Pinger is anything the readiness probe can reach.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Listings *usecases.ListingService
	Map      mapsync.Config
	Source   Pinger // content source the listings are read from
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache
	Hub      *Hub // live map sessions to refresh after a sync
}
