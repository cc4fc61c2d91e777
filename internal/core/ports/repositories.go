package ports

import (
	"context"

	"github.com/samirrijal/casaview/internal/core/domain"
)

// ListingSource supplies the ordered listing set. It is the read side every
// page load and map session starts from.
type ListingSource interface {
	List(ctx context.Context) ([]domain.Listing, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Listing, error)
}

// ListingRepository persists the local mirror of the content store.
type ListingRepository interface {
	ListingSource
	UpsertBatch(ctx context.Context, listings []domain.Listing) error
	DeleteMissing(ctx context.Context, keep []int64) (int64, error)
	Count(ctx context.Context) (int, error)
}
