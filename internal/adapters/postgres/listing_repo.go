package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/casaview/internal/core/domain"
	"github.com/samirrijal/casaview/internal/pkg/metrics"
)

const sourceName = "postgres"

const listingColumns = `
	id, document_id, slug, title, description, price, location,
	bedrooms, bathrooms, area_sqft, listing_type, status, property_type,
	latitude, longitude, images, created_at, updated_at, published_at`

// ListingRepo implements ports.ListingRepository with pgx.
type ListingRepo struct {
	db *DB
}

// NewListingRepo creates a new ListingRepo.
func NewListingRepo(db *DB) *ListingRepo {
	return &ListingRepo{db: db}
}

// List returns every mirrored listing ordered by id.
func (r *ListingRepo) List(ctx context.Context) (listings []domain.Listing, err error) {
	defer func(start time.Time) { metrics.ObserveSourceFetch(sourceName, start, err) }(time.Now())

	rows, err := r.db.Pool.Query(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// GetBySlug returns a single listing.
func (r *ListingRepo) GetBySlug(ctx context.Context, slug string) (*domain.Listing, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE slug = $1`, slug)
	l, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("slug %q: %w", slug, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// UpsertBatch inserts or updates many listings using pgx.Batch.
func (r *ListingRepo) UpsertBatch(ctx context.Context, listings []domain.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, l := range listings {
		images, err := json.Marshal(imagesOrEmpty(l.Images))
		if err != nil {
			return fmt.Errorf("encode images for %d: %w", l.ID, err)
		}
		batch.Queue(`
			INSERT INTO listings (`+listingColumns+`, synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, now())
			ON CONFLICT (id) DO UPDATE
			SET document_id = EXCLUDED.document_id, slug = EXCLUDED.slug, title = EXCLUDED.title,
			    description = EXCLUDED.description, price = EXCLUDED.price, location = EXCLUDED.location,
			    bedrooms = EXCLUDED.bedrooms, bathrooms = EXCLUDED.bathrooms, area_sqft = EXCLUDED.area_sqft,
			    listing_type = EXCLUDED.listing_type, status = EXCLUDED.status,
			    property_type = EXCLUDED.property_type,
			    latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, images = EXCLUDED.images,
			    created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at,
			    published_at = EXCLUDED.published_at, synced_at = now()
		`, l.ID, l.DocumentID, l.Slug, l.Title, l.Description, l.Price, l.Location,
			l.Bedrooms, l.Bathrooms, l.AreaSqFt, string(l.Type), l.Status, l.PropertyType,
			l.Latitude.Ptr(), l.Longitude.Ptr(), images, l.CreatedAt, l.UpdatedAt, l.PublishedAt)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range listings {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// DeleteMissing removes listings whose id is not in keep.
func (r *ListingRepo) DeleteMissing(ctx context.Context, keep []int64) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM listings WHERE NOT (id = ANY($1))`, keep)
	if err != nil {
		return 0, fmt.Errorf("delete missing: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks the mirror database.
func (r *ListingRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Count returns the number of mirrored listings.
func (r *ListingRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM listings`).Scan(&n)
	return n, err
}

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var (
		l        domain.Listing
		lat, lng *float64
		lt       string
		images   []byte
	)
	if err := row.Scan(
		&l.ID, &l.DocumentID, &l.Slug, &l.Title, &l.Description, &l.Price, &l.Location,
		&l.Bedrooms, &l.Bathrooms, &l.AreaSqFt, &lt, &l.Status, &l.PropertyType,
		&lat, &lng, &images, &l.CreatedAt, &l.UpdatedAt, &l.PublishedAt,
	); err != nil {
		return nil, err
	}
	l.Type = domain.ListingType(lt)
	l.Latitude = domain.CoordinateFromPtr(lat)
	l.Longitude = domain.CoordinateFromPtr(lng)
	if len(images) > 0 {
		if err := json.Unmarshal(images, &l.Images); err != nil {
			return nil, fmt.Errorf("decode images for %d: %w", l.ID, err)
		}
	}
	return &l, nil
}

func imagesOrEmpty(images []domain.Image) []domain.Image {
	if images == nil {
		return []domain.Image{}
	}
	return images
}
