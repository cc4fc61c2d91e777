package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/casaview/internal/core/domain"
	"github.com/samirrijal/casaview/internal/core/mapsync"
	"github.com/samirrijal/casaview/internal/core/ports"
	"github.com/samirrijal/casaview/internal/pkg/geospatial"
	"github.com/samirrijal/casaview/internal/pkg/metrics"
	"github.com/samirrijal/casaview/internal/pkg/telemetry"
)

const (
	defaultListingsTTL = 60
	maxNearbyLimit     = 50
	maxNearbyRadius    = 50_000
)

// NearbyListing is a listing together with its distance from a query point.
type NearbyListing struct {
	domain.Listing
	DistanceMeters float64 `json:"distance_meters"`
}

// ListingService serves the listing set to the list, the map and the API,
// reading through the cache in front of the configured source.
type ListingService struct {
	source     ports.ListingSource
	cache      ports.CacheService
	ttlSeconds int
	version    atomic.Int64
}

// NewListingService creates a new ListingService. cache may be nil.
func NewListingService(source ports.ListingSource, cache ports.CacheService, ttlSeconds int) *ListingService {
	if ttlSeconds <= 0 {
		ttlSeconds = defaultListingsTTL
	}
	return &ListingService{source: source, cache: cache, ttlSeconds: ttlSeconds}
}

// All returns every listing in source order.
func (s *ListingService) All(ctx context.Context) ([]domain.Listing, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ListingService.All")
	defer span.End()

	cacheKey := s.key("all")
	if listings, ok := s.cached(ctx, cacheKey, "listings_all"); ok {
		span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, true))
		return listings, nil
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, false))

	listings, err := s.source.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list listings: %w", err)
	}
	span.SetAttributes(attribute.Int(telemetry.AttrListingCount, len(listings)))

	if s.cache != nil {
		if data, err := json.Marshal(listings); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.ttlSeconds)
		}
	}
	return listings, nil
}

// ListByType returns the listings of one type, or all of them when t is empty.
// Order is preserved.
func (s *ListingService) ListByType(ctx context.Context, t domain.ListingType) ([]domain.Listing, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return filterByType(all, t), nil
}

// InViewport returns the listings of type t that fall inside bounds, and the
// size of the unfiltered set. A nil bounds returns every listing of type t.
func (s *ListingService) InViewport(ctx context.Context, t domain.ListingType, bounds *domain.Bounds) (visible []domain.Listing, total int, err error) {
	listings, err := s.ListByType(ctx, t)
	if err != nil {
		return nil, 0, err
	}
	if bounds != nil {
		b := bounds.Normalize()
		if err := b.Validate(); err != nil {
			return nil, 0, err
		}
		bounds = &b
	}
	return mapsync.FilterVisible(listings, bounds), len(listings), nil
}

// Frame computes the initial framing box for the listings of type t.
func (s *ListingService) Frame(ctx context.Context, t domain.ListingType) (domain.Bounds, bool, error) {
	listings, err := s.ListByType(ctx, t)
	if err != nil {
		return domain.Bounds{}, false, err
	}
	box, ok := mapsync.ComputeFrame(listings)
	return box, ok, nil
}

// Markers returns the marker layer for the listings of type t.
func (s *ListingService) Markers(ctx context.Context, t domain.ListingType, selected *int64) ([]domain.Marker, error) {
	listings, err := s.ListByType(ctx, t)
	if err != nil {
		return nil, err
	}
	var id int64
	if selected != nil {
		id = *selected
	}
	return mapsync.BuildMarkers(listings, id, selected != nil), nil
}

// Nearby returns positioned listings within radiusMeters of (lat, lon),
// closest first.
func (s *ListingService) Nearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]NearbyListing, error) {
	if limit <= 0 || limit > maxNearbyLimit {
		limit = maxNearbyLimit
	}
	if radiusMeters <= 0 || radiusMeters > maxNearbyRadius {
		radiusMeters = maxNearbyRadius
	}

	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(lat, lon, radiusMeters)
	box := domain.Bounds{North: maxLat, South: minLat, East: maxLon, West: minLon}.Normalize()

	var out []NearbyListing
	for _, l := range all {
		p, ok := l.Position()
		if !ok || !box.Contains(p) {
			continue
		}
		if d := geospatial.Haversine(lat, lon, p.Lat, p.Lng); d <= radiusMeters {
			out = append(out, NearbyListing{Listing: l, DistanceMeters: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetBySlug returns a single listing.
func (s *ListingService) GetBySlug(ctx context.Context, slug string) (*domain.Listing, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("slug must not be empty")
	}

	ctx, span := telemetry.Tracer().Start(ctx, "ListingService.GetBySlug")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrListingSlug, slug))

	cacheKey := s.key("slug:" + slug)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var l domain.Listing
			if err := json.Unmarshal(data, &l); err == nil {
				metrics.CacheHits.WithLabelValues("listing_slug").Inc()
				return &l, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("listing_slug").Inc()
	}

	l, err := s.source.GetBySlug(ctx, slug)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(l); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.ttlSeconds)
		}
	}
	return l, nil
}

// Invalidate drops everything cached so far. Called when the mirror changes.
func (s *ListingService) Invalidate(ctx context.Context) error {
	old := s.key("all")
	s.version.Add(1)
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, old)
}

func (s *ListingService) key(suffix string) string {
	return fmt.Sprintf("listings:v%d:%s", s.version.Load(), suffix)
}

func (s *ListingService) cached(ctx context.Context, key, op string) ([]domain.Listing, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err == nil {
		var listings []domain.Listing
		if err := json.Unmarshal(data, &listings); err == nil {
			metrics.CacheHits.WithLabelValues(op).Inc()
			return listings, true
		}
	} else if !errors.Is(err, ports.ErrCacheMiss) {
		slog.Warn("listing cache read failed", "key", key, "error", err)
	}
	metrics.CacheMisses.WithLabelValues(op).Inc()
	return nil, false
}

func filterByType(listings []domain.Listing, t domain.ListingType) []domain.Listing {
	if t == "" {
		return listings
	}
	out := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		if l.Type == t {
			out = append(out, l)
		}
	}
	return out
}
