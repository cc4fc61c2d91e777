package mapsync

import "github.com/samirrijal/casaview/internal/core/domain"

// FilterVisible returns the listings inside bounds, preserving order.
//
// A nil bounds means the map has not reported a viewport yet and every listing
// is returned unchanged. Once bounds is set, listings without a valid position
// are always excluded.
func FilterVisible(listings []domain.Listing, bounds *domain.Bounds) []domain.Listing {
	if bounds == nil {
		return listings
	}

	visible := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		if IsVisible(l, *bounds) {
			visible = append(visible, l)
		}
	}
	return visible
}

// IsVisible reports whether a single listing passes the viewport test.
func IsVisible(l domain.Listing, bounds domain.Bounds) bool {
	p, ok := l.Position()
	if !ok {
		return false
	}
	return bounds.Contains(p)
}

// WithPosition returns the listings that carry a valid coordinate pair.
func WithPosition(listings []domain.Listing) []domain.Listing {
	out := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		if _, ok := l.Position(); ok {
			out = append(out, l)
		}
	}
	return out
}
