package mapsync

import "github.com/samirrijal/casaview/internal/core/domain"

// BuildMarkers returns one marker per positioned listing, in input order.
// Pass the full dataset, not the viewport-filtered subset.
func BuildMarkers(listings []domain.Listing, selectedID int64, hasSelection bool) []domain.Marker {
	markers := make([]domain.Marker, 0, len(listings))
	for _, l := range listings {
		p, ok := l.Position()
		if !ok {
			continue
		}
		markers = append(markers, domain.Marker{
			ID:       l.ID,
			Lat:      p.Lat,
			Lng:      p.Lng,
			Selected: hasSelection && l.ID == selectedID,
		})
	}
	return markers
}
