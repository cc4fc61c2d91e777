package ports

import (
	"time"

	"github.com/samirrijal/casaview/internal/core/domain"
)

// MapAdapter is the command/event surface of an interactive map engine.
// Implementations deliver every callback on the goroutine that owns the
// session; callers never need locking.
type MapAdapter interface {
	// Initialize mounts the engine at the given camera. An error means the
	// engine is unavailable and the caller must fall back to a static view.
	Initialize(center domain.GeoPoint, zoom float64) error

	// OnMove registers the callback fired on every camera change.
	OnMove(fn func())

	// GetBounds returns the realized viewport, false if the camera has not
	// reported one yet.
	GetBounds() (domain.Bounds, bool)

	// FitBounds animates the camera to enclose box and calls done once the
	// animation has settled.
	FitBounds(box domain.Bounds, opts domain.FitOptions, done func())

	// FlyTo animates the camera to center at zoom. A later call supersedes
	// an earlier one still in flight.
	FlyTo(center domain.GeoPoint, zoom float64, duration time.Duration)

	// RenderMarkers replaces the marker layer.
	RenderMarkers(markers []domain.Marker, onActivate func(id int64))

	ShowPopup(anchor domain.Listing)
	ClosePopup()
}
