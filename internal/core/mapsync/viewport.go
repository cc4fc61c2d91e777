package mapsync

import (
	"github.com/samirrijal/casaview/internal/core/domain"
	"github.com/samirrijal/casaview/internal/core/ports"
	"github.com/samirrijal/casaview/internal/pkg/metrics"
)

// ViewportTracker holds the last viewport reported by the map and republishes
// it to subscribers on every change. Cadence equals the adapter's own move
// cadence; nothing is debounced here.
type ViewportTracker struct {
	bounds *domain.Bounds
	subs   []func(*domain.Bounds)
}

// NewViewportTracker creates a tracker with no viewport.
func NewViewportTracker() *ViewportTracker {
	return &ViewportTracker{}
}

// Subscribe registers fn to receive every published viewport.
func (t *ViewportTracker) Subscribe(fn func(*domain.Bounds)) {
	t.subs = append(t.subs, fn)
}

// Bounds returns a copy of the current viewport, nil before the first report.
func (t *ViewportTracker) Bounds() *domain.Bounds {
	if t.bounds == nil {
		return nil
	}
	b := *t.bounds
	return &b
}

// Refresh re-reads the adapter's realized viewport and publishes it. A camera
// that has not reported yet leaves the tracker untouched.
func (t *ViewportTracker) Refresh(adapter ports.MapAdapter) {
	b, ok := adapter.GetBounds()
	if !ok {
		return
	}
	t.Publish(b)
}

// Publish overwrites the viewport and notifies subscribers synchronously.
// Bounds that fail validation are dropped.
func (t *ViewportTracker) Publish(b domain.Bounds) {
	b = b.Normalize()
	if err := b.Validate(); err != nil {
		return
	}
	t.bounds = &b
	metrics.MapViewportUpdates.Inc()

	for _, fn := range t.subs {
		fn(t.Bounds())
	}
}

// Reset clears the viewport. Subscribers are kept.
func (t *ViewportTracker) Reset() {
	t.bounds = nil
}
