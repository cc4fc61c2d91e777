package domain

import "time"

// FitOptions controls the framing animation.
type FitOptions struct {
	Padding  int           `json:"padding"` // pixels
	Duration time.Duration `json:"-"`
}

// MarkerStyle is the visual treatment of a marker.
type MarkerStyle struct {
	Scale float64 `json:"scale"`
	Color string  `json:"color"`
}

var (
	markerNormal   = MarkerStyle{Scale: 1.0, Color: "#3b82f6"}
	markerSelected = MarkerStyle{Scale: 1.25, Color: "#ef4444"}
)

// Marker is the map representation of a listing's coordinate.
type Marker struct {
	ID       int64   `json:"id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Selected bool    `json:"selected"`
}

// Style returns the marker's visual state: selected markers render larger and red.
func (m Marker) Style() MarkerStyle {
	if m.Selected {
		return markerSelected
	}
	return markerNormal
}
