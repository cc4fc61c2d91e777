package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBounds is returned when a viewport violates its invariants.
var ErrInvalidBounds = errors.New("invalid bounds")

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is a map viewport in degrees. South <= North always holds; West > East
// means the viewport spans the antimeridian.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Wraps reports whether the viewport crosses the ±180° meridian.
func (b Bounds) Wraps() bool {
	return b.West > b.East
}

// Contains reports whether p lies inside the viewport, edges included.
func (b Bounds) Contains(p GeoPoint) bool {
	if p.Lat < b.South || p.Lat > b.North {
		return false
	}
	if b.Wraps() {
		return p.Lng >= b.West || p.Lng <= b.East
	}
	return p.Lng >= b.West && p.Lng <= b.East
}

// Center returns the midpoint of the viewport, following the wrap if any.
func (b Bounds) Center() GeoPoint {
	east := b.East
	if b.Wraps() {
		east += 360
	}
	return GeoPoint{
		Lat: (b.North + b.South) / 2,
		Lng: wrapLongitude((b.West + east) / 2),
	}
}

// Validate checks latitude range and ordering. Longitudes are not checked here;
// use Normalize to bring them into range.
func (b Bounds) Validate() error {
	for _, v := range []float64{b.North, b.South, b.East, b.West} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidBounds)
		}
	}
	if b.North > 90 || b.South < -90 {
		return fmt.Errorf("%w: latitude out of range", ErrInvalidBounds)
	}
	if b.South > b.North {
		return fmt.Errorf("%w: south %.6f is above north %.6f", ErrInvalidBounds, b.South, b.North)
	}
	return nil
}

// Normalize wraps East and West into [-180, 180]. Map engines report unwrapped
// longitudes (e.g. east=190) once the camera pans past the antimeridian; after
// normalization such a viewport is expressed as West > East.
func (b Bounds) Normalize() Bounds {
	if b.East-b.West >= 360 {
		b.West, b.East = -180, 180
		return b
	}
	b.West = wrapLongitude(b.West)
	b.East = wrapLongitude(b.East)
	return b
}

func wrapLongitude(lng float64) float64 {
	if lng >= -180 && lng <= 180 {
		return lng
	}
	w := math.Mod(lng+180, 360)
	if w < 0 {
		w += 360
	}
	return w - 180
}
