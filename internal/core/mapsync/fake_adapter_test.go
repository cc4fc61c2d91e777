package mapsync_test

import (
	"fmt"
	"time"

	"github.com/samirrijal/casaview/internal/core/domain"
)

type fitCall struct {
	box  domain.Bounds
	opts domain.FitOptions
	done func()
}

type flyCall struct {
	center   domain.GeoPoint
	zoom     float64
	duration time.Duration
}

// fakeAdapter records every command and lets tests drive camera events.
type fakeAdapter struct {
	initErr error

	bounds    domain.Bounds
	hasBounds bool

	inits      int
	onMove     func()
	fits       []fitCall
	flies      []flyCall
	markers    [][]domain.Marker
	onActivate func(id int64)
	popups     []int64
	closes     int
}

func (f *fakeAdapter) Initialize(center domain.GeoPoint, zoom float64) error {
	f.inits++
	return f.initErr
}

func (f *fakeAdapter) OnMove(fn func()) { f.onMove = fn }

func (f *fakeAdapter) GetBounds() (domain.Bounds, bool) { return f.bounds, f.hasBounds }

func (f *fakeAdapter) FitBounds(box domain.Bounds, opts domain.FitOptions, done func()) {
	f.fits = append(f.fits, fitCall{box: box, opts: opts, done: done})
}

func (f *fakeAdapter) FlyTo(center domain.GeoPoint, zoom float64, duration time.Duration) {
	f.flies = append(f.flies, flyCall{center: center, zoom: zoom, duration: duration})
}

func (f *fakeAdapter) RenderMarkers(markers []domain.Marker, onActivate func(id int64)) {
	f.markers = append(f.markers, markers)
	f.onActivate = onActivate
}

func (f *fakeAdapter) ShowPopup(anchor domain.Listing) { f.popups = append(f.popups, anchor.ID) }

func (f *fakeAdapter) ClosePopup() { f.closes++ }

// move simulates the camera settling on b.
func (f *fakeAdapter) move(b domain.Bounds) {
	f.bounds, f.hasBounds = b, true
	if f.onMove != nil {
		f.onMove()
	}
}

// completeFit settles the last framing animation on realized.
func (f *fakeAdapter) completeFit(realized domain.Bounds) {
	f.bounds, f.hasBounds = realized, true
	f.fits[len(f.fits)-1].done()
}

func (f *fakeAdapter) commandCount() int {
	return f.inits + len(f.fits) + len(f.flies) + len(f.markers) + len(f.popups) + f.closes
}

func (f *fakeAdapter) lastMarkers() []domain.Marker {
	if len(f.markers) == 0 {
		return nil
	}
	return f.markers[len(f.markers)-1]
}

func listing(id int64, lat, lng float64) domain.Listing {
	return domain.Listing{
		ID:        id,
		Slug:      fmt.Sprintf("listing-%d", id),
		Title:     "Listing",
		Latitude:  domain.NewCoordinate(lat),
		Longitude: domain.NewCoordinate(lng),
	}
}

func unplaced(id int64) domain.Listing {
	return domain.Listing{ID: id, Slug: "unplaced", Title: "No coordinates"}
}

func ids(listings []domain.Listing) []int64 {
	out := make([]int64, len(listings))
	for i, l := range listings {
		out[i] = l.ID
	}
	return out
}
