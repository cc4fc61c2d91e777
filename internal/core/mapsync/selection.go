package mapsync

import (
	"errors"

	"github.com/samirrijal/casaview/internal/core/domain"
	"github.com/samirrijal/casaview/internal/pkg/metrics"
)

// ErrUnknownListing is returned when activating an id outside the current dataset.
var ErrUnknownListing = errors.New("listing not in current dataset")

// Origin names the view an activation came from.
type Origin string

const (
	OriginList   Origin = "list"
	OriginMarker Origin = "marker"
)

// SelectionCoordinator owns the selected listing id shared by cards and markers.
//
// Activation assigns, it never toggles: re-activating the selected listing
// changes nothing. A change to a positioned listing asks the map to center on
// it. While the initial framing is still animating that request is held back
// and replayed once framing completes; only the latest request is kept.
type SelectionCoordinator struct {
	selected int64
	has      bool
	index    map[int64]domain.Listing
	pending  *domain.GeoPoint

	fitState func() FitState
	center   func(domain.GeoPoint)
	subs     []func(id int64, ok bool)
}

// NewSelectionCoordinator creates a coordinator with nothing selected. fitState
// reports the framing state; center issues the actual camera command.
func NewSelectionCoordinator(fitState func() FitState, center func(domain.GeoPoint)) *SelectionCoordinator {
	return &SelectionCoordinator{
		index:    make(map[int64]domain.Listing),
		fitState: fitState,
		center:   center,
	}
}

// Subscribe registers fn to be told about every selection change.
func (s *SelectionCoordinator) Subscribe(fn func(id int64, ok bool)) {
	s.subs = append(s.subs, fn)
}

// Selected returns the selected id, if any.
func (s *SelectionCoordinator) Selected() (int64, bool) {
	return s.selected, s.has
}

// SetDataset replaces the set of selectable listings. A selection that no
// longer refers to a listing in the set is cleared; cleared reports that.
func (s *SelectionCoordinator) SetDataset(listings []domain.Listing) (cleared bool) {
	s.index = make(map[int64]domain.Listing, len(listings))
	for _, l := range listings {
		s.index[l.ID] = l
	}

	if !s.has {
		return false
	}
	if _, ok := s.index[s.selected]; ok {
		return false
	}
	s.Clear()
	return true
}

// SelectFromList handles a card activation.
func (s *SelectionCoordinator) SelectFromList(l domain.Listing) (changed bool, err error) {
	return s.activate(l.ID, OriginList)
}

// SelectFromMarker handles a marker activation.
func (s *SelectionCoordinator) SelectFromMarker(l domain.Listing) (changed bool, err error) {
	return s.activate(l.ID, OriginMarker)
}

// Clear drops the selection and any held-back center request.
func (s *SelectionCoordinator) Clear() {
	if !s.has && s.pending == nil {
		return
	}
	wasSelected := s.has
	s.selected, s.has = 0, false
	s.pending = nil
	if wasSelected {
		s.notify()
	}
}

// FlushPending replays the held-back center request. Called once framing completes.
func (s *SelectionCoordinator) FlushPending() {
	if s.pending == nil {
		return
	}
	p := *s.pending
	s.pending = nil
	s.center(p)
}

// Pending reports the held-back center target, if any.
func (s *SelectionCoordinator) Pending() (domain.GeoPoint, bool) {
	if s.pending == nil {
		return domain.GeoPoint{}, false
	}
	return *s.pending, true
}

func (s *SelectionCoordinator) activate(id int64, origin Origin) (bool, error) {
	l, ok := s.index[id]
	if !ok {
		return false, ErrUnknownListing
	}
	if s.has && s.selected == id {
		return false, nil
	}

	s.selected, s.has = id, true
	if p, ok := l.Position(); ok {
		s.requestCenter(p, origin)
	} else {
		// the previous target no longer matches the selection
		s.pending = nil
	}
	s.notify()
	return true, nil
}

func (s *SelectionCoordinator) requestCenter(p domain.GeoPoint, origin Origin) {
	if s.fitState() == Fitting {
		s.pending = &p
		metrics.MapCenterCommands.WithLabelValues(string(origin), "queued").Inc()
		return
	}
	s.pending = nil
	s.center(p)
	metrics.MapCenterCommands.WithLabelValues(string(origin), "immediate").Inc()
}

func (s *SelectionCoordinator) notify() {
	for _, fn := range s.subs {
		fn(s.selected, s.has)
	}
}
