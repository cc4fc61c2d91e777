package mapsync

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/casaview/internal/core/domain"
	"github.com/samirrijal/casaview/internal/core/ports"
	"github.com/samirrijal/casaview/internal/pkg/metrics"
)

// ErrEngineUnavailable is returned by Mount when the map cannot be shown.
var ErrEngineUnavailable = errors.New("map engine unavailable")

// Config holds the per-session map settings.
type Config struct {
	AccessToken   string
	DefaultCenter domain.GeoPoint
	DefaultZoom   float64
	FocusZoom     float64
	FlyDuration   time.Duration
	Fit           domain.FitOptions
	InitialFit    bool
}

// DefaultConfig returns the stock camera and animation settings. The access
// token is left empty and must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		DefaultCenter: domain.GeoPoint{Lat: 37.12120, Lng: -7.64946},
		DefaultZoom:   10,
		FocusZoom:     14,
		FlyDuration:   time.Second,
		Fit:           domain.FitOptions{Padding: 50, Duration: time.Second},
		InitialFit:    true,
	}
}

// View is the list-side projection of the session: which listings are shown,
// out of how many, and what is selected.
type View struct {
	Visible    []domain.Listing
	Total      int
	SelectedID *int64
	Bounds     *domain.Bounds
}

// Session binds one list view and one map view over the same dataset for the
// lifetime of a mount.
type Session struct {
	cfg     Config
	adapter ports.MapAdapter
	logger  *slog.Logger

	listings []domain.Listing
	index    map[int64]domain.Listing

	fitter    *BoundsFitter
	viewport  *ViewportTracker
	selection *SelectionCoordinator

	generation uint64
	mounted    bool
	fallback   string
	popup      *int64

	viewSubs []func(View)
}

// NewSession creates an unmounted session. adapter may be nil, in which case
// Mount falls back to the list-only view.
func NewSession(cfg Config, adapter ports.MapAdapter, listings []domain.Listing, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		cfg:      cfg,
		adapter:  adapter,
		logger:   logger,
		fitter:   NewBoundsFitter(cfg.Fit),
		viewport: NewViewportTracker(),
	}
	s.selection = NewSelectionCoordinator(s.fitter.State, s.centerOn)
	s.setDataset(listings)

	s.viewport.Subscribe(func(*domain.Bounds) { s.publishView() })
	s.selection.Subscribe(func(int64, bool) {
		s.renderMarkers()
		s.publishView()
	})
	return s
}

// OnViewChange registers fn to receive the view after every viewport,
// selection or dataset change.
func (s *Session) OnViewChange(fn func(View)) {
	s.viewSubs = append(s.viewSubs, fn)
}

// Mount brings up the map. When the engine cannot be shown the session stays
// mounted in fallback and the returned error wraps ErrEngineUnavailable.
func (s *Session) Mount() error {
	if s.mounted {
		return nil
	}
	s.generation++
	s.mounted = true
	metrics.MapSessionsActive.Inc()

	switch {
	case s.adapter == nil:
		return s.enterFallback("no map adapter")
	case s.cfg.AccessToken == "":
		return s.enterFallback("missing map access token")
	}

	if err := s.adapter.Initialize(s.cfg.DefaultCenter, s.cfg.DefaultZoom); err != nil {
		return s.enterFallback(err.Error())
	}

	gen := s.generation
	s.adapter.OnMove(func() {
		if gen != s.generation || !s.active() {
			return
		}
		s.viewport.Refresh(s.adapter)
	})

	s.renderMarkers()
	s.tryFit()
	s.publishView()
	return nil
}

// Unmount tears the session down. Callbacks registered by this mount are
// ignored from here on.
func (s *Session) Unmount() {
	if !s.mounted {
		return
	}
	s.generation++
	s.mounted = false
	s.fallback = ""
	s.popup = nil
	s.fitter.Reset()
	s.viewport.Reset()
	s.selection.Clear()
	metrics.MapSessionsActive.Dec()
}

// EngineFailed moves a mounted session into fallback, as when the client
// reports that its map engine crashed.
func (s *Session) EngineFailed(reason string) {
	if !s.mounted || s.fallback != "" {
		return
	}
	_ = s.enterFallback(reason)
	s.publishView()
}

// Fallback reports whether the session runs without a map, and why.
func (s *Session) Fallback() (reason string, ok bool) {
	return s.fallback, s.fallback != ""
}

// FitState returns the state of the initial framing.
func (s *Session) FitState() FitState {
	return s.fitter.State()
}

// Config returns the session's map settings.
func (s *Session) Config() Config {
	return s.cfg
}

// Listing looks up a listing of the current dataset.
func (s *Session) Listing(id int64) (domain.Listing, bool) {
	l, ok := s.index[id]
	return l, ok
}

// SelectFromList handles a card activation.
func (s *Session) SelectFromList(id int64) (bool, error) {
	l, ok := s.index[id]
	if !ok {
		return false, fmt.Errorf("select %d: %w", id, ErrUnknownListing)
	}
	return s.selection.SelectFromList(l)
}

// SelectFromMarker handles a marker activation: it selects the listing and
// anchors the popup on it, even when it was already selected.
func (s *Session) SelectFromMarker(id int64) (bool, error) {
	l, ok := s.index[id]
	if !ok {
		return false, fmt.Errorf("select %d: %w", id, ErrUnknownListing)
	}
	changed, err := s.selection.SelectFromMarker(l)
	if err != nil {
		return false, err
	}
	if s.active() {
		s.adapter.ShowPopup(l)
		s.popup = &id
	}
	return changed, nil
}

// ClosePopup dismisses the popup. Selection is left alone.
func (s *Session) ClosePopup() {
	if s.popup == nil {
		return
	}
	s.popup = nil
	if s.active() {
		s.adapter.ClosePopup()
	}
}

// PopupID returns the listing the popup is anchored on.
func (s *Session) PopupID() (int64, bool) {
	if s.popup == nil {
		return 0, false
	}
	return *s.popup, true
}

// SetListings replaces the dataset. The initial framing is never repeated
// within a mount, but a mount whose earlier dataset had nothing to frame
// gets framed now.
func (s *Session) SetListings(listings []domain.Listing) {
	s.setDataset(listings)

	if s.popup != nil {
		if _, ok := s.index[*s.popup]; !ok {
			s.ClosePopup()
		}
	}
	if s.active() {
		s.renderMarkers()
		s.tryFit()
	}
	s.publishView()
}

// View computes the current list-side projection. Without a map the list
// shows the whole dataset.
func (s *Session) View() View {
	v := View{Total: len(s.listings)}
	if id, ok := s.selection.Selected(); ok {
		v.SelectedID = &id
	}
	if !s.active() {
		v.Visible = append([]domain.Listing(nil), s.listings...)
		return v
	}
	v.Bounds = s.viewport.Bounds()
	v.Visible = FilterVisible(s.listings, v.Bounds)
	return v
}

func (s *Session) active() bool {
	return s.mounted && s.fallback == ""
}

func (s *Session) enterFallback(reason string) error {
	s.fallback = reason
	s.popup = nil
	s.fitter.Reset()
	s.viewport.Reset()
	s.logger.Warn("map unavailable, falling back to list", "reason", reason)
	return fmt.Errorf("%w: %s", ErrEngineUnavailable, reason)
}

func (s *Session) setDataset(listings []domain.Listing) {
	s.listings = listings
	s.index = make(map[int64]domain.Listing, len(listings))
	for _, l := range listings {
		s.index[l.ID] = l
	}
	s.selection.SetDataset(listings)
}

func (s *Session) tryFit() {
	if !s.cfg.InitialFit || s.fitter.State() != NotFitted {
		return
	}
	gen := s.generation
	issued, err := s.fitter.Fit(s.adapter, s.listings, func(realized domain.Bounds) {
		if gen != s.generation || !s.active() {
			return
		}
		metrics.MapFits.WithLabelValues("completed").Inc()
		s.logger.Debug("initial framing settled", "bounds", realized)
		s.viewport.Publish(realized)
		s.selection.FlushPending()
	})
	if err != nil {
		return
	}
	if !issued {
		metrics.MapFits.WithLabelValues("skipped").Inc()
		return
	}
	metrics.MapFits.WithLabelValues("issued").Inc()
}

func (s *Session) centerOn(p domain.GeoPoint) {
	if !s.active() {
		return
	}
	s.adapter.FlyTo(p, s.cfg.FocusZoom, s.cfg.FlyDuration)
}

func (s *Session) renderMarkers() {
	if !s.active() {
		return
	}
	id, ok := s.selection.Selected()
	gen := s.generation
	s.adapter.RenderMarkers(BuildMarkers(s.listings, id, ok), func(id int64) {
		if gen != s.generation {
			return
		}
		if _, err := s.SelectFromMarker(id); err != nil {
			s.logger.Debug("marker activation ignored", "listing_id", id, "error", err)
		}
	})
}

func (s *Session) publishView() {
	if !s.mounted {
		return
	}
	v := s.View()
	metrics.ListingsVisible.Observe(float64(len(v.Visible)))
	for _, fn := range s.viewSubs {
		fn(v)
	}
}
