package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/casaview/internal/core/domain"
	"github.com/samirrijal/casaview/internal/core/mapsync"
	"github.com/samirrijal/casaview/internal/core/usecases"
)

const waitFor = 2 * time.Second

// fakeConn is a websocket stand-in: the test writes client frames to in and
// reads server frames from out. Closing in ends the session.
type fakeConn struct {
	in  chan []byte
	out chan []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte), out: make(chan []byte, 256)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-c.in
	if !ok {
		return 0, nil, io.EOF
	}
	return websocket.TextMessage, msg, nil
}

func (c *fakeConn) WriteMessage(mt int, data []byte) error {
	if mt != websocket.TextMessage {
		return nil
	}
	c.out <- append([]byte(nil), data...)
	return nil
}

// serverMsg decodes any server frame.
type serverMsg struct {
	Type        string           `json:"type"`
	Reason      string           `json:"reason"`
	Message     string           `json:"message"`
	AccessToken string           `json:"access_token"`
	Center      *domain.GeoPoint `json:"center"`
	Zoom        float64          `json:"zoom"`
	Box         *domain.Bounds   `json:"box"`
	DurationMS  int64            `json:"duration_ms"`
	Markers     []domain.Marker  `json:"markers"`
	Listing     *domain.Summary  `json:"listing"`
	IDs         []int64          `json:"ids"`
	Total       int              `json:"total"`
	SelectedID  *int64           `json:"selected_id"`
	Bounds      *domain.Bounds   `json:"bounds"`
}

type stubSource struct {
	mu       sync.Mutex
	listings []domain.Listing
	err      error
	wait     func(ctx context.Context) error
	calls    atomic.Int32
}

func (s *stubSource) List(ctx context.Context) ([]domain.Listing, error) {
	s.calls.Add(1)
	s.mu.Lock()
	listings, err, wait := s.listings, s.err, s.wait
	s.mu.Unlock()
	if wait != nil {
		if err := wait(ctx); err != nil {
			return nil, err
		}
	}
	return listings, err
}

// hold makes every later List block in wait.
func (s *stubSource) hold(wait func(ctx context.Context) error) {
	s.mu.Lock()
	s.wait = wait
	s.mu.Unlock()
}

func (s *stubSource) GetBySlug(ctx context.Context, slug string) (*domain.Listing, error) {
	return nil, domain.ErrNotFound
}

func (s *stubSource) set(listings []domain.Listing) {
	s.mu.Lock()
	s.listings = listings
	s.mu.Unlock()
}

func wsListing(id int64, lat, lng float64) domain.Listing {
	return domain.Listing{
		ID:        id,
		Slug:      "casa",
		Title:     "Casa",
		Type:      domain.ListingForSale,
		Latitude:  domain.NewCoordinate(lat),
		Longitude: domain.NewCoordinate(lng),
	}
}

func wsFixtures() []domain.Listing {
	return []domain.Listing{
		wsListing(1, 37.0194, -7.9304),
		wsListing(2, 37.1028, -8.6730),
		wsListing(3, 37.1270, -7.6506),
		{ID: 4, Slug: "sem-coordenadas", Type: domain.ListingForSale},
	}
}

func wsDeps(src *stubSource, mutate ...func(*mapsync.Config)) *Dependencies {
	cfg := mapsync.DefaultConfig()
	cfg.AccessToken = "pk.test"
	cfg.Fit.Duration = 5 * time.Second
	for _, m := range mutate {
		m(&cfg)
	}
	return &Dependencies{
		Listings: usecases.NewListingService(src, nil, 0),
		Map:      cfg,
		Hub:      NewHub(),
	}
}

type wsHarness struct {
	t    *testing.T
	conn *fakeConn
	done chan struct{}
	seen []serverMsg
	once sync.Once
}

func startSession(t *testing.T, deps *Dependencies, listingType string) *wsHarness {
	t.Helper()
	h := &wsHarness{t: t, conn: newFakeConn(), done: make(chan struct{})}
	go func() {
		serveMapSession(h.conn, deps, listingType, slog.Default())
		close(h.done)
	}()
	t.Cleanup(h.close)
	return h
}

func (h *wsHarness) send(frame string) {
	h.t.Helper()
	select {
	case h.conn.in <- []byte(frame):
	case <-time.After(waitFor):
		h.t.Fatalf("session did not read %s", frame)
	}
}

// expect skips frames until one of type typ arrives.
func (h *wsHarness) expect(typ string) serverMsg {
	h.t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case raw := <-h.conn.out:
			var m serverMsg
			require.NoError(h.t, json.Unmarshal(raw, &m))
			h.seen = append(h.seen, m)
			if m.Type == typ {
				return m
			}
		case <-deadline:
			h.t.Fatalf("no %s frame, saw %v", typ, h.types())
		}
	}
}

// expectView skips frames until a view satisfying ok arrives.
func (h *wsHarness) expectView(ok func(serverMsg) bool) serverMsg {
	h.t.Helper()
	for {
		if m := h.expect(frameView); ok(m) {
			return m
		}
	}
}

func (h *wsHarness) sawType(typ string) bool {
	for _, m := range h.seen {
		if m.Type == typ {
			return true
		}
	}
	return false
}

func (h *wsHarness) types() []string {
	out := make([]string, len(h.seen))
	for i, m := range h.seen {
		out[i] = m.Type
	}
	return out
}

func (h *wsHarness) close() {
	h.once.Do(func() { close(h.conn.in) })
	select {
	case <-h.done:
	case <-time.After(waitFor):
		h.t.Error("session did not stop")
	}
}

func TestMapSession_MountSequence(t *testing.T) {
	h := startSession(t, wsDeps(&stubSource{listings: wsFixtures()}), "buy")

	init := h.expect(frameInit)
	assert.Equal(t, "pk.test", init.AccessToken)
	require.NotNil(t, init.Center)
	assert.InDelta(t, 37.12120, init.Center.Lat, 1e-9)
	assert.Equal(t, 10.0, init.Zoom)

	markers := h.expect(frameMarkers)
	assert.Len(t, markers.Markers, 3, "unplaced listings get no marker")

	fit := h.expect(frameFitBounds)
	require.NotNil(t, fit.Box)
	assert.Equal(t, int64(5000), fit.DurationMS)

	view := h.expect(frameView)
	assert.Equal(t, []int64{1, 2, 3, 4}, view.IDs, "no viewport yet, every listing shows")
	assert.Equal(t, 4, view.Total)
	assert.Nil(t, view.Bounds)
}

func TestMapSession_MoveFiltersList(t *testing.T) {
	h := startSession(t, wsDeps(&stubSource{listings: wsFixtures()}), "all")
	h.expect(frameFitBounds)

	h.send(`{"type":"fit_complete","bounds":{"north":37.2,"south":37.0,"east":-7.6,"west":-8.0}}`)
	view := h.expectView(func(m serverMsg) bool { return m.Bounds != nil })
	assert.Equal(t, []int64{1, 3}, view.IDs)
	assert.Equal(t, 4, view.Total)

	h.send(`{"type":"move","bounds":{"north":10,"south":9,"east":10,"west":9}}`)
	view = h.expectView(func(m serverMsg) bool { return m.Bounds != nil && m.Bounds.North == 10 })
	assert.Empty(t, view.IDs)
	assert.Equal(t, 4, view.Total)
}

func TestMapSession_CenterQueuedDuringFit(t *testing.T) {
	h := startSession(t, wsDeps(&stubSource{listings: wsFixtures()}), "all")
	h.expect(frameFitBounds)

	h.send(`{"type":"card_click","id":2}`)
	view := h.expectView(func(m serverMsg) bool { return m.SelectedID != nil })
	assert.Equal(t, int64(2), *view.SelectedID)
	assert.False(t, h.sawType(frameFlyTo), "center must wait for the framing to settle")

	h.send(`{"type":"fit_complete","bounds":{"north":37.2,"south":37.0,"east":-7.6,"west":-8.7}}`)
	fly := h.expect(frameFlyTo)
	require.NotNil(t, fly.Center)
	assert.InDelta(t, 37.1028, fly.Center.Lat, 1e-9)
	assert.InDelta(t, -8.6730, fly.Center.Lng, 1e-9)
	assert.Equal(t, 14.0, fly.Zoom)
}

func TestMapSession_CenterImmediateAfterFit(t *testing.T) {
	h := startSession(t, wsDeps(&stubSource{listings: wsFixtures()}), "all")
	h.expect(frameFitBounds)
	h.send(`{"type":"fit_complete"}`)
	h.expectView(func(m serverMsg) bool { return m.Bounds != nil })

	h.send(`{"type":"card_click","id":3}`)
	fly := h.expect(frameFlyTo)
	assert.InDelta(t, 37.1270, fly.Center.Lat, 1e-9)

	markers := h.expect(frameMarkers)
	for _, m := range markers.Markers {
		assert.Equal(t, m.ID == 3, m.Selected, "marker %d", m.ID)
	}
}

func TestMapSession_FitSettlesWithoutClient(t *testing.T) {
	deps := wsDeps(&stubSource{listings: wsFixtures()}, func(c *mapsync.Config) {
		c.Fit.Duration = 10 * time.Millisecond
	})
	h := startSession(t, deps, "all")

	fit := h.expect(frameFitBounds)
	view := h.expectView(func(m serverMsg) bool { return m.Bounds != nil })
	assert.Equal(t, *fit.Box, *view.Bounds, "the requested box stands in for the realized viewport")
}

func TestMapSession_MarkerClickOpensPopup(t *testing.T) {
	h := startSession(t, wsDeps(&stubSource{listings: wsFixtures()}), "all")
	h.expect(frameView)

	h.send(`{"type":"marker_click","id":1}`)
	view := h.expectView(func(m serverMsg) bool { return m.SelectedID != nil })
	assert.Equal(t, int64(1), *view.SelectedID)

	popup := h.expect(framePopup)
	require.NotNil(t, popup.Listing)
	assert.Equal(t, int64(1), popup.Listing.ID)

	h.send(`{"type":"popup_close"}`)
	h.expect(framePopupClose)
}

func TestMapSession_UnknownListing(t *testing.T) {
	h := startSession(t, wsDeps(&stubSource{listings: wsFixtures()}), "all")
	h.expect(frameView)

	h.send(`{"type":"card_click","id":99}`)
	msg := h.expect(frameError)
	assert.Contains(t, msg.Message, mapsync.ErrUnknownListing.Error())

	h.send(`{"type":"marker_click","id":99}`)
	msg = h.expect(frameError)
	assert.Contains(t, msg.Message, mapsync.ErrUnknownListing.Error())
}

func TestMapSession_BadFrames(t *testing.T) {
	h := startSession(t, wsDeps(&stubSource{listings: wsFixtures()}), "all")
	h.expect(frameView)

	h.send(`not json`)
	assert.Equal(t, "invalid JSON", h.expect(frameError).Message)

	h.send(`{"type":"teleport"}`)
	assert.Contains(t, h.expect(frameError).Message, "teleport")

	h.send(`{"type":"move"}`)
	assert.Contains(t, h.expect(frameError).Message, "bounds")
}

func TestMapSession_NoAccessTokenFallsBack(t *testing.T) {
	deps := wsDeps(&stubSource{listings: wsFixtures()}, func(c *mapsync.Config) { c.AccessToken = "" })
	h := startSession(t, deps, "all")

	fb := h.expect(frameFallback)
	assert.Contains(t, fb.Reason, "token")

	view := h.expect(frameView)
	assert.Equal(t, []int64{1, 2, 3, 4}, view.IDs)
	assert.False(t, h.sawType(frameInit))
	assert.False(t, h.sawType(frameMarkers))

	h.send(`{"type":"marker_click","id":1}`)
	h.expect(frameError)

	h.send(`{"type":"card_click","id":2}`)
	view = h.expectView(func(m serverMsg) bool { return m.SelectedID != nil })
	assert.Equal(t, []int64{1, 2, 3, 4}, view.IDs, "the list stays unfiltered without a map")
	assert.False(t, h.sawType(frameFlyTo))
}

func TestMapSession_EngineErrorFallsBack(t *testing.T) {
	h := startSession(t, wsDeps(&stubSource{listings: wsFixtures()}), "all")
	h.expect(frameFitBounds)
	h.send(`{"type":"fit_complete","bounds":{"north":37.05,"south":37.0,"east":-7.9,"west":-8.0}}`)
	h.expectView(func(m serverMsg) bool { return m.Bounds != nil })

	h.send(`{"type":"engine_error","reason":"webgl context lost"}`)
	assert.Equal(t, "webgl context lost", h.expect(frameFallback).Reason)

	view := h.expect(frameView)
	assert.Equal(t, []int64{1, 2, 3, 4}, view.IDs)
	assert.Nil(t, view.Bounds)
}

func TestMapSession_SourceDownShowsEmptyList(t *testing.T) {
	src := &stubSource{err: errors.New("strapi down")}
	h := startSession(t, wsDeps(src), "all")

	view := h.expect(frameView)
	assert.Empty(t, view.IDs)
	assert.Equal(t, 0, view.Total)
	assert.False(t, h.sawType(frameFitBounds))
}

func TestMapSession_ReloadOnSync(t *testing.T) {
	src := &stubSource{listings: wsFixtures()}
	deps := wsDeps(src)
	h := startSession(t, deps, "all")
	h.expect(frameView)

	require.Eventually(t, func() bool { return deps.Hub.Sessions() == 1 }, waitFor, 10*time.Millisecond)

	src.set([]domain.Listing{wsListing(1, 37.0194, -7.9304), wsListing(9, 37.5, -8.0)})
	deps.Hub.Notify()

	view := h.expectView(func(m serverMsg) bool { return m.Total == 2 })
	assert.Equal(t, []int64{1, 9}, view.IDs)
}

func TestMapSession_ReloadToEmptyClearsSelection(t *testing.T) {
	src := &stubSource{listings: wsFixtures()}
	deps := wsDeps(src)
	h := startSession(t, deps, "all")
	h.expect(frameView)

	h.send(`{"type":"card_click","id":1}`)
	selected := h.expectView(func(m serverMsg) bool { return m.SelectedID != nil })
	assert.Equal(t, int64(1), *selected.SelectedID)

	require.Eventually(t, func() bool { return deps.Hub.Sessions() == 1 }, waitFor, 10*time.Millisecond)

	src.set(nil)
	deps.Hub.Notify()

	view := h.expectView(func(m serverMsg) bool { return m.Total == 0 })
	assert.Nil(t, view.SelectedID)
	assert.Empty(t, view.IDs)
}

func TestMapSession_ReloadFailureKeepsDataset(t *testing.T) {
	src := &stubSource{listings: wsFixtures()}
	deps := wsDeps(src)
	h := startSession(t, deps, "all")
	h.expect(frameView)
	require.Eventually(t, func() bool { return deps.Hub.Sessions() == 1 }, waitFor, 10*time.Millisecond)

	src.mu.Lock()
	src.err = errors.New("content store down")
	src.mu.Unlock()
	before := src.calls.Load()
	deps.Hub.Notify()
	require.Eventually(t, func() bool { return src.calls.Load() > before }, waitFor, 10*time.Millisecond)

	h.send(`{"type":"card_click","id":2}`)
	view := h.expectView(func(m serverMsg) bool { return m.SelectedID != nil })
	assert.Equal(t, 4, view.Total)
	assert.Equal(t, int64(2), *view.SelectedID)
}

func TestMapSession_ReloadCancelledOnDisconnect(t *testing.T) {
	src := &stubSource{listings: wsFixtures()}
	deps := wsDeps(src)
	h := startSession(t, deps, "all")
	h.expect(frameView)
	require.Eventually(t, func() bool { return deps.Hub.Sessions() == 1 }, waitFor, 10*time.Millisecond)

	started := make(chan struct{})
	ended := make(chan error, 1)
	src.hold(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		ended <- ctx.Err()
		return ctx.Err()
	})
	deps.Hub.Notify()

	select {
	case <-started:
	case <-time.After(waitFor):
		t.Fatal("reload did not reach the source")
	}

	h.close()

	select {
	case err := <-ended:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("reload fetch outlived the session")
	}
}

func TestMapSession_UnknownType(t *testing.T) {
	h := startSession(t, wsDeps(&stubSource{listings: wsFixtures()}), "lease")

	msg := h.expect(frameError)
	assert.Contains(t, msg.Message, "lease")

	select {
	case <-h.done:
	case <-time.After(waitFor):
		t.Fatal("session should end on an unknown type")
	}
}

func TestMapSession_UnsubscribesOnClose(t *testing.T) {
	deps := wsDeps(&stubSource{listings: wsFixtures()})
	h := startSession(t, deps, "all")
	h.expect(frameView)
	require.Eventually(t, func() bool { return deps.Hub.Sessions() == 1 }, waitFor, 10*time.Millisecond)

	h.close()
	assert.Equal(t, 0, deps.Hub.Sessions())
}
