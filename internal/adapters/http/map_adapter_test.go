package http

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/casaview/internal/core/domain"
)

// recorder captures frames and runs posted tasks inline.
type recorder struct {
	frames  []any
	sendErr error

	mu     sync.Mutex
	posted []func()
}

func (r *recorder) send(v any) error {
	r.frames = append(r.frames, v)
	return r.sendErr
}

func (r *recorder) post(fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posted = append(r.posted, fn)
	return true
}

func (r *recorder) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.posted)
}

func (r *recorder) runPosted() {
	r.mu.Lock()
	fns := r.posted
	r.posted = nil
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func newRecordedAdapter() (*wsMapAdapter, *recorder) {
	r := &recorder{}
	return newWSMapAdapter(r.send, r.post, "pk.test"), r
}

var testBox = domain.Bounds{North: 37.2, South: 37.0, East: -7.6, West: -8.0}

func TestWSMapAdapter_InitializeReportsSendFailure(t *testing.T) {
	a, r := newRecordedAdapter()
	r.sendErr = errors.New("broken pipe")

	err := a.Initialize(domain.GeoPoint{Lat: 1, Lng: 2}, 10)
	require.Error(t, err)

	require.Len(t, r.frames, 1)
	init := r.frames[0].(initFrame)
	assert.Equal(t, "pk.test", init.AccessToken)
	assert.Equal(t, 10.0, init.Zoom)
}

func TestWSMapAdapter_FitCompletesOnce(t *testing.T) {
	a, r := newRecordedAdapter()

	calls := 0
	a.FitBounds(testBox, domain.FitOptions{Padding: 50, Duration: time.Hour}, func() { calls++ })

	fit := r.frames[0].(fitBoundsFrame)
	assert.Equal(t, testBox, fit.Box)
	assert.Equal(t, 50, fit.Padding)

	realized := domain.Bounds{North: 37.3, South: 36.9, East: -7.5, West: -8.1}
	a.fitCompleted(&realized)
	a.fitCompleted(&realized)
	assert.Equal(t, 1, calls)

	b, ok := a.GetBounds()
	assert.True(t, ok)
	assert.Equal(t, realized, b)
}

func TestWSMapAdapter_FitTimerSettles(t *testing.T) {
	a, r := newRecordedAdapter()

	calls := 0
	a.FitBounds(testBox, domain.FitOptions{Duration: time.Millisecond}, func() { calls++ })

	require.Eventually(t, func() bool { return r.pending() == 1 }, time.Second, time.Millisecond)
	r.runPosted()
	assert.Equal(t, 1, calls)

	_, ok := a.GetBounds()
	assert.False(t, ok, "the timer path has no realized viewport")
}

func TestWSMapAdapter_StaleTimerIgnored(t *testing.T) {
	a, r := newRecordedAdapter()

	first, second := 0, 0
	a.FitBounds(testBox, domain.FitOptions{Duration: time.Hour}, func() { first++ })
	stale := a.fitSeq
	a.FitBounds(testBox, domain.FitOptions{Duration: time.Hour}, func() { second++ })

	a.settleFit(stale, nil)
	assert.Equal(t, 0, first+second)

	a.fitCompleted(nil)
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
	assert.Zero(t, r.pending())
}

func TestWSMapAdapter_MoveAndActivate(t *testing.T) {
	a, _ := newRecordedAdapter()

	assert.False(t, a.activate(1), "no marker layer yet")

	moves := 0
	a.OnMove(func() { moves++ })
	a.moved(testBox)
	assert.Equal(t, 1, moves)

	var activated []int64
	a.RenderMarkers(nil, func(id int64) { activated = append(activated, id) })
	assert.True(t, a.activate(7))
	assert.Equal(t, []int64{7}, activated)
}

func TestWSMapAdapter_RenderMarkersSendsEmptyList(t *testing.T) {
	a, r := newRecordedAdapter()

	a.RenderMarkers(nil, func(int64) {})
	m := r.frames[0].(markersFrame)
	assert.NotNil(t, m.Markers)
	assert.Empty(t, m.Markers)
}

func TestWSMapAdapter_Detach(t *testing.T) {
	a, _ := newRecordedAdapter()

	calls, moves := 0, 0
	a.OnMove(func() { moves++ })
	a.RenderMarkers(nil, func(int64) {})
	a.FitBounds(testBox, domain.FitOptions{Duration: time.Hour}, func() { calls++ })

	a.detach()
	a.fitCompleted(nil)
	a.moved(testBox)

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, moves)
	assert.False(t, a.activate(1))
}

func TestWSMapAdapter_PopupCarriesSummary(t *testing.T) {
	a, r := newRecordedAdapter()

	l := domain.Listing{
		ID: 3, Slug: "casa-azul", Title: "Casa Azul", Price: 250000, Location: "Tavira",
		Latitude: domain.NewCoordinate(37.127), Longitude: domain.NewCoordinate(-7.65),
	}
	a.ShowPopup(l)
	a.ClosePopup()

	require.Len(t, r.frames, 2)
	popup := r.frames[0].(popupFrame)
	assert.Equal(t, "casa-azul", popup.Listing.Slug)
	assert.Equal(t, 37.127, popup.Listing.Position.Lat)
	assert.Equal(t, framePopupClose, r.frames[1].(popupCloseFrame).Type)
}

func TestHub_NilIsSafe(t *testing.T) {
	var h *Hub
	cancel := h.subscribe(func() { t.Fatal("nil hub must not notify") })
	h.Notify()
	cancel()
	assert.Equal(t, 0, h.Sessions())
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"/v1/properties", "/v1/properties", true},
		{"/v1/properties/casa-azul", "/v1/properties/:slug", true},
		{"/v1/properties/", "/v1/properties/:slug", false},
		{"/v1/properties/a/b", "/v1/properties/:slug", false},
		{"/v1/listings/casa", "/v1/properties/:slug", false},
	}
	for _, tt := range tests {
		if got := matchPattern(tt.path, tt.pattern); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
		}
	}
}
