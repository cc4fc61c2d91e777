package http

import (
	"time"

	"github.com/samirrijal/casaview/internal/core/domain"
	"github.com/samirrijal/casaview/internal/core/ports"
)

// fitGrace is added to the animation duration before a framing that the
// client never confirmed is treated as settled.
const fitGrace = 100 * time.Millisecond

// Server → client frame types.
const (
	frameInit       = "init"
	frameFallback   = "fallback"
	frameFitBounds  = "fit_bounds"
	frameFlyTo      = "fly_to"
	frameMarkers    = "markers"
	framePopup      = "popup"
	framePopupClose = "popup_close"
	frameView       = "view"
	frameError      = "error"
)

type initFrame struct {
	Type        string          `json:"type"`
	Center      domain.GeoPoint `json:"center"`
	Zoom        float64         `json:"zoom"`
	AccessToken string          `json:"access_token"`
}

type fallbackFrame struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type fitBoundsFrame struct {
	Type       string        `json:"type"`
	Box        domain.Bounds `json:"box"`
	Padding    int           `json:"padding"`
	DurationMS int64         `json:"duration_ms"`
}

type flyToFrame struct {
	Type       string          `json:"type"`
	Center     domain.GeoPoint `json:"center"`
	Zoom       float64         `json:"zoom"`
	DurationMS int64           `json:"duration_ms"`
}

type markersFrame struct {
	Type    string          `json:"type"`
	Markers []domain.Marker `json:"markers"`
}

type popupFrame struct {
	Type    string         `json:"type"`
	Listing domain.Summary `json:"listing"`
}

type popupCloseFrame struct {
	Type string `json:"type"`
}

type viewFrame struct {
	Type       string         `json:"type"`
	IDs        []int64        `json:"ids"`
	Total      int            `json:"total"`
	SelectedID *int64         `json:"selected_id"`
	Bounds     *domain.Bounds `json:"bounds"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// wsMapAdapter drives a browser-side map engine over a websocket. Commands
// become server frames; camera and marker events arrive as client frames and
// are fed in through moved, fitCompleted and activate. Every method runs on
// the session loop goroutine.
type wsMapAdapter struct {
	send        func(v any) error
	post        func(fn func()) bool
	accessToken string

	bounds     domain.Bounds
	hasBounds  bool
	onMove     func()
	onActivate func(id int64)

	fitSeq   uint64
	fitDone  func()
	fitTimer *time.Timer
}

var _ ports.MapAdapter = (*wsMapAdapter)(nil)

func newWSMapAdapter(send func(v any) error, post func(fn func()) bool, accessToken string) *wsMapAdapter {
	return &wsMapAdapter{send: send, post: post, accessToken: accessToken}
}

func (a *wsMapAdapter) Initialize(center domain.GeoPoint, zoom float64) error {
	return a.send(initFrame{Type: frameInit, Center: center, Zoom: zoom, AccessToken: a.accessToken})
}

func (a *wsMapAdapter) OnMove(fn func()) {
	a.onMove = fn
}

func (a *wsMapAdapter) GetBounds() (domain.Bounds, bool) {
	return a.bounds, a.hasBounds
}

// FitBounds sends the framing command. done fires on the client's
// fit_complete, or after the animation duration plus fitGrace, whichever
// comes first.
func (a *wsMapAdapter) FitBounds(box domain.Bounds, opts domain.FitOptions, done func()) {
	a.stopFitTimer()
	a.fitSeq++
	seq := a.fitSeq
	a.fitDone = done

	_ = a.send(fitBoundsFrame{
		Type:       frameFitBounds,
		Box:        box,
		Padding:    opts.Padding,
		DurationMS: opts.Duration.Milliseconds(),
	})

	a.fitTimer = time.AfterFunc(opts.Duration+fitGrace, func() {
		a.post(func() { a.settleFit(seq, nil) })
	})
}

func (a *wsMapAdapter) FlyTo(center domain.GeoPoint, zoom float64, duration time.Duration) {
	_ = a.send(flyToFrame{Type: frameFlyTo, Center: center, Zoom: zoom, DurationMS: duration.Milliseconds()})
}

func (a *wsMapAdapter) RenderMarkers(markers []domain.Marker, onActivate func(id int64)) {
	a.onActivate = onActivate
	if markers == nil {
		markers = []domain.Marker{}
	}
	_ = a.send(markersFrame{Type: frameMarkers, Markers: markers})
}

func (a *wsMapAdapter) ShowPopup(anchor domain.Listing) {
	_ = a.send(popupFrame{Type: framePopup, Listing: anchor.Summarize()})
}

func (a *wsMapAdapter) ClosePopup() {
	_ = a.send(popupCloseFrame{Type: framePopupClose})
}

// moved records a camera report from the client.
func (a *wsMapAdapter) moved(b domain.Bounds) {
	a.bounds, a.hasBounds = b, true
	if a.onMove != nil {
		a.onMove()
	}
}

// fitCompleted settles the framing in flight, if any. realized may be nil
// when the client did not report its viewport.
func (a *wsMapAdapter) fitCompleted(realized *domain.Bounds) {
	a.settleFit(a.fitSeq, realized)
}

// activate forwards a marker click. It reports false when no marker layer
// has been rendered.
func (a *wsMapAdapter) activate(id int64) bool {
	if a.onActivate == nil {
		return false
	}
	a.onActivate(id)
	return true
}

// detach drops every callback and stops the fit timer.
func (a *wsMapAdapter) detach() {
	a.stopFitTimer()
	a.fitSeq++
	a.fitDone = nil
	a.onMove = nil
	a.onActivate = nil
}

func (a *wsMapAdapter) settleFit(seq uint64, realized *domain.Bounds) {
	if seq != a.fitSeq || a.fitDone == nil {
		return
	}
	if realized != nil {
		a.bounds, a.hasBounds = *realized, true
	}
	a.stopFitTimer()
	done := a.fitDone
	a.fitDone = nil
	done()
}

func (a *wsMapAdapter) stopFitTimer() {
	if a.fitTimer != nil {
		a.fitTimer.Stop()
		a.fitTimer = nil
	}
}
