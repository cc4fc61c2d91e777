package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/samirrijal/casaview/internal/core/domain"
	"github.com/samirrijal/casaview/internal/core/mapsync"
	"github.com/samirrijal/casaview/internal/pkg/metrics"
)

const (
	wsPingInterval   = 30 * time.Second
	wsFetchTimeout   = 15 * time.Second
	wsMaxFrameLength = 4096
)

// clientFrame is any message a map client sends. Only the fields relevant
// to Type are set:
//
//	{"type":"move","bounds":{...}}
//	{"type":"fit_complete","bounds":{...}}
//	{"type":"marker_click","id":42}
//	{"type":"card_click","id":42}
//	{"type":"popup_close"}
//	{"type":"engine_error","reason":"webgl context lost"}
type clientFrame struct {
	Type   string         `json:"type"`
	Bounds *domain.Bounds `json:"bounds,omitempty"`
	ID     int64          `json:"id,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// frameConn is the part of a websocket connection a map session uses.
type frameConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
}

// MapSocketHandler returns a handler that runs one map session per
// connection: ?type=buy|rent|all selects the listings.
func MapSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		logger := slog.Default().With(
			"session_id", uuid.NewString(),
			"remote_addr", c.RemoteAddr().String(),
		)
		logger.Info("map session opened")
		serveMapSession(c, deps, c.Query("type"), logger)
		logger.Info("map session closed")
	}
}

// serveMapSession runs a map session over conn until the client goes away.
func serveMapSession(conn frameConn, deps *Dependencies, rawType string, logger *slog.Logger) {
	loop := newMapLoop(conn, logger)

	t, ok := domain.ParseListingType(rawType)
	if !ok {
		_ = loop.send(errorFrame{Type: frameError, Message: "unknown listing type " + rawType})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ms := &mapSession{
		ctx:    ctx,
		deps:   deps,
		loop:   loop,
		logger: logger,
		ltype:  t,
	}
	ms.adapter = newWSMapAdapter(loop.send, loop.post, deps.Map.AccessToken)

	// A failing source leaves the list empty rather than closing the session.
	initial, err := ms.fetch()
	if err != nil {
		ms.logger.Warn("loading listings for map session failed", "error", err)
	}
	ms.session = mapsync.NewSession(deps.Map, ms.adapter, initial, logger)
	ms.session.OnViewChange(ms.sendView)

	if err := ms.session.Mount(); err != nil {
		reason, _ := ms.session.Fallback()
		_ = loop.send(fallbackFrame{Type: frameFallback, Reason: reason})
		ms.sendView(ms.session.View())
	}

	unsubscribe := deps.Hub.subscribe(ms.reload)
	defer unsubscribe()

	loop.run(ms.handle)
	cancel()

	ms.adapter.detach()
	ms.session.Unmount()
}

// mapSession ties a mapsync.Session to its connection. All fields are owned
// by the loop goroutine except ctx, deps and ltype, which are read-only. ctx
// is cancelled once the loop stops.
type mapSession struct {
	ctx     context.Context
	deps    *Dependencies
	loop    *mapLoop
	logger  *slog.Logger
	ltype   domain.ListingType
	adapter *wsMapAdapter
	session *mapsync.Session
}

// fetch loads the session's listings. An empty result is a valid dataset.
func (ms *mapSession) fetch() ([]domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ms.ctx, wsFetchTimeout)
	defer cancel()
	return ms.deps.Listings.ListByType(ctx, ms.ltype)
}

// reload refetches off the loop and swaps the dataset in on it. A failed
// fetch keeps the current dataset.
func (ms *mapSession) reload() {
	go func() {
		listings, err := ms.fetch()
		if err != nil {
			if ms.ctx.Err() == nil {
				ms.logger.Warn("reloading listings for map session failed", "error", err)
			}
			return
		}
		ms.loop.post(func() { ms.session.SetListings(listings) })
	}()
}

func (ms *mapSession) sendView(v mapsync.View) {
	ids := make([]int64, len(v.Visible))
	for i, l := range v.Visible {
		ids[i] = l.ID
	}
	_ = ms.loop.send(viewFrame{
		Type:       frameView,
		IDs:        ids,
		Total:      v.Total,
		SelectedID: v.SelectedID,
		Bounds:     v.Bounds,
	})
}

func (ms *mapSession) sendError(msg string) {
	_ = ms.loop.send(errorFrame{Type: frameError, Message: msg})
}

func (ms *mapSession) handle(raw []byte) {
	var f clientFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		ms.sendError("invalid JSON")
		return
	}

	switch f.Type {
	case "move":
		if f.Bounds == nil {
			ms.sendError("move requires bounds")
			return
		}
		ms.adapter.moved(*f.Bounds)

	case "fit_complete":
		ms.adapter.fitCompleted(f.Bounds)

	case "marker_click":
		if !ms.adapter.activate(f.ID) {
			ms.sendError("map is not available")
			return
		}
		if _, ok := ms.session.Listing(f.ID); !ok {
			ms.sendError(mapsync.ErrUnknownListing.Error())
		}

	case "card_click":
		if _, err := ms.session.SelectFromList(f.ID); err != nil {
			ms.sendError(err.Error())
		}

	case "popup_close":
		ms.session.ClosePopup()

	case "engine_error":
		if _, already := ms.session.Fallback(); already {
			return
		}
		reason := f.Reason
		if reason == "" {
			reason = "map engine error"
		}
		_ = ms.loop.send(fallbackFrame{Type: frameFallback, Reason: reason})
		ms.adapter.detach()
		ms.session.EngineFailed(reason)

	default:
		ms.sendError("unknown message type: " + f.Type)
	}
}

// mapLoop serializes everything that touches a session: client frames,
// timer callbacks and reloads all run on the goroutine that calls run.
type mapLoop struct {
	conn      frameConn
	logger    *slog.Logger
	tasks     chan func()
	done      chan struct{}
	err       error
	pingEvery time.Duration
}

func newMapLoop(conn frameConn, logger *slog.Logger) *mapLoop {
	return &mapLoop{
		conn:      conn,
		logger:    logger,
		tasks:     make(chan func()),
		done:      make(chan struct{}),
		pingEvery: wsPingInterval,
	}
}

// send writes one frame. Only the loop goroutine calls it. Once a write has
// failed every later send returns the same error.
func (l *mapLoop) send(v any) error {
	if l.err != nil {
		return l.err
	}
	data, err := json.Marshal(v)
	if err != nil {
		l.logger.Error("encoding ws frame failed", "error", err)
		return err
	}
	if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		l.err = err
		return err
	}
	return nil
}

// post schedules fn on the loop. It reports false once the loop has stopped.
func (l *mapLoop) post(fn func()) bool {
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// run processes frames and tasks until the client disconnects or a write fails.
func (l *mapLoop) run(handle func(raw []byte)) {
	defer close(l.done)

	inbox := make(chan []byte)
	readErr := make(chan error, 1)
	go l.read(inbox, readErr)

	ticker := time.NewTicker(l.pingEvery)
	defer ticker.Stop()

	for l.err == nil {
		select {
		case raw := <-inbox:
			handle(raw)
		case fn := <-l.tasks:
			fn()
		case <-ticker.C:
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				l.err = err
			}
		case err := <-readErr:
			l.logger.Debug("ws read ended", "error", err)
			return
		}
	}
	l.logger.Debug("ws write failed", "error", l.err)
}

func (l *mapLoop) read(inbox chan<- []byte, readErr chan<- error) {
	for {
		_, msg, err := l.conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		if len(msg) > wsMaxFrameLength {
			msg = []byte(`{"type":"oversized"}`)
		}
		select {
		case inbox <- msg:
		case <-l.done:
			return
		}
	}
}
