package mapsync

import (
	"errors"
	"math"

	"github.com/samirrijal/casaview/internal/core/domain"
	"github.com/samirrijal/casaview/internal/core/ports"
)

// ErrAlreadyFitted is returned by Fit once the initial framing was issued.
var ErrAlreadyFitted = errors.New("initial framing already issued")

const (
	// framePadRatio pads each axis by this share of its own span.
	framePadRatio = 0.1

	// MinFrameSpan is the smallest axis span, in degrees, ever sent as a
	// framing box. A single listing (or a colocated cluster) would otherwise
	// produce a zero-area box.
	MinFrameSpan = 0.01
)

// FitState tracks the one-shot initial framing.
type FitState int

const (
	NotFitted FitState = iota
	Fitting
	Fitted
)

func (s FitState) String() string {
	switch s {
	case NotFitted:
		return "not_fitted"
	case Fitting:
		return "fitting"
	case Fitted:
		return "fitted"
	}
	return "unknown"
}

// ComputeFrame returns the padded box enclosing every positioned listing.
// ok is false when no listing has a valid position.
func ComputeFrame(listings []domain.Listing) (box domain.Bounds, ok bool) {
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLng, maxLng := math.Inf(1), math.Inf(-1)

	for _, l := range listings {
		p, valid := l.Position()
		if !valid {
			continue
		}
		ok = true
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
		minLng = math.Min(minLng, p.Lng)
		maxLng = math.Max(maxLng, p.Lng)
	}
	if !ok {
		return domain.Bounds{}, false
	}

	south, north := padAxis(minLat, maxLat)
	west, east := padAxis(minLng, maxLng)
	return domain.Bounds{
		North: math.Min(north, 90),
		South: math.Max(south, -90),
		East:  east,
		West:  west,
	}, true
}

func padAxis(lo, hi float64) (float64, float64) {
	pad := (hi - lo) * framePadRatio
	lo, hi = lo-pad, hi+pad
	if span := hi - lo; span < MinFrameSpan {
		grow := (MinFrameSpan - span) / 2
		lo, hi = lo-grow, hi+grow
	}
	return lo, hi
}

// BoundsFitter issues exactly one framing command per mount.
type BoundsFitter struct {
	state FitState
	opts  domain.FitOptions
	box   domain.Bounds
	seq   uint64
}

// NewBoundsFitter creates a fitter in the NotFitted state.
func NewBoundsFitter(opts domain.FitOptions) *BoundsFitter {
	return &BoundsFitter{opts: opts}
}

// State returns the current framing state.
func (f *BoundsFitter) State() FitState {
	return f.state
}

// Requested returns the box sent with the framing command.
func (f *BoundsFitter) Requested() (domain.Bounds, bool) {
	return f.box, f.state != NotFitted
}

// Fit frames every positioned listing. It is permitted only from NotFitted.
//
// When no listing carries a position nothing is issued, the state stays
// NotFitted and issued is false. Otherwise the state moves to Fitting and,
// once the adapter signals completion, to Fitted; onFitted then receives the
// realized viewport read back from the adapter, which may differ from the
// requested box after the engine's own clamping.
func (f *BoundsFitter) Fit(adapter ports.MapAdapter, listings []domain.Listing, onFitted func(domain.Bounds)) (issued bool, err error) {
	if f.state != NotFitted {
		return false, ErrAlreadyFitted
	}

	box, ok := ComputeFrame(listings)
	if !ok {
		return false, nil
	}

	f.state = Fitting
	f.box = box
	f.seq++
	seq := f.seq
	adapter.FitBounds(box, f.opts, func() {
		if f.state != Fitting || f.seq != seq {
			return
		}
		f.state = Fitted

		realized, ok := adapter.GetBounds()
		if !ok {
			realized = box
		}
		if onFitted != nil {
			onFitted(realized)
		}
	})
	return true, nil
}

// Reset returns the fitter to NotFitted for a fresh mount. A completion
// arriving after Reset is ignored.
func (f *BoundsFitter) Reset() {
	f.state = NotFitted
	f.box = domain.Bounds{}
	f.seq++
}
