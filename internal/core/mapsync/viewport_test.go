package mapsync_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/casaview/internal/core/domain"
	"github.com/samirrijal/casaview/internal/core/mapsync"
)

func TestViewportTracker_PublishesEveryChange(t *testing.T) {
	tracker := mapsync.NewViewportTracker()
	require.Nil(t, tracker.Bounds())

	var seen []domain.Bounds
	tracker.Subscribe(func(b *domain.Bounds) { seen = append(seen, *b) })

	a := domain.Bounds{North: 10, South: 0, East: 10, West: 0}
	b := domain.Bounds{North: 11, South: 1, East: 11, West: 1}
	tracker.Publish(a)
	tracker.Publish(a)
	tracker.Publish(b)

	assert.Equal(t, []domain.Bounds{a, a, b}, seen)
	assert.Equal(t, b, *tracker.Bounds())
}

func TestViewportTracker_NormalizesUnwrappedLongitudes(t *testing.T) {
	tracker := mapsync.NewViewportTracker()
	tracker.Publish(domain.Bounds{North: 10, South: 0, East: 190, West: 170})

	got := tracker.Bounds()
	require.NotNil(t, got)
	assert.True(t, got.Wraps())
	assert.InDelta(t, -170, got.East, 1e-9)
	assert.InDelta(t, 170, got.West, 1e-9)
}

func TestViewportTracker_DropsInvalidBounds(t *testing.T) {
	tracker := mapsync.NewViewportTracker()
	calls := 0
	tracker.Subscribe(func(*domain.Bounds) { calls++ })

	tracker.Publish(domain.Bounds{North: 0, South: 10, East: 10, West: 0})
	tracker.Publish(domain.Bounds{North: math.NaN(), South: 0, East: 10, West: 0})

	assert.Nil(t, tracker.Bounds())
	assert.Zero(t, calls)
}

func TestViewportTracker_RefreshReadsAdapter(t *testing.T) {
	tracker := mapsync.NewViewportTracker()
	adapter := &fakeAdapter{}

	tracker.Refresh(adapter)
	assert.Nil(t, tracker.Bounds())

	adapter.bounds, adapter.hasBounds = domain.Bounds{North: 5, South: -5, East: 5, West: -5}, true
	tracker.Refresh(adapter)
	require.NotNil(t, tracker.Bounds())
	assert.Equal(t, adapter.bounds, *tracker.Bounds())
}

func TestViewportTracker_BoundsIsACopy(t *testing.T) {
	tracker := mapsync.NewViewportTracker()
	tracker.Publish(domain.Bounds{North: 5, South: -5, East: 5, West: -5})

	b := tracker.Bounds()
	b.North = 80
	assert.InDelta(t, 5, tracker.Bounds().North, 1e-9)

	tracker.Reset()
	assert.Nil(t, tracker.Bounds())
}
