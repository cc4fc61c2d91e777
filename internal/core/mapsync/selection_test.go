package mapsync_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/casaview/internal/core/domain"
	"github.com/samirrijal/casaview/internal/core/mapsync"
)

type selectionHarness struct {
	state   mapsync.FitState
	centers []domain.GeoPoint
	changes int
	coord   *mapsync.SelectionCoordinator
}

func newSelectionHarness(listings ...domain.Listing) *selectionHarness {
	h := &selectionHarness{}
	h.coord = mapsync.NewSelectionCoordinator(
		func() mapsync.FitState { return h.state },
		func(p domain.GeoPoint) { h.centers = append(h.centers, p) },
	)
	h.coord.SetDataset(listings)
	h.coord.Subscribe(func(int64, bool) { h.changes++ })
	return h
}

func TestSelection_ConvergesFromEitherOrigin(t *testing.T) {
	a := listing(1, 5, 5)

	h1 := newSelectionHarness(a)
	_, err := h1.coord.SelectFromMarker(a)
	require.NoError(t, err)
	_, err = h1.coord.SelectFromList(a)
	require.NoError(t, err)

	h2 := newSelectionHarness(a)
	_, err = h2.coord.SelectFromList(a)
	require.NoError(t, err)
	_, err = h2.coord.SelectFromMarker(a)
	require.NoError(t, err)

	id1, ok1 := h1.coord.Selected()
	id2, ok2 := h2.coord.Selected()
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, h1.changes)
	assert.Equal(t, 1, h2.changes)
}

func TestSelection_ReactivationIsNoOp(t *testing.T) {
	a := listing(1, 5, 5)
	h := newSelectionHarness(a)

	changed, err := h.coord.SelectFromList(a)
	require.NoError(t, err)
	assert.True(t, changed)

	for i := 0; i < 3; i++ {
		changed, err = h.coord.SelectFromList(a)
		require.NoError(t, err)
		assert.False(t, changed)
	}

	assert.Equal(t, 1, h.changes)
	assert.Len(t, h.centers, 1)
}

func TestSelection_UnknownListing(t *testing.T) {
	h := newSelectionHarness(listing(1, 5, 5))

	_, err := h.coord.SelectFromList(listing(99, 0, 0))
	assert.ErrorIs(t, err, mapsync.ErrUnknownListing)

	_, ok := h.coord.Selected()
	assert.False(t, ok)
	assert.Zero(t, h.changes)
}

func TestSelection_CentersImmediatelyUnlessFitting(t *testing.T) {
	a, b := listing(1, 5, 5), listing(2, 6, 6)

	for _, state := range []mapsync.FitState{mapsync.NotFitted, mapsync.Fitted} {
		t.Run(state.String(), func(t *testing.T) {
			h := newSelectionHarness(a, b)
			h.state = state

			_, err := h.coord.SelectFromMarker(a)
			require.NoError(t, err)
			_, err = h.coord.SelectFromList(b)
			require.NoError(t, err)

			assert.Equal(t, []domain.GeoPoint{{Lat: 5, Lng: 5}, {Lat: 6, Lng: 6}}, h.centers)
			_, pending := h.coord.Pending()
			assert.False(t, pending)
		})
	}
}

func TestSelection_QueuesWhileFittingLatestWins(t *testing.T) {
	a, b := listing(1, 5, 5), listing(2, 6, 6)
	h := newSelectionHarness(a, b)
	h.state = mapsync.Fitting

	_, err := h.coord.SelectFromList(a)
	require.NoError(t, err)
	_, err = h.coord.SelectFromMarker(b)
	require.NoError(t, err)
	assert.Empty(t, h.centers)

	h.state = mapsync.Fitted
	h.coord.FlushPending()
	h.coord.FlushPending()

	assert.Equal(t, []domain.GeoPoint{{Lat: 6, Lng: 6}}, h.centers)
}

func TestSelection_UnplacedDropsQueuedTarget(t *testing.T) {
	a, u := listing(1, 5, 5), unplaced(2)
	h := newSelectionHarness(a, u)
	h.state = mapsync.Fitting

	_, err := h.coord.SelectFromList(a)
	require.NoError(t, err)
	_, err = h.coord.SelectFromList(u)
	require.NoError(t, err)

	h.coord.FlushPending()
	assert.Empty(t, h.centers)

	id, ok := h.coord.Selected()
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)
}

func TestSelection_DatasetChangeClearsMissing(t *testing.T) {
	a, b := listing(1, 5, 5), listing(2, 6, 6)
	h := newSelectionHarness(a, b)

	_, err := h.coord.SelectFromList(a)
	require.NoError(t, err)

	assert.False(t, h.coord.SetDataset([]domain.Listing{a}))
	_, ok := h.coord.Selected()
	assert.True(t, ok)

	assert.True(t, h.coord.SetDataset([]domain.Listing{b}))
	_, ok = h.coord.Selected()
	assert.False(t, ok)
	assert.Equal(t, 2, h.changes)
}
