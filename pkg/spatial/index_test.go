package spatial

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/roadmatch/pkg/testutil"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	// Three roads in plain metric coordinates: two horizontal, one vertical.
	ix, err := NewIndex(IndexConfig{
		Logger: testutil.NewLogger(),
		Links: map[int64]orb.LineString{
			1: {{0, 0}, {200, 0}},
			2: {{0, 30}, {200, 30}},
			3: {{100, -100}, {100, 100}},
		},
	})
	require.NoError(t, err)
	return ix
}

func TestNearestWithinOrdering(t *testing.T) {
	ix := newTestIndex(t)

	got := ix.NearestWithin(orb.Point{50, 10}, 50)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].LinkID)
	assert.InDelta(t, 10, got[0].Distance, 1e-9)
	assert.Equal(t, int64(2), got[1].LinkID)
	assert.InDelta(t, 20, got[1].Distance, 1e-9)
	assert.Equal(t, int64(3), got[2].LinkID)
	assert.InDelta(t, 50, got[2].Distance, 1e-9)
}

func TestNearestWithinRadius(t *testing.T) {
	ix := newTestIndex(t)

	got := ix.NearestWithin(orb.Point{50, 10}, 15)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].LinkID)

	assert.Empty(t, ix.NearestWithin(orb.Point{50, 1000}, 20))
}

func TestNearestWithinZeroRadius(t *testing.T) {
	ix := newTestIndex(t)

	// A point exactly on the line still matches with a zero buffer.
	on := ix.NearestWithin(orb.Point{50, 0}, 0)
	require.Len(t, on, 1)
	assert.Equal(t, int64(1), on[0].LinkID)

	assert.Empty(t, ix.NearestWithin(orb.Point{50, 0.5}, 0))
}

func TestNearestWithinTieBreak(t *testing.T) {
	ix, err := NewIndex(IndexConfig{
		Logger: testutil.NewLogger(),
		Links: map[int64]orb.LineString{
			7: {{0, 10}, {100, 10}},
			4: {{0, -10}, {100, -10}},
		},
	})
	require.NoError(t, err)

	got := ix.NearestWithin(orb.Point{50, 0}, 20)
	require.Len(t, got, 2)
	assert.Equal(t, int64(4), got[0].LinkID)
	assert.Equal(t, int64(7), got[1].LinkID)
}

func TestIndexConfigValidate(t *testing.T) {
	_, err := NewIndex(IndexConfig{Logger: testutil.NewLogger()})
	require.Error(t, err)

	_, err = NewIndex(IndexConfig{Links: map[int64]orb.LineString{1: {{0, 0}, {1, 1}}}})
	require.Error(t, err)
}
