package network

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/roadmatch/pkg/testutil"
)

func testLinks(t *testing.T) []Link {
	t.Helper()
	coords := []orb.LineString{
		{{0, 0}, {0.001, 0}},
		{{0.001, 0}, {0.002, 0}},
		{{0.002, 0}, {0.002, 0.001}},
	}
	links := make([]Link, 0, len(coords))
	for i, c := range coords {
		l, err := NewLinkWGS84(int64(i+1), int64(i+1), int64(i+2), DirectionBoth, c)
		require.NoError(t, err)
		links = append(links, l)
	}
	return links
}

func newTestNetwork(t *testing.T) *Network {
	t.Helper()
	n, err := New(Config{
		Logger:       testutil.NewLogger(),
		Links:        testLinks(t),
		CostDiscount: 0.1,
	})
	require.NoError(t, err)
	return n
}

func TestConfigValidate(t *testing.T) {
	links := testLinks(t)

	_, err := New(Config{Links: links, CostDiscount: 0.1})
	require.Error(t, err)

	_, err = New(Config{Logger: testutil.NewLogger(), CostDiscount: 0.1})
	require.Error(t, err)

	_, err = New(Config{Logger: testutil.NewLogger(), Links: links, CostDiscount: 0})
	require.Error(t, err)

	_, err = New(Config{Logger: testutil.NewLogger(), Links: links, CostDiscount: 1.5})
	require.Error(t, err)
}

func TestDiscountAndResetRestoresBaseline(t *testing.T) {
	n := newTestNetwork(t)

	baseline := map[int64]float64{}
	for _, id := range n.LinkIDs() {
		baseline[id] = n.Cost(id)
	}

	n.DiscountGraph([]int64{1, 3})
	assert.Equal(t, baseline[1]*0.1, n.Cost(1))
	assert.Equal(t, baseline[2], n.Cost(2))
	assert.Equal(t, baseline[3]*0.1, n.Cost(3))

	// Repeated calls are cumulative.
	n.DiscountGraph([]int64{1})
	assert.Equal(t, baseline[1]*0.1*0.1, n.Cost(1))

	n.ResetGraph()
	for id, want := range baseline {
		assert.Equal(t, want, n.Cost(id), "link %d", id)
	}
}

func TestCloneIsolatesCostScratch(t *testing.T) {
	n := newTestNetwork(t)
	clone := n.Clone()

	n.DiscountGraph([]int64{1})
	assert.NotEqual(t, n.Cost(1), clone.Cost(1))

	clone.DiscountGraph([]int64{2})
	n.ResetGraph()
	assert.InDelta(t, n.Cost(2), clone.Cost(2)*10, 1e-9)
}

func TestSpeedField(t *testing.T) {
	links := testLinks(t)
	links[0].Attributes = map[string]float64{"speed_limit": 16.7}

	n, err := New(Config{Logger: testutil.NewLogger(), Links: links, CostDiscount: 0.1})
	require.NoError(t, err)

	require.ErrorIs(t, n.SetSpeedField("free_flow_speed"), ErrUnknownSpeedField)
	assert.False(t, n.HasSpeed())

	require.NoError(t, n.SetSpeedField("speed_limit"))
	assert.True(t, n.HasSpeed())

	cap1, ok := n.SpeedCap(1)
	assert.True(t, ok)
	assert.Equal(t, 16.7, cap1)

	_, ok = n.SpeedCap(2)
	assert.False(t, ok)
}

func TestReadAccessors(t *testing.T) {
	n := newTestNetwork(t)

	a, b, err := n.LinkEndpoints(2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), a)
	assert.Equal(t, int64(3), b)

	bearing, err := n.LinkBearing(1)
	require.NoError(t, err)
	assert.InDelta(t, 90, bearing, 1e-6)

	geom, err := n.LinkGeometry(3)
	require.NoError(t, err)
	assert.Len(t, geom, 2)

	_, _, err = n.LinkEndpoints(99)
	require.ErrorIs(t, err, ErrUnknownLink)
	_, err = n.LinkBearing(99)
	require.ErrorIs(t, err, ErrUnknownLink)
	_, err = n.LinkGeometry(99)
	require.ErrorIs(t, err, ErrUnknownLink)
}

func TestParseGeoJSON(t *testing.T) {
	data := []byte(`{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"properties": {"link_id": 10, "a_node": 1, "b_node": 2, "direction": 1, "speed_limit": 13.9},
				"geometry": {"type": "LineString", "coordinates": [[0, 0], [0.001, 0]]}
			},
			{
				"type": "Feature",
				"properties": {"link_id": 11, "a_node": 2, "b_node": 3},
				"geometry": {"type": "LineString", "coordinates": [[0.001, 0], [0.002, 0.001]]}
			}
		]
	}`)

	links, err := ParseGeoJSON(data)
	require.NoError(t, err)
	require.Len(t, links, 2)

	assert.Equal(t, int64(10), links[0].ID)
	assert.Equal(t, DirectionForward, links[0].Direction)
	assert.Equal(t, 13.9, links[0].Attributes["speed_limit"])
	assert.Greater(t, links[0].Length, 100.0)

	assert.Equal(t, DirectionBoth, links[1].Direction)
	assert.Nil(t, links[1].Attributes)
}

func TestParseGeoJSONErrors(t *testing.T) {
	_, err := ParseGeoJSON([]byte(`not json`))
	require.Error(t, err)

	missing := []byte(`{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"properties": {"a_node": 1, "b_node": 2},
			"geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]}
		}]
	}`)
	_, err = ParseGeoJSON(missing)
	require.ErrorContains(t, err, "link_id")

	point := []byte(`{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"properties": {"link_id": 1, "a_node": 1, "b_node": 2},
			"geometry": {"type": "Point", "coordinates": [0, 0]}
		}]
	}`)
	_, err = ParseGeoJSON(point)
	require.ErrorContains(t, err, "LineString")
}
