package matcher

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/roadmatch/pkg/network"
	"github.com/malbeclabs/roadmatch/pkg/routing"
	"github.com/malbeclabs/roadmatch/pkg/spatial"
	"github.com/malbeclabs/roadmatch/pkg/testutil"
	"github.com/malbeclabs/roadmatch/pkg/trace"
)

// The test corridor runs east along the equator: nodes 1..7 at longitude
// (i-1)/1000 degrees, about 111 m apart, joined by links 1..6. An optional
// spur (link 20) leaves node 4 northward to node 8.
const lonStep = 0.001

func corridorLinks(t *testing.T) []network.Link {
	t.Helper()
	links := make([]network.Link, 0, 6)
	for i := 1; i <= 6; i++ {
		a := orb.Point{float64(i-1) * lonStep, 0}
		b := orb.Point{float64(i) * lonStep, 0}
		l, err := network.NewLinkWGS84(int64(i), int64(i), int64(i+1), network.DirectionBoth, orb.LineString{a, b})
		require.NoError(t, err)
		links = append(links, l)
	}
	return links
}

func spurLink(t *testing.T) network.Link {
	t.Helper()
	l, err := network.NewLinkWGS84(20, 4, 8, network.DirectionBoth,
		orb.LineString{{3 * lonStep, 0}, {3 * lonStep, 0.0012}})
	require.NoError(t, err)
	return l
}

type harness struct {
	net    *network.Network
	index  *spatial.Index
	router routing.Router
}

func newHarness(t *testing.T, links []network.Link, par Parameters) *harness {
	t.Helper()
	log := testutil.NewLogger()

	net, err := network.New(network.Config{
		Logger:       log,
		Links:        links,
		CostDiscount: par.MapMatching.CostDiscount,
	})
	require.NoError(t, err)

	geoms := map[int64]orb.LineString{}
	for _, id := range net.LinkIDs() {
		g, err := net.LinkGeometry(id)
		require.NoError(t, err)
		geoms[id] = g
	}
	index, err := spatial.NewIndex(spatial.IndexConfig{Logger: log, Links: geoms})
	require.NoError(t, err)

	engine, err := routing.NewEngine(routing.EngineConfig{Logger: log, Network: net})
	require.NoError(t, err)
	require.NoError(t, engine.Prepare())

	return &harness{net: net, index: index, router: engine}
}

func (h *harness) driver(t *testing.T, par Parameters, ignoreErrors bool) *Driver {
	t.Helper()
	d, err := NewDriver(DriverConfig{
		Logger:       testutil.NewLogger(),
		Network:      h.net,
		Index:        h.index,
		Router:       h.router,
		Params:       par,
		IgnoreErrors: ignoreErrors,
	})
	require.NoError(t, err)
	return d
}

var traceStart = time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

// pingAt builds a raw ping n steps of 10 s into the trace.
func pingAt(traceID int64, n int, lon, lat float64) trace.RawPing {
	return trace.RawPing{
		TraceID:   traceID,
		Timestamp: traceStart.Add(time.Duration(n*10) * time.Second),
		Lon:       lon,
		Lat:       lat,
	}
}

// corridorPings lays n pings along the corridor slightly north of the
// centerline, within the default buffer.
func corridorPings(traceID int64, n int) []trace.RawPing {
	pings := make([]trace.RawPing, 0, n)
	for k := 0; k < n; k++ {
		pings = append(pings, pingAt(traceID, k, 0.0002+float64(k)*0.0003, 0.00005))
	}
	return pings
}

// singleLinkPings lays pings along the single-link fixture at the given
// longitudes, slightly north of the line.
func singleLinkPings(traceID int64, lons []float64) []trace.RawPing {
	pings := make([]trace.RawPing, 0, len(lons))
	for k, lon := range lons {
		pings = append(pings, pingAt(traceID, k, lon, 0.00005))
	}
	return pings
}

// spurTripPings follows the corridor, detours up the spur and back, then
// finishes the corridor: 8 + 5 + 6 pings.
func spurTripPings(traceID int64) []trace.RawPing {
	var pings []trace.RawPing
	n := 0
	add := func(lon, lat float64) {
		pings = append(pings, pingAt(traceID, n, lon, lat))
		n++
	}

	for k := 0; k < 8; k++ {
		add(0.0002+float64(k)*0.0004, 0.00005)
	}
	for _, lat := range []float64{0.0004, 0.0009, 0.0007, 0.0004, 0.0001} {
		add(0.00305, lat)
	}
	for k := 0; k < 6; k++ {
		add(0.0034+float64(k)*0.0004, 0.00005)
	}
	return pings
}
