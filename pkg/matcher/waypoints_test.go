package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/roadmatch/pkg/trace"
)

// newCandidateSet builds a synthetic set: one ping per stop node entry,
// ids 1..n, ten seconds apart.
func newCandidateSet(stops []int64) *candidateSet {
	start := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	pings := make([]trace.Ping, len(stops))
	cs := &candidateSet{}
	for i, stop := range stops {
		pings[i] = trace.Ping{ID: i + 1, Timestamp: start.Add(time.Duration(i*10) * time.Second)}
		cs.pings = append(cs.pings, pingCandidate{
			ping:     &pings[i],
			stopNode: stop,
			covered:  true,
		})
	}
	cs.pings[0].flag = flagEndpoint
	cs.pings[len(cs.pings)-1].flag = flagEndpoint
	return cs
}

func (cs *candidateSet) uncover(ids ...int) {
	for i := range cs.pings {
		for _, id := range ids {
			if cs.pings[i].ping.ID == id {
				cs.pings[i].covered = false
			}
		}
	}
}

func TestAddWaypointPicksModeOfWorstRun(t *testing.T) {
	cs := newCandidateSet([]int64{1, 2, 2, 3, 4, 3, 3, 4, 5, 6})
	cs.uncover(4, 5, 6, 7, 8)

	require.True(t, cs.addWaypoint())

	// Mode of the run's stop nodes is 3 (three pings); earliest such ping
	// is id 4.
	var trial *pingCandidate
	for i := range cs.pings {
		if cs.pings[i].flag == flagTrial {
			trial = &cs.pings[i]
		}
	}
	require.NotNil(t, trial)
	assert.Equal(t, 4, trial.ping.ID)
	assert.Equal(t, int64(3), trial.stopNode)
}

func TestAddWaypointPrefersLongestRun(t *testing.T) {
	cs := newCandidateSet([]int64{1, 2, 2, 3, 4, 4, 5, 5, 5, 6})
	// Two runs: ids 2-3 (10 s) and ids 6-9 (30 s). The longer run wins.
	cs.uncover(2, 3)
	cs.uncover(6, 7, 8, 9)

	require.True(t, cs.addWaypoint())

	var trial *pingCandidate
	for i := range cs.pings {
		if cs.pings[i].flag == flagTrial {
			trial = &cs.pings[i]
		}
	}
	require.NotNil(t, trial)
	assert.Equal(t, int64(5), trial.stopNode)
	assert.Equal(t, 7, trial.ping.ID)
}

func TestAddWaypointExcludesUsedStopNodes(t *testing.T) {
	// All uncovered pings share the endpoint's stop node: nothing to add.
	cs := newCandidateSet([]int64{1, 1, 1, 1, 6})
	cs.uncover(2, 3, 4)

	assert.False(t, cs.addWaypoint())
}

func TestAddWaypointModeTieBreaksToLowerNode(t *testing.T) {
	cs := newCandidateSet([]int64{1, 5, 5, 3, 3, 6})
	cs.uncover(2, 3, 4, 5)

	require.True(t, cs.addWaypoint())
	var trial *pingCandidate
	for i := range cs.pings {
		if cs.pings[i].flag == flagTrial {
			trial = &cs.pings[i]
		}
	}
	require.NotNil(t, trial)
	assert.Equal(t, int64(3), trial.stopNode)
	assert.Equal(t, 4, trial.ping.ID)
}

func TestDemotedPingIsNotReselected(t *testing.T) {
	cs := newCandidateSet([]int64{1, 3, 3, 3, 6})
	cs.uncover(2, 3, 4)

	require.True(t, cs.addWaypoint())
	cs.demoteTrial()

	// The next insertion moves past the demoted ping to the following one
	// mapping to the same stop node.
	require.True(t, cs.addWaypoint())
	var trial *pingCandidate
	for i := range cs.pings {
		if cs.pings[i].flag == flagTrial {
			trial = &cs.pings[i]
		}
	}
	require.NotNil(t, trial)
	assert.Equal(t, 3, trial.ping.ID)
	for i := range cs.pings {
		if cs.pings[i].ping.ID == 2 {
			assert.Equal(t, flagDemoted, cs.pings[i].flag)
		}
	}
}

func TestFixTrial(t *testing.T) {
	cs := newCandidateSet([]int64{1, 3, 3, 3, 6})
	cs.uncover(2, 3, 4)

	require.True(t, cs.addWaypoint())
	cs.fixTrial()

	nodes := cs.activeWaypointNodes()
	assert.Equal(t, []int64{1, 3, 6}, nodes)

	wps := cs.waypoints()
	require.Len(t, wps, 3)
	assert.Equal(t, "fixed", wps[1].Kind)
}
