package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacokyle01/analysis-session/uci"
)

func progress(rank, depth, cp int, moves ...string) uci.Progress {
	return uci.Progress{Rank: rank, Depth: depth, Score: uci.Centipawns(cp), Moves: moves}
}

func TestAggregator_BeginClearsEpoch(t *testing.T) {
	a := newAggregator(1, 1)
	a.begin(1, "a")
	_, ok := a.observe(progress(1, 3, 10, "e2e4"))
	require.True(t, ok)

	a.begin(2, "b")
	assert.False(t, a.stable)
	assert.Nil(t, a.published)
	_, ok = a.finish("e2e4")
	assert.False(t, ok)

	snap, ok := a.observe(progress(1, 1, 5, "d2d4"))
	require.True(t, ok)
	assert.Equal(t, uint64(2), snap.Epoch)
	assert.Equal(t, "b", snap.PositionID)
}

func TestAggregator_StabilityIsStickyAcrossShallowerReports(t *testing.T) {
	a := newAggregator(1, 10)
	a.begin(1, "p")
	_, ok := a.observe(progress(1, 10, 1))
	require.True(t, ok)

	// Some engines restart a shallower iteration after a fail-low.
	snap, ok := a.observe(progress(1, 9, 1))
	require.True(t, ok)
	assert.Equal(t, 9, snap.Depth)
}

func TestAggregator_StabilityOnlyFromRankOne(t *testing.T) {
	a := newAggregator(2, 5)
	a.begin(1, "p")
	a.observe(progress(2, 7, 1))
	_, ok := a.observe(progress(1, 4, 1))
	assert.False(t, ok)
	assert.False(t, a.stable)
}

func TestAggregator_Resize(t *testing.T) {
	a := newAggregator(3, 1)
	a.begin(1, "p")
	a.observe(progress(1, 2, 1, "e2e4"))
	a.observe(progress(2, 2, 1, "d2d4"))

	a.resize(2)
	assert.Equal(t, 2, a.target())
	assert.True(t, a.complete())

	a.resize(4)
	assert.Equal(t, 4, a.target())
	assert.False(t, a.complete())
	_, ok := a.observe(progress(4, 2, 1))
	assert.False(t, ok)
	snap, ok := a.observe(progress(3, 2, 1))
	require.True(t, ok)
	require.Len(t, snap.Lines, 4)
	assert.Equal(t, []string{"d2d4"}, snap.Lines[1].Moves)
}

func TestAggregator_FinishWithoutPublishedSnapshot(t *testing.T) {
	a := newAggregator(2, 1)
	a.begin(3, "p")
	_, ok := a.observe(progress(1, 6, 42, "g1f3"))
	require.False(t, ok)

	snap, ok := a.finish("g1f3")
	require.True(t, ok)
	assert.Equal(t, "g1f3", snap.BestMove)
	assert.Equal(t, 6, snap.Depth)
	assert.Equal(t, []string{"g1f3"}, snap.Moves)
	assert.Nil(t, snap.Lines)
}

func TestAggregator_SnapshotMirrorsRankOneCounters(t *testing.T) {
	a := newAggregator(1, 1)
	a.begin(1, "p")
	p := progress(1, 4, 12, "e2e4")
	p.Nodes, p.NPS = 40000, 800000
	snap, ok := a.observe(p)
	require.True(t, ok)
	assert.Equal(t, int64(40000), snap.Nodes)
	assert.Equal(t, int64(800000), snap.NPS)
	assert.Nil(t, snap.Lines)
}
