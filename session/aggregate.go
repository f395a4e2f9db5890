package session

import (
	"slices"

	"github.com/jacokyle01/analysis-session/uci"
)

// aggregator folds progress for the current epoch into snapshots. Lines are
// an arena indexed by rank-1, sized to the rank target.
type aggregator struct {
	epoch      uint64
	positionID string
	threshold  int

	lines  []LineRecord
	held   []bool
	stable bool

	// published is the last snapshot handed out this epoch.
	published *Snapshot
}

func newAggregator(target, threshold int) *aggregator {
	return &aggregator{
		threshold: threshold,
		lines:     make([]LineRecord, target),
		held:      make([]bool, target),
	}
}

// begin starts a new epoch with an empty arena.
func (a *aggregator) begin(epoch uint64, positionID string) {
	a.epoch = epoch
	a.positionID = positionID
	clear(a.lines)
	clear(a.held)
	a.stable = false
	a.published = nil
}

// resize changes the rank target, keeping records for ranks that still fit.
func (a *aggregator) resize(target int) {
	if target == len(a.lines) {
		return
	}
	lines := make([]LineRecord, target)
	held := make([]bool, target)
	copy(lines, a.lines)
	copy(held, a.held)
	a.lines, a.held = lines, held
}

func (a *aggregator) target() int { return len(a.lines) }

// observe records one progress event and returns a snapshot when the arena
// is stable and complete at a single depth.
func (a *aggregator) observe(p uci.Progress) (Snapshot, bool) {
	if p.Rank < 1 || p.Rank > len(a.lines) {
		return Snapshot{}, false
	}
	a.lines[p.Rank-1] = LineRecord{
		Rank:     p.Rank,
		Depth:    p.Depth,
		SelDepth: p.SelDepth,
		Score:    p.Score,
		Moves:    slices.Clone(p.Moves),
		Nodes:    p.Nodes,
		NPS:      p.NPS,
	}
	a.held[p.Rank-1] = true

	if p.Rank == 1 && p.Depth >= a.threshold {
		a.stable = true
	}
	if !a.complete() {
		return Snapshot{}, false
	}

	snap := a.build()
	a.published = &snap
	return snap.clone(), true
}

func (a *aggregator) complete() bool {
	if !a.stable || !a.held[0] {
		return false
	}
	depth := a.lines[0].Depth
	for i := range a.lines {
		if !a.held[i] || a.lines[i].Depth != depth {
			return false
		}
	}
	return true
}

func (a *aggregator) build() Snapshot {
	top := a.lines[0]
	snap := Snapshot{
		Epoch:      a.epoch,
		PositionID: a.positionID,
		Depth:      top.Depth,
		Score:      top.Score,
		Moves:      slices.Clone(top.Moves),
		Nodes:      top.Nodes,
		NPS:        top.NPS,
	}
	if len(a.lines) > 1 {
		snap.Lines = make([]LineRecord, len(a.lines))
		for i, l := range a.lines {
			snap.Lines[i] = l.clone()
		}
	}
	return snap
}

// finish attaches the search's best move. Only a real move on a stable
// epoch publishes; sentinels end the epoch silently.
func (a *aggregator) finish(move string) (Snapshot, bool) {
	if move == "" || !a.stable {
		return Snapshot{}, false
	}
	var snap Snapshot
	if a.published != nil {
		snap = a.published.clone()
	} else {
		top := a.lines[0]
		snap = Snapshot{
			Epoch:      a.epoch,
			PositionID: a.positionID,
			Depth:      top.Depth,
			Score:      top.Score,
			Moves:      slices.Clone(top.Moves),
			Nodes:      top.Nodes,
			NPS:        top.NPS,
		}
	}
	snap.BestMove = move
	return snap, true
}
