package session

import (
	"slices"

	"github.com/jacokyle01/analysis-session/uci"
)

// LineRecord is the latest progress for one rank within the current epoch.
type LineRecord struct {
	Rank     int
	Depth    int
	SelDepth int
	Score    uci.Score
	Moves    []string
	Nodes    int64
	NPS      int64
}

func (r LineRecord) clone() LineRecord {
	r.Moves = slices.Clone(r.Moves)
	return r
}

// Snapshot is one published, consistent view of a search. Listeners own the
// value they receive; nothing in the controller aliases its slices.
type Snapshot struct {
	Epoch      uint64
	PositionID string
	Depth      int
	Score      uci.Score // rank 1
	Moves      []string  // rank 1
	Nodes      int64     // rank 1
	NPS        int64     // rank 1
	BestMove   string    // empty until the search ends with a move
	Lines      []LineRecord
}

func (s Snapshot) clone() Snapshot {
	s.Moves = slices.Clone(s.Moves)
	if s.Lines != nil {
		lines := make([]LineRecord, len(s.Lines))
		for i, l := range s.Lines {
			lines[i] = l.clone()
		}
		s.Lines = lines
	}
	return s
}

// Completion reports that a search ended on its own with a bestmove.
// Searches cut short by stop or a superseding request never complete.
type Completion struct {
	Epoch      uint64
	PositionID string
	BestMove   string // empty when the engine had no move to play
	Ponder     string
}

// NoMove reports whether the search ended without a playable move.
func (c Completion) NoMove() bool { return c.BestMove == "" }

// Identity is what the engine reported about itself during the handshake.
type Identity struct {
	Name   string
	Author string
}
