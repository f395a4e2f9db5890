// Package uci parses and formats the text lines exchanged with a UCI chess
// engine. Parse turns one raw engine line into exactly one typed Event; the
// command helpers build the lines sent to the engine.
package uci

import "strconv"

// MaxMoves caps the number of pv tokens kept from a progress line.
const MaxMoves = 10

// Event is one parsed engine line. The concrete type is one of HandshakeAck,
// SyncAck, Progress, BestMove, EngineError, Diagnostic, ID or Unknown.
type Event interface {
	event()
}

// HandshakeAck is the engine's "uciok".
type HandshakeAck struct{}

// SyncAck is the engine's "readyok".
type SyncAck struct{}

// Progress is an "info" line carrying both a depth and a score.
type Progress struct {
	Depth    int
	SelDepth int
	Rank     int // multipv, 1 when absent
	Score    Score
	Nodes    int64
	NPS      int64
	TimeMS   int
	Moves    []string
}

// BestMove is the terminal line of a search. Move is empty when the engine
// reported no legal move.
type BestMove struct {
	Move   string
	Ponder string
}

// NoMove reports whether the engine ended the search without a move.
func (b BestMove) NoMove() bool { return b.Move == "" }

// EngineError is a line in which the engine reports an internal fault.
type EngineError struct {
	Message string
}

// Diagnostic is free text the engine prints for humans ("info string",
// aspiration-window bounds). Always ignored by the session.
type Diagnostic struct {
	Text string
}

// ID is an "id name" or "id author" line sent during the handshake.
type ID struct {
	Field string
	Value string
}

// Unknown is any line that matched nothing above.
type Unknown struct {
	Line string
}

func (HandshakeAck) event() {}
func (SyncAck) event()      {}
func (Progress) event()     {}
func (BestMove) event()     {}
func (EngineError) event()  {}
func (Diagnostic) event()   {}
func (ID) event()           {}
func (Unknown) event()      {}

// ScoreKind tags how a Score is expressed.
type ScoreKind int

const (
	// ScoreNone means no evaluation was reported.
	ScoreNone ScoreKind = iota
	// ScoreCentipawns is a material-style evaluation in 1/100 pawn.
	ScoreCentipawns
	// ScoreMate is a forced mate in Value moves (negative: being mated).
	ScoreMate
)

// Score is an engine evaluation from the side to move.
type Score struct {
	Kind  ScoreKind
	Value int
}

// Centipawns returns a centipawn score.
func Centipawns(v int) Score { return Score{Kind: ScoreCentipawns, Value: v} }

// MateIn returns a mate-in-n score.
func MateIn(n int) Score { return Score{Kind: ScoreMate, Value: n} }

// IsZero reports whether no evaluation is present.
func (s Score) IsZero() bool { return s.Kind == ScoreNone }

func (s Score) String() string {
	switch s.Kind {
	case ScoreCentipawns:
		return "cp " + strconv.Itoa(s.Value)
	case ScoreMate:
		return "mate " + strconv.Itoa(s.Value)
	default:
		return "none"
	}
}
