package uci

import (
	"fmt"
	"strings"
)

// Depth limits accepted by "go depth".
const (
	MinDepth = 1
	MaxDepth = 100
)

// StartPos is the position id for the standard starting position.
const StartPos = "startpos"

// Commands sent to the engine.
const (
	CmdHandshake = "uci"
	CmdSync      = "isready"
	CmdStop      = "stop"
	CmdQuit      = "quit"
)

// MultiPVOption is the engine option holding the number of reported lines.
const MultiPVOption = "MultiPV"

// MaxMultiPV is the largest line count tracked for MultiPV.
const MaxMultiPV = 500

// SetOption formats a setoption command.
func SetOption(name, value string) string {
	return fmt.Sprintf("setoption name %s value %s", name, value)
}

// Position formats a position command. positionID is either a FEN, or
// "startpos" optionally followed by "moves ...", or already "fen ...".
func Position(positionID string) string {
	id := strings.TrimSpace(positionID)
	if id == StartPos || strings.HasPrefix(id, StartPos+" ") || strings.HasPrefix(id, "fen ") {
		return "position " + id
	}
	return "position fen " + id
}

// Go formats a depth-limited search command. depth is clamped to
// [MinDepth, MaxDepth].
func Go(depth int) string {
	return fmt.Sprintf("go depth %d", ClampDepth(depth))
}

// ClampDepth bounds a requested search depth.
func ClampDepth(depth int) int {
	return min(max(depth, MinDepth), MaxDepth)
}

// IsMultiPV reports whether name is the MultiPV option (case-insensitive,
// as engines treat option names).
func IsMultiPV(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), MultiPVOption)
}
