package session

import (
	"log/slog"
	"time"

	"github.com/jacokyle01/analysis-session/uci"
)

// Option is a named engine setting sent with setoption.
type Option struct {
	Name  string
	Value string
}

// Config holds the fixed parameters of a Controller.
type Config struct {
	// EnginePath locates the engine; it is handed to the Dialer as is.
	EnginePath string

	// MultiPV is the number of ranked lines expected per search. It can
	// change at runtime through RequestOptionChange("MultiPV", n).
	MultiPV int

	// StableDepth is the rank-1 depth a search must reach before any
	// snapshot is published.
	StableDepth int

	// Options are sent once after the handshake, after MultiPV.
	Options []Option

	// AckTimeout bounds the wait for uciok, readyok and the bestmove that
	// follows a stop. Zero or negative waits forever.
	AckTimeout time.Duration

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	c.MultiPV = min(max(c.MultiPV, 1), uci.MaxMultiPV)
	if c.StableDepth < 1 {
		c.StableDepth = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
