package uci

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPosition(t *testing.T) {
	fen := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	assert.Equal(t, "position fen "+fen, Position(fen))
	assert.Equal(t, "position startpos", Position("startpos"))
	assert.Equal(t, "position startpos moves e2e4", Position("startpos moves e2e4"))
	assert.Equal(t, "position fen "+fen, Position("fen "+fen))
}

func TestGo_ClampsDepth(t *testing.T) {
	assert.Equal(t, "go depth 1", Go(0))
	assert.Equal(t, "go depth 1", Go(-5))
	assert.Equal(t, "go depth 18", Go(18))
	assert.Equal(t, "go depth 100", Go(250))
}

func TestSetOption(t *testing.T) {
	assert.Equal(t, "setoption name MultiPV value 3", SetOption("MultiPV", "3"))
	assert.Equal(t, "setoption name Skill Level value 20", SetOption("Skill Level", "20"))
}

func TestIsMultiPV(t *testing.T) {
	assert.True(t, IsMultiPV("MultiPV"))
	assert.True(t, IsMultiPV("multipv"))
	assert.False(t, IsMultiPV("Threads"))
}
