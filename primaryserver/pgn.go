package primaryserver

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/notnil/chess"

	"github.com/jacokyle01/analysis-session/models"
)

// JobsFromPGN parses a game and returns one job per position reached after
// each move, in game order.
func JobsFromPGN(pgn string, template models.Job) ([]models.Job, error) {
	opt, err := chess.PGN(strings.NewReader(pgn))
	if err != nil {
		return nil, fmt.Errorf("invalid PGN: %w", err)
	}
	game := chess.NewGame(opt)

	positions := game.Positions()
	if len(positions) < 2 {
		return nil, fmt.Errorf("invalid PGN: game has no moves")
	}

	jobs := make([]models.Job, 0, len(positions)-1)
	for ply, pos := range positions[1:] {
		job := template
		job.ID = uuid.NewString()
		job.FEN = pos.String()
		job.Ply = ply + 1
		jobs = append(jobs, job)
	}
	return jobs, nil
}
