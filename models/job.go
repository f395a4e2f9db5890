package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/notnil/chess"
)

var validate = validator.New()

// Job represents a chess position analysis job. Jobs created from a PGN
// carry the batch they belong to and the ply they were taken after.
type Job struct {
	ID       string `json:"id"`
	FEN      string `json:"fen" validate:"required"`
	Depth    int    `json:"depth" validate:"gte=0,lte=100"`
	TimeMS   int    `json:"time_ms" validate:"gte=0"`
	Priority int    `json:"priority"`
	MultiPV  int    `json:"multipv,omitempty" validate:"gte=0,lte=500"`
	BatchID  string `json:"batch_id,omitempty"`
	Ply      int    `json:"ply,omitempty"`
}

// Validate checks field ranges and that FEN describes a legal position.
func (j Job) Validate() error {
	if err := validate.Struct(j); err != nil {
		return err
	}
	if _, err := j.Position(); err != nil {
		return err
	}
	return nil
}

// Position parses the job's FEN.
func (j Job) Position() (*chess.Position, error) {
	opt, err := chess.FEN(j.FEN)
	if err != nil {
		return nil, fmt.Errorf("invalid FEN %q: %w", j.FEN, err)
	}
	return chess.NewGame(opt).Position(), nil
}
