package models

// Result represents the analysis result
type Result struct {
	JobID       string `json:"job_id"`
	BestMove    string `json:"best_move"`
	BestMoveSAN string `json:"best_move_san,omitempty"`
	Ponder      string `json:"ponder,omitempty"`
	Eval        int    `json:"eval"`           // centipawns
	Mate        int    `json:"mate,omitempty"` // mate in n, replaces Eval when set
	Depth       int    `json:"depth"`
	Nodes       int64  `json:"nodes"`
	NodesPerS   int64  `json:"nodes_per_s"`
	PV          string `json:"pv"` // principal variation
	Lines       []Line `json:"lines,omitempty"`
	Outcome     string `json:"outcome,omitempty"` // checkmate or stalemate when there is no move
	Time        int    `json:"time_ms"`
	Error       string `json:"error,omitempty"`
}

// Line is one ranked variation of a MultiPV search.
type Line struct {
	Rank  int    `json:"rank"`
	Depth int    `json:"depth"`
	Eval  int    `json:"eval"`
	Mate  int    `json:"mate,omitempty"`
	PV    string `json:"pv"`
}
