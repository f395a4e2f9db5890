package uci

import (
	"strconv"
	"strings"
)

// noMoveSentinels are bestmove payloads engines use when the position has no
// legal move or the search was aborted before producing one.
var noMoveSentinels = map[string]bool{
	"(none)": true,
	"0000":   true,
	"none":   true,
	"NULL":   true,
	"(null)": true,
}

// infoValueKeys are info fields followed by exactly one value token that the
// parser does not keep.
var infoValueKeys = map[string]bool{
	"hashfull":       true,
	"tbhits":         true,
	"sbhits":         true,
	"cpuload":        true,
	"currmove":       true,
	"currmovenumber": true,
}

// Parse maps one raw engine line to exactly one Event. It never fails:
// malformed lines come back as Unknown.
func Parse(line string) Event {
	line = strings.TrimSpace(line)
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Unknown{Line: line}
	}

	switch parts[0] {
	case "uciok":
		if len(parts) == 1 {
			return HandshakeAck{}
		}
	case "readyok":
		if len(parts) == 1 {
			return SyncAck{}
		}
	case "id":
		if len(parts) >= 3 {
			return ID{Field: parts[1], Value: strings.Join(parts[2:], " ")}
		}
	case "bestmove":
		return parseBestMove(parts)
	case "info":
		if len(parts) > 1 && parts[1] == "string" {
			return Diagnostic{Text: strings.Join(parts[2:], " ")}
		}
		return parseInfo(line, parts[1:])
	}

	if msg, ok := errorMessage(line); ok {
		return EngineError{Message: msg}
	}
	return Unknown{Line: line}
}

func parseBestMove(parts []string) Event {
	if len(parts) < 2 || noMoveSentinels[parts[1]] {
		return BestMove{}
	}
	bm := BestMove{Move: parts[1]}
	if len(parts) >= 4 && parts[2] == "ponder" && !noMoveSentinels[parts[3]] {
		bm.Ponder = parts[3]
	}
	return bm
}

// parseInfo walks the key/value fields of an info line. A line becomes
// Progress only with both depth and score present; a bound-flagged score is
// an aspiration-window report and becomes Diagnostic.
func parseInfo(line string, parts []string) Event {
	p := Progress{Rank: 1}
	var haveDepth, haveScore, bound bool

	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			v, ok := intAt(parts, i+1)
			if !ok || v < 1 {
				return Unknown{Line: line}
			}
			p.Depth, haveDepth = v, true
			i++
		case "seldepth":
			v, ok := intAt(parts, i+1)
			if !ok {
				return Unknown{Line: line}
			}
			p.SelDepth = v
			i++
		case "multipv":
			v, ok := intAt(parts, i+1)
			if !ok || v < 1 {
				return Unknown{Line: line}
			}
			p.Rank = v
			i++
		case "score":
			if i+2 >= len(parts) {
				return Unknown{Line: line}
			}
			v, err := strconv.Atoi(parts[i+2])
			if err != nil {
				return Unknown{Line: line}
			}
			switch parts[i+1] {
			case "cp":
				p.Score = Centipawns(v)
			case "mate":
				p.Score = MateIn(v)
			default:
				return Unknown{Line: line}
			}
			haveScore = true
			i += 2
		case "lowerbound", "upperbound":
			bound = true
		case "nodes":
			v, ok := int64At(parts, i+1)
			if !ok {
				return Unknown{Line: line}
			}
			p.Nodes = v
			i++
		case "nps":
			v, ok := int64At(parts, i+1)
			if !ok {
				return Unknown{Line: line}
			}
			p.NPS = v
			i++
		case "time":
			v, ok := intAt(parts, i+1)
			if !ok {
				return Unknown{Line: line}
			}
			p.TimeMS = v
			i++
		case "wdl":
			i += 3
		case "pv":
			p.Moves = capMoves(parts[i+1:])
			i = len(parts)
		case "string", "refutation", "currline":
			// Free text or move lists run to the end of the line.
			i = len(parts)
		default:
			if infoValueKeys[parts[i]] {
				i++
			}
		}
	}

	if !haveDepth || !haveScore {
		return Unknown{Line: line}
	}
	if bound {
		return Diagnostic{Text: line}
	}
	if p.Moves == nil {
		p.Moves = []string{}
	}
	return p
}

func capMoves(moves []string) []string {
	if len(moves) > MaxMoves {
		moves = moves[:MaxMoves]
	}
	out := make([]string, len(moves))
	copy(out, moves)
	return out
}

// errorMessage recognizes "error: msg" and "Error msg" style lines.
func errorMessage(line string) (string, bool) {
	if len(line) < len("error") || !strings.EqualFold(line[:len("error")], "error") {
		return "", false
	}
	rest := line[len("error"):]
	if rest != "" && rest[0] != ':' && rest[0] != ' ' {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(rest, ":")), true
}

func intAt(parts []string, i int) (int, bool) {
	if i >= len(parts) {
		return 0, false
	}
	v, err := strconv.Atoi(parts[i])
	return v, err == nil
}

func int64At(parts []string, i int) (int64, bool) {
	if i >= len(parts) {
		return 0, false
	}
	v, err := strconv.ParseInt(parts[i], 10, 64)
	return v, err == nil
}
