package uci

import (
	"strconv"
	"strings"
)

type ScoreKind int

const (
	ScoreCentipawn ScoreKind = iota + 1
	ScoreMate
)

// Score is one evaluation figure as reported by the engine, from the side
// to move's point of view.
type Score struct {
	Kind       ScoreKind
	Centipawns int
	MateIn     int
	// Sign is +1 when the side to move delivers mate, -1 when it is mated.
	Sign int
}

func Centipawn(v int) Score { return Score{Kind: ScoreCentipawn, Centipawns: v} }

func Mate(n, sign int) Score {
	if sign >= 0 {
		sign = 1
	} else {
		sign = -1
	}
	if n < 0 {
		n = -n
	}
	return Score{Kind: ScoreMate, MateIn: n, Sign: sign}
}

func (s Score) IsMate() bool { return s.Kind == ScoreMate }

type LineKind int

const (
	LineIgnored LineKind = iota
	LineScore
	LineBestMove
)

type Line struct {
	Kind  LineKind
	Score Score
	Move  string
}

// ParseLine classifies one engine output line. bestmove wins over score
// figures, mate wins over cp.
func ParseLine(raw string) Line {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return Line{}
	}

	if i := indexOf(parts, "bestmove"); i >= 0 {
		move := ""
		if i+1 < len(parts) && parts[i+1] != "(none)" {
			move = parts[i+1]
		}
		return Line{Kind: LineBestMove, Move: move}
	}

	if i := indexOf(parts, "mate"); i >= 0 && i+1 < len(parts) {
		tok := parts[i+1]
		if n, err := strconv.Atoi(tok); err == nil {
			sign := 1
			if strings.HasPrefix(tok, "-") || tok == "0" {
				sign = -1
			}
			return Line{Kind: LineScore, Score: Mate(n, sign)}
		}
	}

	if i := indexOf(parts, "cp"); i >= 0 {
		for _, tok := range parts[i+1:] {
			if v, err := strconv.Atoi(tok); err == nil {
				return Line{Kind: LineScore, Score: Centipawn(v)}
			}
		}
	}

	return Line{}
}

func indexOf(parts []string, token string) int {
	for i, p := range parts {
		if p == token {
			return i
		}
	}
	return -1
}

func buildPositionCommand(fen string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(strings.TrimSpace(fen))
	}
	sb.WriteString("\n")
	return sb.String()
}

func buildGoCommand(moveTimeMillis int64) string {
	if moveTimeMillis <= 0 {
		moveTimeMillis = defaultMoveTimeMillis
	}
	return "go movetime " + strconv.FormatInt(moveTimeMillis, 10) + "\n"
}
