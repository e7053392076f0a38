package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	ErrIllegalMove     = errors.New("illegal move")
	ErrMalformedRecord = errors.New("malformed game record")
	ErrInvalidPosition = errors.New("invalid position")
)

const StartingPosition = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Engine is the rules capability the review loop depends on.
type Engine interface {
	LegalMoves(pos string, square string) ([]string, error)
	ApplyMove(pos string, from, to, promo string) (string, error)
	DecodeRecord(record string) ([]string, error)
}

// Standard implements Engine for orthodox chess on top of corentings/chess.
type Standard struct{}

func NewStandard() Standard { return Standard{} }

func (Standard) LegalMoves(pos string, square string) ([]string, error) {
	game, err := gameFromFEN(pos)
	if err != nil {
		return nil, err
	}
	square = strings.ToLower(strings.TrimSpace(square))

	seen := make(map[string]struct{})
	var out []string
	for _, mv := range game.ValidMoves() {
		if mv.S1().String() != square {
			continue
		}
		dest := mv.S2().String()
		if _, ok := seen[dest]; ok {
			continue
		}
		seen[dest] = struct{}{}
		out = append(out, dest)
	}
	return out, nil
}

func (Standard) ApplyMove(pos string, from, to, promo string) (string, error) {
	game, err := gameFromFEN(pos)
	if err != nil {
		return "", err
	}
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	promo = strings.ToLower(strings.TrimSpace(promo))

	want := from + to + promo
	var match string
	for _, mv := range game.ValidMoves() {
		uci := mv.String()
		if uci == want {
			match = uci
			break
		}
		// pawn reaching the last rank without an explicit piece becomes a queen
		if promo == "" && uci == from+to+"q" {
			match = uci
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrIllegalMove, want)
	}
	if err := game.PushNotationMove(match, nchess.UCINotation{}, nil); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	return game.FEN(), nil
}

// DecodeRecord turns a PGN record into positions: the starting position
// followed by one position per ply.
func (Standard) DecodeRecord(record string) ([]string, error) {
	if strings.TrimSpace(record) == "" {
		return nil, fmt.Errorf("%w: empty record", ErrMalformedRecord)
	}
	opt, err := nchess.PGN(strings.NewReader(record))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	game := nchess.NewGame(opt)
	positions := game.Positions()
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: no positions", ErrMalformedRecord)
	}
	out := make([]string, 0, len(positions))
	for _, p := range positions {
		out = append(out, p.String())
	}
	return out, nil
}

// Validate asks the engine for the legal destinations of from and applies
// the move only when to is one of them. No state is touched on rejection.
func Validate(r Engine, pos string, from, to, promo string) (string, bool) {
	if r == nil {
		return "", false
	}
	dests, err := r.LegalMoves(pos, from)
	if err != nil {
		return "", false
	}
	to = strings.ToLower(strings.TrimSpace(to))
	legal := false
	for _, d := range dests {
		if d == to {
			legal = true
			break
		}
	}
	if !legal {
		return "", false
	}
	next, err := r.ApplyMove(pos, from, to, promo)
	if err != nil {
		return "", false
	}
	return next, true
}

// PlyIndex derives the number of half-moves played before pos from its
// side-to-move and full-move fields, so parity tracks the side to move.
func PlyIndex(pos string) (int, error) {
	fields := strings.Fields(pos)
	if len(fields) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPosition, pos)
	}
	fullMove := 1
	if len(fields) >= 6 {
		n, err := strconv.Atoi(fields[5])
		if err != nil || n < 1 {
			return 0, fmt.Errorf("%w: full move %q", ErrInvalidPosition, fields[5])
		}
		fullMove = n
	}
	ply := (fullMove - 1) * 2
	switch fields[1] {
	case "w":
	case "b":
		ply++
	default:
		return 0, fmt.Errorf("%w: side to move %q", ErrInvalidPosition, fields[1])
	}
	return ply, nil
}

func gameFromFEN(pos string) (*nchess.Game, error) {
	opt, err := nchess.FEN(strings.TrimSpace(pos))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return nchess.NewGame(opt), nil
}
