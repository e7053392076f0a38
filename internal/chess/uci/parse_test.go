package uci

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		name string
		line string
		want Line
	}{
		{"centipawn", "info depth 20 seldepth 28 multipv 1 score cp 34 nodes 100 pv e2e4 e7e5", Line{Kind: LineScore, Score: Centipawn(34)}},
		{"negative centipawn", "info depth 3 score cp -9999 pv a7a6", Line{Kind: LineScore, Score: Centipawn(-9999)}},
		{"cp bound marker skipped", "info score cp lowerbound 120", Line{Kind: LineScore, Score: Centipawn(120)}},
		{"mate for side to move", "info depth 30 score mate 3 pv d1h5", Line{Kind: LineScore, Score: Mate(3, 1)}},
		{"mated side to move", "info depth 30 score mate -2 pv g1h1", Line{Kind: LineScore, Score: Mate(2, -1)}},
		{"mate zero means mated", "info depth 0 score mate 0", Line{Kind: LineScore, Score: Mate(0, -1)}},
		{"bestmove", "bestmove e2e4 ponder e7e5", Line{Kind: LineBestMove, Move: "e2e4"}},
		{"bestmove none", "bestmove (none)", Line{Kind: LineBestMove}},
		{"no figure", "info depth 1 currmove e2e4 currmovenumber 1", Line{}},
		{"handshake", "uciok", Line{}},
		{"empty", "   ", Line{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseLine(tc.line))
		})
	}
}

func TestBuildCommands(t *testing.T) {
	assert.Equal(t, "position startpos\n", buildPositionCommand(""))
	assert.Equal(t, "position fen 8/8/8/8/8/8/8/k6K w - - 0 1\n", buildPositionCommand(" 8/8/8/8/8/8/8/k6K w - - 0 1 "))
	assert.Equal(t, "go movetime 1000\n", buildGoCommand(0))
	assert.Equal(t, "go movetime 250\n", buildGoCommand(250))
}

func TestSetOptionCommands(t *testing.T) {
	assert.Empty(t, setOptionCommands(Options{}))
	assert.Equal(t, []string{
		"setoption name Threads value 2\n",
		"setoption name Hash value 64\n",
	}, setOptionCommands(Options{Threads: 2, HashMB: 64}))
}
