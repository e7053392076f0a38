package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePGN = `[Event "Live Chess"]
[Site "Chess.com"]
[Date "2025.10.03"]
[White "Jcssss"]
[Black "opponent"]
[Result "1-0"]

1. e4 e5 2. Nf3 Nc6 3. Bb5 1-0
`

func TestLegalMovesFromStart(t *testing.T) {
	dests, err := NewStandard().LegalMoves(StartingPosition, "e2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"e3", "e4"}, dests)

	dests, err = NewStandard().LegalMoves(StartingPosition, "e1")
	require.NoError(t, err)
	assert.Empty(t, dests)
}

func TestApplyMoveProducesNextPosition(t *testing.T) {
	next, err := NewStandard().ApplyMove(StartingPosition, "e2", "e4", "")
	require.NoError(t, err)
	assert.Contains(t, next, "4P3")
	assert.Contains(t, next, " b ")
}

func TestApplyMoveRejectsIllegal(t *testing.T) {
	_, err := NewStandard().ApplyMove(StartingPosition, "e2", "e5", "")
	require.ErrorIs(t, err, ErrIllegalMove)
}

func TestApplyMoveDefaultsPromotionToQueen(t *testing.T) {
	pos := "8/P7/8/8/8/8/8/k6K w - - 0 1"
	next, err := NewStandard().ApplyMove(pos, "a7", "a8", "")
	require.NoError(t, err)
	assert.Contains(t, next, "Q7")

	next, err = NewStandard().ApplyMove(pos, "a7", "a8", "n")
	require.NoError(t, err)
	assert.Contains(t, next, "N7")
}

func TestDecodeRecordIncludesStartingPosition(t *testing.T) {
	positions, err := NewStandard().DecodeRecord(samplePGN)
	require.NoError(t, err)
	require.Len(t, positions, 6)
	assert.Contains(t, positions[0], "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w")
	assert.Contains(t, positions[5], " b ")
}

func TestDecodeRecordMalformed(t *testing.T) {
	_, err := NewStandard().DecodeRecord("")
	require.ErrorIs(t, err, ErrMalformedRecord)

	_, err = NewStandard().DecodeRecord("1. e4 e5 2. Ke3 *")
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestValidate(t *testing.T) {
	r := NewStandard()
	next, ok := Validate(r, StartingPosition, "g1", "f3", "")
	require.True(t, ok)
	assert.NotEqual(t, StartingPosition, next)

	_, ok = Validate(r, StartingPosition, "g1", "g3", "")
	assert.False(t, ok)

	_, ok = Validate(r, "not a fen", "g1", "f3", "")
	assert.False(t, ok)
}

func TestPlyIndex(t *testing.T) {
	ply, err := PlyIndex(StartingPosition)
	require.NoError(t, err)
	assert.Equal(t, 0, ply)

	ply, err = PlyIndex("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1")
	require.NoError(t, err)
	assert.Equal(t, 1, ply)

	ply, err = PlyIndex("8/8/8/8/8/8/8/k6K w - - 0 12")
	require.NoError(t, err)
	assert.Equal(t, 22, ply)

	_, err = PlyIndex("8/8/8/8/8/8/8/k6K x - - 0 1")
	require.ErrorIs(t, err, ErrInvalidPosition)
}
