package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	nchess "github.com/corentings/chess/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func rgba(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}

func TestRenderStartingPosition(t *testing.T) {
	r := New()
	data, err := r.RenderPNG(context.Background(), startFEN, Options{Bar: 0.5, ScoreText: "+0.20"})
	require.NoError(t, err)

	img := decode(t, data)
	w, h := r.Size()
	assert.Equal(t, image.Rect(0, 0, w, h), img.Bounds())

	origin := image.Point{X: sideMargin, Y: topMargin}
	e4 := squareCenter(nchess.E4, r.squareSize, origin, false)
	assert.Equal(t, lightSquare, rgba(img.At(e4.X, e4.Y)))
	d4 := squareCenter(nchess.D4, r.squareSize, origin, false)
	assert.Equal(t, darkSquare, rgba(img.At(d4.X, d4.Y)))
}

func TestRenderArrowFollowsFlip(t *testing.T) {
	r := New()
	origin := image.Point{X: sideMargin, Y: topMargin}
	opts := Options{Arrow: &Arrow{From: "e2", To: "e4"}, Bar: 0.5}

	for _, flip := range []bool{false, true} {
		opts.Flip = flip
		data, err := r.RenderPNG(context.Background(), startFEN, opts)
		require.NoError(t, err)
		img := decode(t, data)

		e3 := squareCenter(nchess.E3, r.squareSize, origin, flip)
		assert.NotEqual(t, squareColor(nchess.E3), rgba(img.At(e3.X, e3.Y)), "flip=%v", flip)
		a3 := squareCenter(nchess.A3, r.squareSize, origin, flip)
		assert.Equal(t, squareColor(nchess.A3), rgba(img.At(a3.X, a3.Y)), "flip=%v", flip)
	}
}

func TestRenderBarShowsViewerShare(t *testing.T) {
	r := New()
	boardSize := r.squareSize * 8
	barX := sideMargin + boardSize + barGap + barWidth/2
	top, bottom := topMargin+2, topMargin+boardSize-2

	data, err := r.RenderPNG(context.Background(), startFEN, Options{Bar: 1})
	require.NoError(t, err)
	img := decode(t, data)
	assert.Equal(t, barWhite, rgba(img.At(barX, top)))

	data, err = r.RenderPNG(context.Background(), startFEN, Options{Bar: 0})
	require.NoError(t, err)
	img = decode(t, data)
	assert.Equal(t, barBlack, rgba(img.At(barX, bottom)))

	data, err = r.RenderPNG(context.Background(), startFEN, Options{Bar: 0.9, Flip: true})
	require.NoError(t, err)
	img = decode(t, data)
	assert.Equal(t, barBlack, rgba(img.At(barX, bottom)))
	assert.Equal(t, barWhite, rgba(img.At(barX, top)))
}

func TestRenderRejectsBadPosition(t *testing.T) {
	_, err := New().RenderPNG(context.Background(), "not a fen", Options{})
	assert.Error(t, err)
}

func TestRenderHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().RenderPNG(ctx, startFEN, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEveryPieceGlyphRasterises(t *testing.T) {
	for _, p := range []nchess.Piece{
		nchess.WhitePawn, nchess.WhiteKnight, nchess.WhiteBishop, nchess.WhiteRook, nchess.WhiteQueen, nchess.WhiteKing,
		nchess.BlackPawn, nchess.BlackKnight, nchess.BlackBishop, nchess.BlackRook, nchess.BlackQueen, nchess.BlackKing,
	} {
		img, err := renderPieceImage(p, 48)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 48, 48), img.Bounds())
	}
	assert.Equal(t, nchess.NoSquare, func() nchess.Square { sq, _ := parseSquare("z9"); return sq }())
}
