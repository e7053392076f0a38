package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	defaultSquareSize = 64
	sideMargin        = 28
	topMargin         = 40
	bottomMargin      = 28
	barGap            = 14
	barWidth          = 24
)

var (
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	backgroundColor = color.RGBA{28, 31, 46, 255}
	arrowColor      = color.NRGBA{R: 36, G: 160, B: 90, A: 190}
	barWhite        = color.RGBA{240, 240, 240, 255}
	barBlack        = color.RGBA{40, 40, 40, 255}
	barMidline      = color.NRGBA{R: 220, G: 60, B: 60, A: 200}
	labelColor      = color.RGBA{204, 210, 236, 255}
)

// Arrow marks a suggested move by square names, e.g. "e2" to "e4".
type Arrow struct {
	From string
	To   string
}

type Options struct {
	Arrow *Arrow
	// Bar is the viewer's share of the evaluation in [0,1].
	Bar float64
	// Flip draws the board from Black's side, with Black's share of the bar
	// at the bottom.
	Flip      bool
	ScoreText string
	Title     string
}

type Renderer struct {
	squareSize int
}

func New() *Renderer {
	return &Renderer{squareSize: defaultSquareSize}
}

func (r *Renderer) Size() (int, int) {
	boardSize := r.squareSize * 8
	return boardSize + sideMargin*2 + barGap + barWidth, boardSize + topMargin + bottomMargin
}

// RenderPNG draws the position described by fen.
func (r *Renderer) RenderPNG(ctx context.Context, fen string, opts Options) ([]byte, error) {
	board, err := boardFromFEN(fen)
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	w, h := r.Size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	origin := image.Point{X: sideMargin, Y: topMargin}
	r.drawSquares(img, origin, opts.Flip)
	if err := r.drawPieces(img, board, origin, opts.Flip); err != nil {
		return nil, err
	}
	if opts.Arrow != nil {
		from, okFrom := parseSquare(opts.Arrow.From)
		to, okTo := parseSquare(opts.Arrow.To)
		if okFrom && okTo && from != to {
			drawArrow(img,
				squareCenter(from, r.squareSize, origin, opts.Flip),
				squareCenter(to, r.squareSize, origin, opts.Flip),
				r.squareSize, arrowColor)
		}
	}
	r.drawBar(img, origin, opts)
	r.drawLabels(img, origin, opts)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func boardFromFEN(fen string) (*nchess.Board, error) {
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return nchess.NewGame(opt).Position().Board(), nil
}

func (r *Renderer) drawSquares(dst *image.RGBA, origin image.Point, flip bool) {
	for i := 0; i < 64; i++ {
		sq := nchess.Square(i)
		imagedraw.Draw(dst, squareRect(sq, r.squareSize, origin, flip), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
	}
}

func (r *Renderer) drawPieces(dst *image.RGBA, board *nchess.Board, origin image.Point, flip bool) error {
	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		img, err := renderPieceImage(piece, r.squareSize)
		if err != nil {
			return err
		}
		imagedraw.Draw(dst, squareRect(sq, r.squareSize, origin, flip), img, image.Point{}, imagedraw.Over)
	}
	return nil
}

// drawBar fills the viewer's share from the bottom.
func (r *Renderer) drawBar(dst *image.RGBA, origin image.Point, opts Options) {
	boardSize := r.squareSize * 8
	x0 := origin.X + boardSize + barGap
	rect := image.Rect(x0, origin.Y, x0+barWidth, origin.Y+boardSize)

	own, other := barWhite, barBlack
	if opts.Flip {
		own, other = barBlack, barWhite
	}
	share := opts.Bar
	if share < 0 {
		share = 0
	}
	if share > 1 {
		share = 1
	}
	split := rect.Max.Y - int(share*float64(boardSize)+0.5)

	imagedraw.Draw(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, split), image.NewUniform(other), image.Point{}, imagedraw.Src)
	imagedraw.Draw(dst, image.Rect(rect.Min.X, split, rect.Max.X, rect.Max.Y), image.NewUniform(own), image.Point{}, imagedraw.Src)
	mid := rect.Min.Y + boardSize/2
	imagedraw.Draw(dst, image.Rect(rect.Min.X, mid, rect.Max.X, mid+1), image.NewUniform(barMidline), image.Point{}, imagedraw.Over)
}

func (r *Renderer) drawLabels(dst *image.RGBA, origin image.Point, opts Options) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(labelColor)}
	ascent := face.Metrics().Ascent.Ceil()
	boardSize := r.squareSize * 8

	files := "abcdefgh"
	ranks := "12345678"
	for i := 0; i < 8; i++ {
		fi, ri := i, 7-i
		if opts.Flip {
			fi, ri = 7-i, i
		}
		centerX := origin.X + i*r.squareSize + r.squareSize/2
		drawCenteredText(drawer, files[fi:fi+1], centerX, origin.Y+boardSize+ascent+6)
		centerY := origin.Y + i*r.squareSize + r.squareSize/2
		drawCenteredText(drawer, ranks[ri:ri+1], origin.X-sideMargin/2, centerY+ascent/2)
	}

	header := strings.TrimSpace(opts.Title)
	if s := strings.TrimSpace(opts.ScoreText); s != "" {
		if header != "" {
			header += "  "
		}
		header += s
	}
	if header != "" {
		drawer.Dot = fixed.P(origin.X, topMargin/2+ascent/2)
		drawer.DrawString(header)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func squareRect(sq nchess.Square, squareSize int, origin image.Point, flip bool) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	if flip {
		col, row = 7-col, 7-row
	}
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func squareCenter(sq nchess.Square, squareSize int, origin image.Point, flip bool) image.Point {
	rect := squareRect(sq, squareSize, origin, flip)
	return image.Point{X: rect.Min.X + squareSize/2, Y: rect.Min.Y + squareSize/2}
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

func parseSquare(name string) (nchess.Square, bool) {
	if len(name) != 2 {
		return nchess.NoSquare, false
	}
	f, rk := name[0], name[1]
	if f < 'a' || f > 'h' || rk < '1' || rk > '8' {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(f-'a'), nchess.Rank(rk-'1')), true
}
