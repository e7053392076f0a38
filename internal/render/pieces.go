package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Glyph outlines on a 45x45 canvas.
var pieceShapes = map[nchess.PieceType]string{
	nchess.Pawn: `<circle cx="22.5" cy="14" r="5.5"/>
<path d="M14 38 L31 38 L27 22 L18 22 Z"/>`,
	nchess.Rook: `<path d="M11 38 L34 38 L34 34 L31 34 L31 17 L34 17 L34 9 L30 9 L30 12 L26 12 L26 9 L19 9 L19 12 L15 12 L15 9 L11 9 L11 17 L14 17 L14 34 L11 34 Z"/>`,
	nchess.Knight: `<path d="M12 38 L34 38 L32 20 L28 11 L20 8 L18 12 L11 17 L12 22 L19 20 L14 31 Z"/>
<circle cx="20" cy="14" r="1.2"/>`,
	nchess.Bishop: `<circle cx="22.5" cy="8" r="3"/>
<path d="M22.5 11 L30 22 L27 32 L18 32 L15 22 Z"/>
<rect x="12" y="34" width="21" height="4"/>`,
	nchess.Queen: `<path d="M9 14 L14 32 L31 32 L36 14 L29 24 L26 10 L22.5 23 L19 10 L16 24 Z"/>
<rect x="12" y="34" width="21" height="4"/>`,
	nchess.King: `<rect x="21" y="4" width="3" height="10"/>
<rect x="17.5" y="7" width="10" height="3"/>
<path d="M11 24 L16 16 L29 16 L34 24 L30 33 L15 33 Z"/>
<rect x="12" y="34" width="21" height="4"/>`,
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceSVG(piece nchess.Piece) (string, error) {
	shape, ok := pieceShapes[piece.Type()]
	if !ok {
		return "", fmt.Errorf("no glyph for piece %v", piece)
	}
	fill, stroke := "#fafafa", "#1a1a1a"
	if piece.Color() == nchess.Black {
		fill, stroke = "#262626", "#0a0a0a"
	}
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">`)
	fmt.Fprintf(&b, `<g fill="%s" stroke="%s" stroke-width="1.5" stroke-linejoin="round">`, fill, stroke)
	b.WriteString(shape)
	b.WriteString(`</g></svg>`)
	return b.String(), nil
}

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	src, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}
