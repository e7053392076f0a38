package analysis

import (
	"math"
	"strconv"

	"github.com/park285/cheese-review/internal/chess/uci"
)

// Steepness of the logistic squashing, per centipawn.
const logisticK = 0.003

type Color int

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

func ParseColor(s string) Color {
	switch s {
	case "black", "Black", "b", "B":
		return Black
	default:
		return White
	}
}

// Perspective re-expresses a side-to-move score at plyIndex for viewer.
func Perspective(plyIndex int, viewer Color) float64 {
	flips := plyIndex % 2
	if flips < 0 {
		flips = -flips
	}
	if viewer == Black {
		flips++
	}
	if flips%2 == 1 {
		return -1
	}
	return 1
}

// Normalize maps an engine score to the viewer's share of the evaluation bar.
func Normalize(s uci.Score, plyIndex int, viewer Color) float64 {
	mult := Perspective(plyIndex, viewer)

	if s.IsMate() {
		base := 1.0
		if s.Sign < 0 {
			base = -1
		}
		return clamp01(base * mult)
	}
	cp := float64(s.Centipawns) * mult
	return clamp01(0.5 + 0.5*(2/(1+math.Exp(-logisticK*cp))-1))
}

// FormatScore renders s from White's point of view: "+1.25", "-0.50",
// "#3", "#-5".
func FormatScore(s uci.Score, plyIndex int) string {
	mult := Perspective(plyIndex, White)
	if s.IsMate() {
		if float64(s.Sign)*mult < 0 {
			return "#-" + strconv.Itoa(s.MateIn)
		}
		return "#" + strconv.Itoa(s.MateIn)
	}
	cp := int(float64(s.Centipawns) * mult)
	sign := "+"
	if cp < 0 {
		sign = "-"
		cp = -cp
	}
	frac := cp % 100
	out := sign + strconv.Itoa(cp/100) + "."
	if frac < 10 {
		out += "0"
	}
	return out + strconv.Itoa(frac)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
