package gamesource

import (
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-review/internal/analysis"
)

type Side struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Result   string `json:"result"`
}

// Record is one finished game as published by chess.com.
type Record struct {
	URL         string `json:"url"`
	PGN         string `json:"pgn"`
	TimeControl string `json:"time_control"`
	TimeClass   string `json:"time_class"`
	EndTime     int64  `json:"end_time"`
	Rated       bool   `json:"rated"`
	UUID        string `json:"uuid"`
	Rules       string `json:"rules"`
	White       Side   `json:"white"`
	Black       Side   `json:"black"`
}

// Summary is what the game list shows for a Record.
type Summary struct {
	Date     string
	Colour   analysis.Color
	Opponent string
	URL      string
}

// Summarize reads date, the player's colour and the opponent from the PGN
// tags, falling back to the archive metadata. Unknown values stay empty and
// the colour defaults to white.
func Summarize(rec Record, player string) Summary {
	tags := readTags(rec.PGN)
	white := firstNonEmpty(tags["White"], rec.White.Username)
	black := firstNonEmpty(tags["Black"], rec.Black.Username)

	s := Summary{Date: tags["Date"], URL: rec.URL}
	if strings.EqualFold(strings.TrimSpace(player), black) && black != "" {
		s.Colour = analysis.Black
		s.Opponent = white
	} else {
		s.Colour = analysis.White
		s.Opponent = black
	}
	return s
}

func readTags(pgn string) map[string]string {
	tags := make(map[string]string)
	if strings.TrimSpace(pgn) == "" {
		return tags
	}
	opt, err := nchess.PGN(strings.NewReader(pgn))
	if err != nil {
		return tags
	}
	game := nchess.NewGame(opt)
	for _, key := range []string{"Date", "White", "Black"} {
		if v := game.GetTagPair(key); v != "" {
			tags[key] = v
		}
	}
	return tags
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
