package reviewdto

import "time"

type Arrow struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Score struct {
	Kind       string `json:"kind"`
	Centipawns int    `json:"cp,omitempty"`
	MateIn     int    `json:"mate,omitempty"`
	Sign       int    `json:"sign,omitempty"`
}

// State is the review snapshot sent to live-view clients.
type State struct {
	SessionID        string    `json:"session_id"`
	FEN              string    `json:"fen"`
	Cursor           int       `json:"cursor"`
	Length           int       `json:"length"`
	HasDeviation     bool      `json:"has_deviation"`
	CheckpointCursor int       `json:"checkpoint_cursor"`
	Viewer           string    `json:"viewer"`
	Bar              float64   `json:"bar"`
	Score            *Score    `json:"score,omitempty"`
	ScoreText        string    `json:"score_text,omitempty"`
	Arrow            *Arrow    `json:"arrow,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type GameSummary struct {
	Index    int    `json:"index"`
	Date     string `json:"date,omitempty"`
	Colour   string `json:"colour"`
	Opponent string `json:"opponent,omitempty"`
	URL      string `json:"url,omitempty"`
}

type GameList struct {
	Player string        `json:"player"`
	Games  []GameSummary `json:"games"`
}
