package reviewdto

// Command is a client request on the live-view socket. Only the fields
// relevant to Op are read.
type Command struct {
	Op     string `json:"op"`
	Delta  int    `json:"delta,omitempty"`
	Index  int    `json:"index,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Promo  string `json:"promo,omitempty"`
	Player string `json:"player,omitempty"`
	Year   int    `json:"year,omitempty"`
	Month  int    `json:"month,omitempty"`
	Viewer string `json:"viewer,omitempty"`
}

const (
	OpMove    = "move"
	OpSeek    = "seek"
	OpPlay    = "play"
	OpRestore = "restore"
	OpReset   = "reset"
	OpLoad    = "load"
	OpFetch   = "fetch"
	OpViewer  = "viewer"
)

// Message is what the server pushes: a state, a game list, or an error
// reply to a command.
type Message struct {
	Type  string    `json:"type"`
	State *State    `json:"state,omitempty"`
	Games *GameList `json:"games,omitempty"`
	Error *Error    `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "review error"
}
