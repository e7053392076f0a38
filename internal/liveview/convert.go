package liveview

import (
	"github.com/park285/cheese-review/internal/review"
	"github.com/park285/cheese-review/pkg/reviewdto"
)

func toStateDTO(st review.State) *reviewdto.State {
	out := &reviewdto.State{
		SessionID:        st.SessionID,
		FEN:              st.Position,
		Cursor:           st.Cursor,
		Length:           st.Length,
		HasDeviation:     st.HasDeviation,
		CheckpointCursor: st.CheckpointCursor,
		Viewer:           st.Viewer.String(),
		Bar:              st.Bar,
		ScoreText:        st.ScoreText,
		UpdatedAt:        st.UpdatedAt,
	}
	if st.Score != nil {
		sc := &reviewdto.Score{Kind: "cp", Centipawns: st.Score.Centipawns}
		if st.Score.IsMate() {
			sc = &reviewdto.Score{Kind: "mate", MateIn: st.Score.MateIn, Sign: st.Score.Sign}
		}
		out.Score = sc
	}
	if st.Arrow != nil {
		out.Arrow = &reviewdto.Arrow{From: st.Arrow.From, To: st.Arrow.To}
	}
	return out
}

func gameListDTO(lib GameLibrary) *reviewdto.GameList {
	summaries := lib.Summaries()
	out := &reviewdto.GameList{Player: lib.Player(), Games: make([]reviewdto.GameSummary, 0, len(summaries))}
	for i, s := range summaries {
		out.Games = append(out.Games, reviewdto.GameSummary{
			Index:    i,
			Date:     s.Date,
			Colour:   s.Colour.String(),
			Opponent: s.Opponent,
			URL:      s.URL,
		})
	}
	return out
}
