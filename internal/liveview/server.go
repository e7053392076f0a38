package liveview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-review/internal/analysis"
	"github.com/park285/cheese-review/internal/gamesource"
	"github.com/park285/cheese-review/internal/render"
	"github.com/park285/cheese-review/internal/review"
	"github.com/park285/cheese-review/pkg/reviewdto"
)

// Controller is the review surface the live view drives.
type Controller interface {
	Snapshot() review.State
	Subscribe(fn func(review.State)) func()
	LoadGame(ctx context.Context, record string, viewer analysis.Color) error
	ResetToStart(ctx context.Context) error
	MoveCursor(ctx context.Context, delta int) error
	Seek(ctx context.Context, index int) error
	PlayMove(ctx context.Context, from, to, promo string) (bool, error)
	RestoreCheckpoint(ctx context.Context) error
	SetViewer(ctx context.Context, viewer analysis.Color) error
}

type GameLibrary interface {
	Refresh(ctx context.Context, player string, year, month int) error
	Player() string
	Summaries() []gamesource.Summary
	Game(index int) (gamesource.Record, gamesource.Summary, error)
}

type Server struct {
	rev      Controller
	lib      GameLibrary
	renderer *render.Renderer
	logger   *zap.Logger
	mux      *http.ServeMux

	pingInterval time.Duration
	writeTimeout time.Duration
}

// NewServer wires the HTTP routes. lib may be nil when no game source is
// configured.
func NewServer(rev Controller, lib GameLibrary, renderer *render.Renderer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = render.New()
	}
	s := &Server{
		rev:          rev,
		lib:          lib,
		renderer:     renderer,
		logger:       logger,
		mux:          http.NewServeMux(),
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
	}
	s.mux.HandleFunc("GET /state", s.handleState)
	s.mux.HandleFunc("GET /games", s.handleGames)
	s.mux.HandleFunc("GET /board.png", s.handleBoard)
	s.mux.HandleFunc("GET /ws", s.handleSocket)
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("liveview_listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStateDTO(s.rev.Snapshot()))
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	if s.lib == nil {
		writeJSON(w, http.StatusNotFound, reviewdto.Error{Code: "no_game_source", Message: "no game source configured"})
		return
	}
	writeJSON(w, http.StatusOK, gameListDTO(s.lib))
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	st := s.rev.Snapshot()
	data, err := s.renderer.RenderPNG(r.Context(), st.Position, renderOptions(st))
	if err != nil {
		s.logger.Warn("board_render_failed", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

func renderOptions(st review.State) render.Options {
	opts := render.Options{
		Bar:       st.Bar,
		Flip:      st.Viewer == analysis.Black,
		ScoreText: st.ScoreText,
	}
	if st.Arrow != nil {
		opts.Arrow = &render.Arrow{From: st.Arrow.From, To: st.Arrow.To}
	}
	return opts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
