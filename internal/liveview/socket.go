package liveview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-review/internal/analysis"
	"github.com/park285/cheese-review/internal/chess/rules"
	"github.com/park285/cheese-review/internal/gamesource"
	"github.com/park285/cheese-review/internal/review"
	"github.com/park285/cheese-review/internal/timeline"
	"github.com/park285/cheese-review/pkg/reviewdto"
)

const (
	outboxSize     = 16
	commandTimeout = 15 * time.Second
)

var errIllegalMove = errors.New("illegal move")

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.logger.Warn("ws_accept_failed", zap.Error(err))
		return
	}
	clientID := uuid.NewString()
	logger := s.logger.With(zap.String("client_id", clientID))
	logger.Info("ws_client_connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbox := make(chan reviewdto.Message, outboxSize)
	unsubscribe := s.rev.Subscribe(func(st review.State) {
		offer(outbox, reviewdto.Message{Type: "state", State: toStateDTO(st)})
	})
	defer unsubscribe()

	offer(outbox, reviewdto.Message{Type: "state", State: toStateDTO(s.rev.Snapshot())})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, conn, outbox, logger)
		cancel()
	}()

	for {
		var cmd reviewdto.Command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				logger.Debug("ws_read_failed", zap.Error(err))
			}
			break
		}
		if reply := s.dispatch(ctx, cmd, logger); reply != nil {
			select {
			case outbox <- *reply:
			case <-ctx.Done():
			}
		}
	}

	cancel()
	<-writerDone
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	logger.Info("ws_client_disconnected")
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, outbox <-chan reviewdto.Message, logger *zap.Logger) {
	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-outbox:
			wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
			err := wsjson.Write(wctx, conn, msg)
			cancel()
			if err != nil {
				logger.Debug("ws_write_failed", zap.Error(err))
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				logger.Debug("ws_ping_failed", zap.Error(err))
				return
			}
		}
	}
}

// offer queues msg without blocking the review loop. A full outbox drops
// its oldest entry; the newest state always wins.
func offer(outbox chan reviewdto.Message, msg reviewdto.Message) {
	for {
		select {
		case outbox <- msg:
			return
		default:
		}
		select {
		case <-outbox:
		default:
		}
	}
}

// dispatch runs one command and returns an optional direct reply.
func (s *Server) dispatch(parent context.Context, cmd reviewdto.Command, logger *zap.Logger) *reviewdto.Message {
	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()

	var err error
	switch cmd.Op {
	case reviewdto.OpMove:
		err = s.rev.MoveCursor(ctx, cmd.Delta)
	case reviewdto.OpSeek:
		err = s.rev.Seek(ctx, cmd.Index)
	case reviewdto.OpPlay:
		var ok bool
		ok, err = s.rev.PlayMove(ctx, cmd.From, cmd.To, cmd.Promo)
		if err == nil && !ok {
			err = errIllegalMove
		}
	case reviewdto.OpRestore:
		err = s.rev.RestoreCheckpoint(ctx)
	case reviewdto.OpReset:
		err = s.rev.ResetToStart(ctx)
	case reviewdto.OpViewer:
		err = s.rev.SetViewer(ctx, analysis.ParseColor(cmd.Viewer))
	case reviewdto.OpLoad:
		err = s.loadGame(ctx, cmd.Index)
	case reviewdto.OpFetch:
		if err = s.fetchGames(ctx, cmd); err == nil {
			return &reviewdto.Message{Type: "games", Games: gameListDTO(s.lib)}
		}
	default:
		err = fmt.Errorf("unknown op %q", cmd.Op)
	}
	if err == nil {
		return nil
	}
	logger.Debug("ws_command_failed", zap.String("op", cmd.Op), zap.Error(err))
	return &reviewdto.Message{Type: "error", Error: &reviewdto.Error{Code: errorCode(err), Message: err.Error()}}
}

func (s *Server) loadGame(ctx context.Context, index int) error {
	if s.lib == nil {
		return gamesource.ErrNotFound
	}
	rec, sum, err := s.lib.Game(index)
	if err != nil {
		return err
	}
	return s.rev.LoadGame(ctx, rec.PGN, sum.Colour)
}

func (s *Server) fetchGames(ctx context.Context, cmd reviewdto.Command) error {
	if s.lib == nil {
		return gamesource.ErrNotFound
	}
	year, month := cmd.Year, cmd.Month
	if year == 0 || month == 0 {
		now := time.Now()
		year, month = now.Year(), int(now.Month())
	}
	return s.lib.Refresh(ctx, cmd.Player, year, month)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, errIllegalMove):
		return "illegal_move"
	case errors.Is(err, timeline.ErrNoCheckpoint):
		return "no_checkpoint"
	case errors.Is(err, rules.ErrMalformedRecord):
		return "malformed_record"
	case errors.Is(err, gamesource.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "command_failed"
	}
}
