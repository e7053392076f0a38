package gamesource

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Library is the game list the user picks from.
type Library struct {
	src    Source
	logger *zap.Logger

	mu     sync.RWMutex
	player string
	year   int
	month  int
	games  []Record
}

func NewLibrary(src Source, logger *zap.Logger) *Library {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Library{src: src, logger: logger}
}

// Refresh replaces the list with player's games for the month. On failure
// the previous list stays.
func (l *Library) Refresh(ctx context.Context, player string, year, month int) error {
	games, err := l.src.FetchGames(ctx, player, year, month)
	if err != nil {
		l.logger.Warn("game_list_refresh_failed",
			zap.String("player", player), zap.Int("year", year), zap.Int("month", month), zap.Error(err))
		return err
	}
	l.mu.Lock()
	l.player, l.year, l.month = player, year, month
	l.games = games
	l.mu.Unlock()
	l.logger.Info("game_list_refreshed", zap.String("player", player), zap.Int("games", len(games)))
	return nil
}

func (l *Library) Player() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.player
}

func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.games)
}

func (l *Library) Summaries() []Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Summary, len(l.games))
	for i, g := range l.games {
		out[i] = Summarize(g, l.player)
	}
	return out
}

// Game returns the record at index with its summary.
func (l *Library) Game(index int) (Record, Summary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.games) {
		return Record{}, Summary{}, fmt.Errorf("%w: game index %d", ErrNotFound, index)
	}
	g := l.games[index]
	return g, Summarize(g, l.player), nil
}
