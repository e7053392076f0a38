package evalstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cheese-review/internal/chess/uci"
)

var ErrNotFound = errors.New("evaluation not found")

// Entry is the settled engine answer for one position.
type Entry struct {
	FEN        string
	MoveTimeMS int64
	BestMove   string
	HasScore   bool
	Score      uci.Score
	UpdatedAt  time.Time
}

type Repository interface {
	Get(ctx context.Context, fen string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
}

const schema = `
CREATE TABLE IF NOT EXISTS position_evaluations (
	fen          TEXT PRIMARY KEY,
	movetime_ms  BIGINT NOT NULL,
	best_move    TEXT NOT NULL,
	score_kind   SMALLINT NOT NULL,
	score_value  INTEGER NOT NULL,
	score_sign   SMALLINT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
)`

type repository struct {
	db *sql.DB
}

// Open connects to PostgreSQL and makes sure the table exists.
func Open(ctx context.Context, databaseURL string) (Repository, *sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil, fmt.Errorf("database url required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return NewRepository(db), db, nil
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, fen string) (*Entry, error) {
	const query = `
		SELECT fen, movetime_ms, best_move, score_kind, score_value, score_sign, updated_at
		FROM position_evaluations
		WHERE fen = $1`

	var (
		e     Entry
		kind  int
		value int
		sign  int
	)
	err := r.db.QueryRowContext(ctx, query, fen).Scan(&e.FEN, &e.MoveTimeMS, &e.BestMove, &kind, &value, &sign, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query evaluation: %w", err)
	}
	e.Score, e.HasScore = scoreFromColumns(kind, value, sign)
	return &e, nil
}

// Put keeps the deeper answer: a shorter search never overwrites a longer one.
func (r *repository) Put(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("nil evaluation entry")
	}
	kind, value, sign := scoreColumns(entry)
	updated := entry.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	const query = `
		INSERT INTO position_evaluations (fen, movetime_ms, best_move, score_kind, score_value, score_sign, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (fen) DO UPDATE SET
			movetime_ms = EXCLUDED.movetime_ms,
			best_move   = EXCLUDED.best_move,
			score_kind  = EXCLUDED.score_kind,
			score_value = EXCLUDED.score_value,
			score_sign  = EXCLUDED.score_sign,
			updated_at  = EXCLUDED.updated_at
		WHERE position_evaluations.movetime_ms <= EXCLUDED.movetime_ms`

	if _, err := r.db.ExecContext(ctx, query, entry.FEN, entry.MoveTimeMS, entry.BestMove, kind, value, sign, updated); err != nil {
		return fmt.Errorf("upsert evaluation: %w", err)
	}
	return nil
}

func scoreColumns(e *Entry) (kind, value, sign int) {
	if !e.HasScore {
		return 0, 0, 0
	}
	switch e.Score.Kind {
	case uci.ScoreMate:
		return int(uci.ScoreMate), e.Score.MateIn, e.Score.Sign
	default:
		return int(uci.ScoreCentipawn), e.Score.Centipawns, 0
	}
}

func scoreFromColumns(kind, value, sign int) (uci.Score, bool) {
	switch uci.ScoreKind(kind) {
	case uci.ScoreMate:
		return uci.Mate(value, sign), true
	case uci.ScoreCentipawn:
		return uci.Centipawn(value), true
	default:
		return uci.Score{}, false
	}
}
