package reviewbuilder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-review/internal/analysis"
	"github.com/park285/cheese-review/internal/chess/rules"
	"github.com/park285/cheese-review/internal/chess/uci"
	"github.com/park285/cheese-review/internal/config"
	"github.com/park285/cheese-review/internal/evalstore"
	"github.com/park285/cheese-review/internal/gamesource"
	"github.com/park285/cheese-review/internal/liveview"
	"github.com/park285/cheese-review/internal/render"
	"github.com/park285/cheese-review/internal/review"
)

type Deps struct {
	Engine   *uci.Adapter
	Reviewer *review.Reviewer
	Library  *gamesource.Library
	Cache    *gamesource.RedisCache
	Memo     evalstore.Repository
	DB       *sql.DB
	Server   *liveview.Server

	cfg    *config.AppConfig
	logger *zap.Logger
}

// New starts the engine worker and wires everything around it. Redis and
// PostgreSQL are optional.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.StockfishPath) == "" {
		return nil, fmt.Errorf("STOCKFISH_PATH is required for analysis")
	}

	engine, err := uci.Start(ctx, cfg.StockfishPath, uci.Options{
		ReadyTimeout: cfg.ReadyTimeout(),
		Logger:       logger.Named("engine"),
		Threads:      cfg.EngineThreads,
		HashMB:       cfg.EngineHashMB,
	})
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}

	deps, err := assemble(ctx, cfg, logger, engine)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	deps.Engine = engine
	return deps, nil
}

func assemble(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger, engine review.Analyzer) (*Deps, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{cfg: cfg, logger: logger}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		cache, err := gamesource.OpenRedisCache(ctx, cfg.RedisURL, cfg.GameCacheTTL())
		if err != nil {
			return nil, fmt.Errorf("init game cache: %w", err)
		}
		d.Cache = cache
	} else {
		logger.Info("game_cache_disabled")
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, db, err := evalstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("init evaluation memo: %w", err)
		}
		d.Memo, d.DB = repo, db
	} else {
		d.Memo = evalstore.NewMemoryRepository()
	}

	client := gamesource.NewClient(cfg.ChessComBaseURL,
		gamesource.WithUserAgent(cfg.ChessComUserAgent),
		gamesource.WithLogger(logger.Named("chesscom")),
	)
	d.Library = gamesource.NewLibrary(gamesource.NewCachedSource(client, d.Cache, logger.Named("games")), logger.Named("library"))

	d.Reviewer = review.New(engine, rules.NewStandard(), review.Config{
		MoveTime: cfg.MoveTime(),
		Debounce: cfg.Debounce(),
		Viewer:   analysis.ParseColor(cfg.Viewer),
	}, review.WithLogger(logger.Named("review")), review.WithMemo(d.Memo))

	d.Server = liveview.NewServer(d.Reviewer, d.Library, render.New(), logger.Named("liveview"))
	return d, nil
}

// Bootstrap loads the configured player's month and opens the selected
// game. Failures are logged; the review keeps the starting position.
func (d *Deps) Bootstrap(ctx context.Context) {
	cfg := d.cfg
	if strings.TrimSpace(cfg.Player) == "" {
		return
	}
	year, month := cfg.Year, cfg.Month
	if year == 0 || month == 0 {
		now := time.Now()
		year, month = now.Year(), int(now.Month())
	}
	if err := d.Library.Refresh(ctx, cfg.Player, year, month); err != nil {
		return
	}
	if cfg.GameIndex < 0 {
		return
	}
	rec, sum, err := d.Library.Game(cfg.GameIndex)
	if err != nil {
		d.logger.Warn("configured_game_missing", zap.Int("index", cfg.GameIndex), zap.Error(err))
		return
	}
	viewer := sum.Colour
	if strings.TrimSpace(cfg.Viewer) != "" {
		viewer = analysis.ParseColor(cfg.Viewer)
	}
	if err := d.Reviewer.LoadGame(ctx, rec.PGN, viewer); err != nil {
		d.logger.Warn("configured_game_load_failed", zap.String("url", rec.URL), zap.Error(err))
	}
}

func (d *Deps) Close() error {
	var errs []error
	if d.Engine != nil {
		errs = append(errs, d.Engine.Close())
	}
	if d.Cache != nil {
		errs = append(errs, d.Cache.Close())
	}
	if d.DB != nil {
		errs = append(errs, d.DB.Close())
	}
	return errors.Join(errs...)
}
