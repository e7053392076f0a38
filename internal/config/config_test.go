package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresEngine(t *testing.T) {
	t.Setenv("REVIEW_CONFIG", "")
	t.Setenv("STOCKFISH_PATH", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("REVIEW_CONFIG", "")
	t.Setenv("STOCKFISH_PATH", "/usr/bin/stockfish")
	t.Setenv("EVAL_DEBOUNCE_MS", "150")
	t.Setenv("ANALYSIS_MOVETIME_MS", "not-a-number")
	t.Setenv("REVIEW_GAME_INDEX", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.MoveTime())
	assert.Equal(t, 150*time.Millisecond, cfg.Debounce())
	assert.Equal(t, 4*time.Second, cfg.ReadyTimeout())
	assert.Equal(t, time.Hour, cfg.GameCacheTTL())
	assert.Equal(t, "https://api.chess.com", cfg.ChessComBaseURL)
	assert.Equal(t, ":8088", cfg.ListenAddr)
	assert.Equal(t, 0, cfg.GameIndex)
}

func TestLoadYAMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stockfish_path: /opt/sf\nplayer: jcssss\nyear: 2025\nmonth: 10\nanalysis_movetime_ms: 500\n"), 0o644))
	t.Setenv("REVIEW_CONFIG", path)
	t.Setenv("STOCKFISH_PATH", "")
	t.Setenv("REVIEW_PLAYER", "rival99")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/opt/sf", cfg.StockfishPath)
	assert.Equal(t, "rival99", cfg.Player)
	assert.Equal(t, 2025, cfg.Year)
	assert.Equal(t, 10, cfg.Month)
	assert.Equal(t, 500*time.Millisecond, cfg.MoveTime())
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.toml")
	require.NoError(t, os.WriteFile(path, []byte("stockfish_path = \"/opt/sf\"\nlisten_addr = \"127.0.0.1:9000\"\nredis_url = \"redis://localhost:6379/1\"\n"), 0o644))
	t.Setenv("REVIEW_CONFIG", path)
	t.Setenv("STOCKFISH_PATH", "")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o644))
	t.Setenv("REVIEW_CONFIG", path)
	_, err := Load()
	assert.Error(t, err)
}
