package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	StockfishPath  string `yaml:"stockfish_path" toml:"stockfish_path"`
	MoveTimeMS     int    `yaml:"analysis_movetime_ms" toml:"analysis_movetime_ms"`
	DebounceMS     int    `yaml:"eval_debounce_ms" toml:"eval_debounce_ms"`
	ReadyTimeoutMS int    `yaml:"engine_ready_timeout_ms" toml:"engine_ready_timeout_ms"`
	EngineThreads  int    `yaml:"engine_threads" toml:"engine_threads"`
	EngineHashMB   int    `yaml:"engine_hash_mb" toml:"engine_hash_mb"`

	ChessComBaseURL   string `yaml:"chesscom_base_url" toml:"chesscom_base_url"`
	ChessComUserAgent string `yaml:"chesscom_user_agent" toml:"chesscom_user_agent"`

	Player    string `yaml:"player" toml:"player"`
	Year      int    `yaml:"year" toml:"year"`
	Month     int    `yaml:"month" toml:"month"`
	GameIndex int    `yaml:"game_index" toml:"game_index"`
	Viewer    string `yaml:"viewer" toml:"viewer"`

	RedisURL        string `yaml:"redis_url" toml:"redis_url"`
	GameCacheTTLSec int    `yaml:"game_cache_ttl_sec" toml:"game_cache_ttl_sec"`
	DatabaseURL     string `yaml:"database_url" toml:"database_url"`

	ListenAddr string `yaml:"listen_addr" toml:"listen_addr"`
}

func Defaults() *AppConfig {
	return &AppConfig{
		MoveTimeMS:        1000,
		DebounceMS:        200,
		ReadyTimeoutMS:    4000,
		ChessComBaseURL:   "https://api.chess.com",
		ChessComUserAgent: "cheese-review/1.0",
		GameIndex:         -1,
		GameCacheTTLSec:   3600,
		ListenAddr:        ":8088",
	}
}

// Load builds the configuration from defaults, the optional file named by
// REVIEW_CONFIG and then environment overrides.
func Load() (*AppConfig, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("REVIEW_CONFIG")); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *AppConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("parse yaml config: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(raw), cfg); err != nil {
			return fmt.Errorf("parse toml config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	setString(&cfg.StockfishPath, "STOCKFISH_PATH")
	setPositiveInt(&cfg.MoveTimeMS, "ANALYSIS_MOVETIME_MS")
	setPositiveInt(&cfg.DebounceMS, "EVAL_DEBOUNCE_MS")
	setPositiveInt(&cfg.ReadyTimeoutMS, "ENGINE_READY_TIMEOUT_MS")
	setPositiveInt(&cfg.EngineThreads, "ENGINE_THREADS")
	setPositiveInt(&cfg.EngineHashMB, "ENGINE_HASH_MB")

	setString(&cfg.ChessComBaseURL, "CHESSCOM_BASE_URL")
	setString(&cfg.ChessComUserAgent, "CHESSCOM_USER_AGENT")

	setString(&cfg.Player, "REVIEW_PLAYER")
	setPositiveInt(&cfg.Year, "REVIEW_YEAR")
	setPositiveInt(&cfg.Month, "REVIEW_MONTH")
	if v := strings.TrimSpace(os.Getenv("REVIEW_GAME_INDEX")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GameIndex = n
		}
	}
	setString(&cfg.Viewer, "REVIEW_VIEWER")

	setString(&cfg.RedisURL, "REDIS_URL")
	setPositiveInt(&cfg.GameCacheTTLSec, "GAME_CACHE_TTL_SEC")
	setString(&cfg.DatabaseURL, "DATABASE_URL")

	setString(&cfg.ListenAddr, "LISTEN_ADDR")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setPositiveInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func (c *AppConfig) Validate() error {
	if c.StockfishPath == "" {
		return errors.New("STOCKFISH_PATH is required")
	}
	if c.Month < 0 || c.Month > 12 {
		return fmt.Errorf("invalid month %d", c.Month)
	}
	if c.MoveTimeMS <= 0 || c.DebounceMS <= 0 || c.ReadyTimeoutMS <= 0 {
		return errors.New("timings must be positive")
	}
	return nil
}

func (c *AppConfig) MoveTime() time.Duration {
	return time.Duration(c.MoveTimeMS) * time.Millisecond
}

func (c *AppConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

func (c *AppConfig) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutMS) * time.Millisecond
}

func (c *AppConfig) GameCacheTTL() time.Duration {
	return time.Duration(c.GameCacheTTLSec) * time.Second
}
