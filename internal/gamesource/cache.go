package gamesource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultCacheTTL = time.Hour

// RedisCache keeps month archives so repeated lookups skip the remote API.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// OpenRedisCache connects using a redis:// or rediss:// URL.
func OpenRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redisOptions(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisCache(rdb, ttl), nil
}

func (c *RedisCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func archiveKey(player string, year, month int) string {
	return fmt.Sprintf("games:%s:%04d:%02d", strings.ToLower(strings.TrimSpace(player)), year, month)
}

// Get reports a miss as (nil, false, nil).
func (c *RedisCache) Get(ctx context.Context, player string, year, month int) ([]byte, bool, error) {
	raw, err := c.rdb.Get(ctx, archiveKey(player, year, month)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (c *RedisCache) Put(ctx context.Context, player string, year, month int, raw []byte) error {
	return c.rdb.Set(ctx, archiveKey(player, year, month), raw, c.ttl).Err()
}

type archiveFetcher interface {
	FetchArchive(ctx context.Context, player string, year, month int) ([]byte, error)
}

// CachedSource reads through the cache. Cache errors are logged and the
// remote answer is used.
type CachedSource struct {
	remote archiveFetcher
	cache  *RedisCache
	logger *zap.Logger
}

func NewCachedSource(remote *Client, cache *RedisCache, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{remote: remote, cache: cache, logger: logger}
}

func (s *CachedSource) FetchGames(ctx context.Context, player string, year, month int) ([]Record, error) {
	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, player, year, month)
		switch {
		case err != nil:
			s.logger.Warn("archive_cache_get_failed", zap.String("player", player), zap.Error(err))
		case ok:
			if games, err := DecodeArchive(raw); err == nil {
				s.logger.Debug("archive_cache_hit", zap.String("player", player), zap.Int("games", len(games)))
				return games, nil
			}
			s.logger.Warn("archive_cache_corrupt", zap.String("player", player))
		}
	}

	raw, err := s.remote.FetchArchive(ctx, player, year, month)
	if err != nil {
		return nil, err
	}
	games, err := DecodeArchive(raw)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, player, year, month, raw); err != nil {
			s.logger.Warn("archive_cache_put_failed", zap.String("player", player), zap.Error(err))
		}
	}
	return games, nil
}

// redisOptions accepts redis:// and rediss:// URLs; rediss enables TLS.
func redisOptions(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}
