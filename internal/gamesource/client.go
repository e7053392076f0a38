package gamesource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.chess.com"

var ErrNotFound = errors.New("game archive not found")

// Source lists a player's games for one calendar month.
type Source interface {
	FetchGames(ctx context.Context, player string, year, month int) ([]Record, error)
}

// Client talks to the chess.com published-data API.
type Client struct {
	baseURL   string
	http      *fasthttp.Client
	userAgent string
	logger    *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDialer replaces the network dialer; tests use an in-memory listener.
func WithDialer(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		userAgent:      "cheese-review/1.0",
		logger:         zap.NewNop(),
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) FetchGames(ctx context.Context, player string, year, month int) ([]Record, error) {
	raw, err := c.FetchArchive(ctx, player, year, month)
	if err != nil {
		return nil, err
	}
	return DecodeArchive(raw)
}

// FetchArchive returns the raw month archive body.
func (c *Client) FetchArchive(ctx context.Context, player string, year, month int) ([]byte, error) {
	if err := validateQuery(player, year, month); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/pub/player/%s/games/%04d/%02d", url.PathEscape(strings.ToLower(player)), year, month)
	return c.get(ctx, path)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.SetUserAgent(c.userAgent)
	}

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts {
				return nil, lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return nil, lastErr
			}
			continue
		}

		status := resp.StatusCode()
		switch {
		case status == fasthttp.StatusNotFound || status == fasthttp.StatusGone:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		case status < 200 || status >= 300:
			lastErr = fmt.Errorf("chess.com api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if attempt == attempts || !shouldRetryStatus(status) {
				return nil, lastErr
			}
			c.logger.Debug("archive_fetch_retry", zap.Int("status", status), zap.Int("attempt", attempt))
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return nil, lastErr
			}
			continue
		}

		body := make([]byte, len(resp.Body()))
		copy(body, resp.Body())
		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func validateQuery(player string, year, month int) error {
	if strings.TrimSpace(player) == "" {
		return errors.New("player required")
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("invalid month %d", month)
	}
	if year < 2007 || year > 9999 {
		return fmt.Errorf("invalid year %d", year)
	}
	return nil
}

// DecodeArchive parses a month archive document.
func DecodeArchive(raw []byte) ([]Record, error) {
	var doc struct {
		Games []Record `json:"games"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	out := doc.Games[:0]
	for _, g := range doc.Games {
		if strings.TrimSpace(g.PGN) == "" {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
