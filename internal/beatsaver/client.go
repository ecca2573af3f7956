package beatsaver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unsupervisednn/moonrider/internal/logging"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxResponseBytes   = 4 << 20
)

// ErrNotFound is returned when the API has no map for the identifier.
var ErrNotFound = errors.New("map not found")

// APIError reports an unexpected API response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("beatsaver: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Client talks to the BeatSaver map API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New constructs a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		userAgent:  "Moonrider/dev",
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "beatsaver")
	return c
}

// MapByID fetches a map by its short key.
func (c *Client) MapByID(ctx context.Context, id string) (*Map, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("beatsaver: map id is required")
	}
	return c.getMap(ctx, "/maps/id/"+url.PathEscape(id))
}

// MapByHash fetches the map that owns a version hash.
func (c *Client) MapByHash(ctx context.Context, hash string) (*Map, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if hash == "" {
		return nil, errors.New("beatsaver: map hash is required")
	}
	return c.getMap(ctx, "/maps/hash/"+url.PathEscape(hash))
}

func (c *Client) getMap(ctx context.Context, path string) (*Map, error) {
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("beatsaver: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("beatsaver: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("beatsaver: read response: %w", err)
	}
	logging.WithContext(ctx, c.logger).Debug("beatsaver response",
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("beatsaver: %s: %w", path, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return DecodeMap(body)
}
