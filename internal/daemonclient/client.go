package daemonclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/unsupervisednn/moonrider/internal/daemon"
	"github.com/unsupervisednn/moonrider/internal/pipeline"
)

// ErrAPIUnavailable is returned when no daemon API is configured or reachable.
var ErrAPIUnavailable = errors.New("daemon API unavailable")

// StatusError reports a non-2xx API response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("daemon API returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("daemon API returned status %d", e.StatusCode)
}

// Client talks to the moonriderd HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// EventQuery selects events from /api/events.
type EventQuery struct {
	Since  uint64
	Limit  int
	Follow bool
	Tail   bool
}

// New builds a client for bind ("host:port" or a URL). An empty bind
// returns a nil client, whose calls report ErrAPIUnavailable.
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout: follow mode blocks until the daemon answers or the caller cancels.
		http: &http.Client{},
	}, nil
}

// Status fetches /api/status.
func (c *Client) Status(ctx context.Context) (daemon.Status, error) {
	var status daemon.Status
	err := c.doJSON(ctx, http.MethodGet, "/api/status", nil, nil, &status)
	return status, err
}

// Ingest submits cmd to /api/ingest.
func (c *Client) Ingest(ctx context.Context, cmd pipeline.Command) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, "/api/ingest", nil, body, nil)
}

// Abort posts to /api/abort.
func (c *Client) Abort(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/abort", nil, nil, nil)
}

// Events fetches one page from /api/events.
func (c *Client) Events(ctx context.Context, q EventQuery) (daemon.EventsResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	var payload daemon.EventsResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/events", values, nil, &payload)
	return payload, err
}

// Stream delivers events to onEvent, following new ones when follow is set,
// until onEvent returns false or ctx ends.
func (c *Client) Stream(ctx context.Context, q EventQuery, follow bool, onEvent func(daemon.Event) bool) error {
	for {
		resp, err := c.Events(ctx, q)
		if err != nil {
			return err
		}
		for _, evt := range resp.Events {
			if !onEvent(evt) {
				return nil
			}
		}
		if !follow {
			return nil
		}
		q.Since = resp.Next
		q.Tail = false
		q.Follow = true
	}
}

// Audio downloads the bytes behind an event's audio URL.
func (c *Client) Audio(ctx context.Context, audioURL string) ([]byte, string, error) {
	if c == nil {
		return nil, "", ErrAPIUnavailable
	}
	ref, err := url.Parse(audioURL)
	if err != nil {
		return nil, "", err
	}
	req, err := c.newRequest(ctx, http.MethodGet, c.base.ResolveReference(ref), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, "", statusError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := c.newRequest(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method string, endpoint *url.URL, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func statusError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &payload)
	return &StatusError{StatusCode: resp.StatusCode, Message: payload.Error}
}

// IsAPIUnavailable reports whether err means the daemon could not be reached.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
