package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/unsupervisednn/moonrider/internal/logging"
)

const (
	// MaxProgress caps reported download progress; the remainder covers
	// decompression and matching.
	MaxProgress = 0.98

	defaultChunkSize   = 32 << 10
	defaultHTTPTimeout = 120 * time.Second
	defaultUserAgent   = "Moonrider/dev"
)

// Generation reports whether the work that owns a fetch is still wanted.
type Generation interface {
	Current() bool
}

// ProgressFunc receives download fractions in (0, MaxProgress].
type ProgressFunc func(fraction float64)

// Fetcher downloads archives over HTTP.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	chunkSize  int
	maxBytes   int64
	logger     *slog.Logger
}

// Option customizes the fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua = strings.TrimSpace(ua); ua != "" {
			f.userAgent = ua
		}
	}
}

// WithChunkSize sets the read size used between staleness checks.
func WithChunkSize(size int) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.chunkSize = size
		}
	}
}

// WithMaxBytes limits the accepted body size. Zero disables the limit.
func WithMaxBytes(limit int64) Option {
	return func(f *Fetcher) {
		if limit >= 0 {
			f.maxBytes = limit
		}
	}
}

// WithLogger attaches a logger for transfer diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New constructs a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		userAgent:  defaultUserAgent,
		chunkSize:  defaultChunkSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.NewComponentLogger(f.logger, "transfer")
	return f
}

// Fetch downloads sourceURL into memory. It returns (nil, nil) when gen stops
// being current before the body is complete. A nil gen is always current.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL string, gen Generation, report ProgressFunc) ([]byte, error) {
	logger := logging.WithContext(ctx, f.logger)
	current := func() bool { return gen == nil || gen.Current() }

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, &TransferError{URL: sourceURL, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)

	started := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		if !current() {
			return nil, nil
		}
		return nil, &TransferError{URL: sourceURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if !current() {
			return nil, nil
		}
		return nil, &TransferError{URL: sourceURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	total := resp.ContentLength
	if f.maxBytes > 0 && total > f.maxBytes {
		return nil, &TransferError{URL: sourceURL, Err: fmt.Errorf("%w: %d bytes announced", ErrTooLarge, total)}
	}

	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(min(total, 64<<20)))
	}
	chunk := make([]byte, f.chunkSize)
	sampler := logging.NewProgressSampler(0.1)
	var received int64
	var last float64

	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			received += int64(n)
			if f.maxBytes > 0 && received > f.maxBytes {
				return nil, &TransferError{URL: sourceURL, Err: ErrTooLarge}
			}
		}
		if !current() {
			logger.Debug("fetch abandoned for stale generation", logging.Int64("received_bytes", received))
			return nil, nil
		}
		if n > 0 && total > 0 {
			fraction := min(float64(received)/float64(total), MaxProgress)
			if fraction > last {
				last = fraction
				if report != nil {
					report(fraction)
				}
				if sampler.ShouldLog(fraction, "fetching") {
					logger.Debug("fetch progress",
						logging.Float64("fraction", fraction),
						logging.Int64("received_bytes", received),
						logging.Int64("total_bytes", total),
					)
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if !current() {
				return nil, nil
			}
			return nil, &TransferError{URL: sourceURL, Err: fmt.Errorf("read body: %w", readErr)}
		}
	}

	logger.Debug("fetch complete",
		logging.Int64("received_bytes", received),
		logging.Duration("elapsed", time.Since(started)),
	)
	return buf.Bytes(), nil
}
