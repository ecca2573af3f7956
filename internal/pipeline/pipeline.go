package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unsupervisednn/moonrider/internal/archive"
	"github.com/unsupervisednn/moonrider/internal/config"
	"github.com/unsupervisednn/moonrider/internal/logging"
	"github.com/unsupervisednn/moonrider/internal/metrics"
	"github.com/unsupervisednn/moonrider/internal/supervisor"
	"github.com/unsupervisednn/moonrider/internal/transfer"
)

// Fetcher downloads archives. *transfer.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string, gen transfer.Generation, report transfer.ProgressFunc) ([]byte, error)
}

// Status describes the latest generation.
type Status struct {
	Generation uint64    `json:"generation"`
	State      State     `json:"state"`
	Version    string    `json:"version,omitempty"`
	Updated    time.Time `json:"updated"`
}

type command struct {
	req   Request
	abort bool
}

// Pipeline runs ingestion generations. Create it with New and drive it with
// Run.
type Pipeline struct {
	fetcher   Fetcher
	limits    archive.Limits
	audioExts []string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	sup       *supervisor.Supervisor

	commands chan command
	events   chan Message
	out      chan Message
	done     chan struct{}
	running  atomic.Bool

	// abortedAt is the supervisor counter value left by the last explicit
	// abort; the generation just below it ended by abort.
	abortedAt atomic.Uint64

	statusMu sync.Mutex
	status   Status
}

// Option customizes the pipeline.
type Option func(*Pipeline)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records generation outcomes and stage timings.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLimits bounds archive decompression.
func WithLimits(limits archive.Limits) Option {
	return func(p *Pipeline) { p.limits = limits }
}

// WithAudioExtensions overrides the suffixes that identify the song file.
func WithAudioExtensions(exts ...string) Option {
	return func(p *Pipeline) {
		cleaned := make([]string, 0, len(exts))
		for _, ext := range exts {
			if ext = strings.TrimSpace(ext); ext != "" {
				cleaned = append(cleaned, ext)
			}
		}
		if len(cleaned) > 0 {
			p.audioExts = cleaned
		}
	}
}

// New constructs a pipeline around fetcher.
func New(fetcher Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:   fetcher,
		audioExts: append([]string(nil), config.DefaultAudioExtensions...),
		sup:       supervisor.New(),
		commands:  make(chan command),
		events:    make(chan Message),
		out:       make(chan Message),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "pipeline")
	p.status = Status{State: StateIdle, Updated: time.Now()}
	return p
}

// NewFromConfig wires a transfer fetcher and limits from cfg.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	fetcher := transfer.New(
		transfer.WithUserAgent(cfg.Fetch.UserAgent),
		transfer.WithChunkSize(cfg.ChunkBytes()),
		transfer.WithMaxBytes(cfg.MaxArchiveBytes()),
		transfer.WithLogger(logger),
		transfer.WithHTTPClient(&http.Client{Timeout: cfg.FetchTimeout()}),
	)
	return New(fetcher,
		WithLogger(logger),
		WithMetrics(m),
		WithLimits(archive.Limits{MaxEntries: cfg.Archive.MaxEntries, MaxEntryBytes: cfg.MaxEntryBytes()}),
		WithAudioExtensions(cfg.Audio.Extensions...),
	)
}

// Messages returns the outbound channel. It is closed when Run returns.
func (p *Pipeline) Messages() <-chan Message {
	return p.out
}

// Status returns a snapshot of the latest generation.
func (p *Pipeline) Status() Status {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.status
}

// Ingest supersedes any running generation and starts a new one for req.
func (p *Pipeline) Ingest(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return p.post(ctx, command{req: req})
}

// Abort supersedes any running generation without starting another.
func (p *Pipeline) Abort(ctx context.Context) error {
	return p.post(ctx, command{abort: true})
}

// Dispatch routes a wire command to Ingest or Abort.
func (p *Pipeline) Dispatch(ctx context.Context, cmd Command) error {
	if cmd.Abort {
		return p.Abort(ctx)
	}
	return p.Ingest(ctx, cmd.Request())
}

func (p *Pipeline) post(ctx context.Context, cmd command) error {
	select {
	case p.commands <- cmd:
		return nil
	case <-p.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes commands until ctx is canceled. It closes the Messages
// channel and waits for in-flight generations before returning.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		wg        sync.WaitGroup
		cancelGen context.CancelFunc
		queue     []Message
	)
	defer func() {
		if cancelGen != nil {
			cancelGen()
		}
		p.sup.Abort()
		close(p.done)
		wg.Wait()
		close(p.out)
	}()

	p.logger.Debug("pipeline started")
	for {
		var out chan<- Message
		var next Message
		if len(queue) > 0 {
			out = p.out
			next = queue[0]
		}

		select {
		case <-ctx.Done():
			p.logger.Debug("pipeline stopping", logging.Error(ctx.Err()))
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case cmd := <-p.commands:
			if cancelGen != nil {
				cancelGen()
				cancelGen = nil
			}
			if cmd.abort {
				p.sup.Abort()
				p.abortedAt.Store(p.sup.Latest())
				p.setIdle()
				p.logger.Info("ingestion aborted", logging.Uint64("latest_generation", p.sup.Latest()))
			} else {
				token := p.sup.Begin()
				genCtx, cancel := context.WithCancel(ctx)
				cancelGen = cancel
				p.setState(p.sup.Watch(token), StateFetching, cmd.req.Version)
				wg.Add(1)
				go func() {
					defer wg.Done()
					p.runGeneration(genCtx, token, cmd.req)
				}()
			}
			queue = p.pruneStale(queue)

		case msg := <-p.events:
			if !p.sup.IsCurrent(supervisor.Token(msg.Generation)) {
				continue
			}
			queue = enqueue(queue, msg)

		case out <- next:
			queue = queue[1:]
			p.metrics.ObserveMessage(string(next.Kind))
		}
	}
}

func (p *Pipeline) pruneStale(queue []Message) []Message {
	kept := queue[:0]
	for _, msg := range queue {
		if p.sup.IsCurrent(supervisor.Token(msg.Generation)) {
			kept = append(kept, msg)
		}
	}
	return kept
}

// enqueue appends msg, folding consecutive progress updates of one
// generation into the latest fraction.
func enqueue(queue []Message, msg Message) []Message {
	if msg.Kind == KindProgress && len(queue) > 0 {
		last := &queue[len(queue)-1]
		if last.Kind == KindProgress && last.Generation == msg.Generation {
			if msg.Fraction > last.Fraction {
				last.Fraction = msg.Fraction
			}
			return queue
		}
	}
	return append(queue, msg)
}

// setState records state for gen when gen is still current.
func (p *Pipeline) setState(gen supervisor.Generation, state State, version string) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	if !gen.Current() {
		return
	}
	p.status = Status{Generation: uint64(gen.Token()), State: state, Version: version, Updated: time.Now()}
}

func (p *Pipeline) setIdle() {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status = Status{Generation: p.sup.Latest(), State: StateIdle, Updated: time.Now()}
}
