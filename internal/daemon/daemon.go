package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/unsupervisednn/moonrider/internal/audio"
	"github.com/unsupervisednn/moonrider/internal/config"
	"github.com/unsupervisednn/moonrider/internal/logging"
	"github.com/unsupervisednn/moonrider/internal/metrics"
	"github.com/unsupervisednn/moonrider/internal/notifications"
	"github.com/unsupervisednn/moonrider/internal/pipeline"
)

var (
	// ErrNotRunning is returned when commands arrive before Start or after Stop.
	ErrNotRunning = errors.New("daemon not running")
	// ErrLocked is returned when another instance holds the daemon lock.
	ErrLocked = errors.New("another moonrider daemon instance is already running")
)

// Daemon owns the ingestion pipeline, its event hub and the HTTP API, and
// enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
	hub      *EventHub
	api      *apiServer
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	started atomic.Bool
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	latestMu  sync.RWMutex
	latest    *audio.Ref
	latestGen uint64
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	LockFilePath string          `json:"lockFile"`
	LogPath      string          `json:"logFile,omitempty"`
	APIAddress   string          `json:"apiAddress,omitempty"`
	Pipeline     pipeline.Status `json:"pipeline"`
	LastEvent    uint64          `json:"lastEvent"`
}

// Option customizes the daemon.
type Option func(*Daemon)

// WithPipeline replaces the config-built pipeline.
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(d *Daemon) {
		if p != nil {
			d.pipeline = p
		}
	}
}

// WithMetrics replaces the daemon's metric set.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Daemon) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithNotifier replaces the config-built notification service.
func WithNotifier(n notifications.Service) Option {
	return func(d *Daemon) {
		if n != nil {
			d.notifier = n
		}
	}
}

// New constructs a daemon. The pipeline is built from cfg unless
// WithPipeline is supplied.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		hub:      NewEventHub(0),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = metrics.New()
	}
	if d.pipeline == nil {
		d.pipeline = pipeline.NewFromConfig(cfg, logger, d.metrics)
	}
	if d.notifier == nil {
		d.notifier = notifications.NewService(cfg)
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, launches the pipeline and serves the API.
// A daemon can be started once.
func (d *Daemon) Start(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return errors.New("daemon already started")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	messages := d.pipeline.Messages()
	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		if err := d.pipeline.Run(runCtx); err != nil {
			d.logger.Warn("pipeline stopped", logging.Error(err))
		}
	}()
	go func() {
		defer d.wg.Done()
		d.pump(messages)
	}()

	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.wg.Wait()
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("moonrider daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop cancels the pipeline, shuts the API down and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("moonrider daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Dispatch forwards an ingest or abort command to the pipeline.
func (d *Daemon) Dispatch(ctx context.Context, cmd pipeline.Command) error {
	if !d.running.Load() {
		return ErrNotRunning
	}
	return d.pipeline.Dispatch(ctx, cmd)
}

// Status returns the current daemon status snapshot.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		Pipeline:     d.pipeline.Status(),
		LastEvent:    d.hub.LastSequence(),
	}
	if dir := d.cfg.Paths.LogDir; dir != "" {
		status.LogPath = filepath.Join(dir, logging.LogFileName)
	}
	status.APIAddress = d.api.address()
	return status
}

// Events exposes the pipeline event hub.
func (d *Daemon) Events() *EventHub {
	return d.hub
}

// Metrics exposes the daemon's metric set.
func (d *Daemon) Metrics() *metrics.Metrics {
	return d.metrics
}

// LatestAudio returns the audio of the most recent completed generation.
func (d *Daemon) LatestAudio() (*audio.Ref, uint64, bool) {
	d.latestMu.RLock()
	defer d.latestMu.RUnlock()
	return d.latest, d.latestGen, d.latest != nil
}

func (d *Daemon) pump(messages <-chan pipeline.Message) {
	for msg := range messages {
		d.record(msg)
	}
}

func (d *Daemon) record(msg pipeline.Message) {
	if msg.Kind == pipeline.KindResult && msg.Data != nil {
		d.latestMu.Lock()
		d.latest = msg.Data.Audio
		d.latestGen = msg.Generation
		d.latestMu.Unlock()
	}
	seq := d.hub.Publish(eventFromMessage(msg))
	d.notify(msg)
	d.logger.Debug("pipeline event recorded",
		logging.Uint64("seq", seq),
		logging.String("kind", string(msg.Kind)),
		logging.Uint64(logging.FieldGeneration, msg.Generation),
	)
}

// notify publishes result and error outcomes without holding up the pump.
func (d *Daemon) notify(msg pipeline.Message) {
	var event notifications.Event
	payload := notifications.Payload{"version": msg.Version}
	switch msg.Kind {
	case pipeline.KindResult:
		event = notifications.EventIngestCompleted
		if msg.Data != nil {
			payload["difficulties"] = len(msg.Data.Beats)
			if info := msg.Data.Info; info != nil {
				payload["songName"] = info.SongName
				payload["songAuthor"] = info.SongAuthorName
			}
		}
	case pipeline.KindError:
		event = notifications.EventIngestFailed
		payload["error"] = msg.Reason
		if msg.Err != nil {
			payload["error"] = msg.Err
		}
	default:
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.notifier.Publish(context.Background(), event, payload); err != nil {
			logging.WarnWithContext(d.logger, "notification failed", "notification_failed",
				logging.Error(err),
				logging.String("notification", string(event)),
				logging.Uint64(logging.FieldGeneration, msg.Generation),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic or run `moonrider test-notify`"),
				logging.String(logging.FieldImpact, "the ingest outcome was not delivered to ntfy"),
			)
		}
	}()
}
