package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/unsupervisednn/moonrider/internal/archive"
	"github.com/unsupervisednn/moonrider/internal/audio"
	"github.com/unsupervisednn/moonrider/internal/logging"
	"github.com/unsupervisednn/moonrider/internal/manifest"
	"github.com/unsupervisednn/moonrider/internal/matcher"
	"github.com/unsupervisednn/moonrider/internal/metrics"
	"github.com/unsupervisednn/moonrider/internal/services"
	"github.com/unsupervisednn/moonrider/internal/supervisor"
)

// generation carries the per-attempt state of one Ingest.
type generation struct {
	p       *Pipeline
	ctx     context.Context
	gen     supervisor.Generation
	req     Request
	logger  *slog.Logger
	started time.Time
	state   State
}

func (p *Pipeline) runGeneration(ctx context.Context, token supervisor.Token, req Request) {
	ctx = services.WithGeneration(ctx, uint64(token))
	ctx = services.WithVersion(ctx, req.Version)
	ctx = services.WithRequestID(ctx, uuid.NewString())

	g := &generation{
		p:       p,
		ctx:     ctx,
		gen:     p.sup.Watch(token),
		req:     req,
		logger:  logging.WithContext(ctx, p.logger),
		started: time.Now(),
		state:   StateFetching,
	}
	g.logger.Info("ingestion started",
		logging.String("source_url", req.SourceURL),
		logging.String("hash", req.Hash),
		logging.Float64("bpm", req.BeatsPerMinute),
	)
	g.run()
}

func (g *generation) run() {
	buf, ok := g.fetch()
	if !ok {
		return
	}

	g.transition(StateDecompressing)
	entries, ok := g.decompress(buf)
	if !ok {
		return
	}

	g.transition(StateMatching)
	result, ok := g.match(entries)
	if !ok {
		return
	}

	if !g.gen.Current() {
		g.superseded()
		return
	}
	g.transition(StateCompleted)
	if !g.emit(Message{Kind: KindResult, Data: result}) {
		g.superseded()
		return
	}
	g.p.metrics.ObserveOutcome(metrics.OutcomeCompleted)
	g.logger.Info("ingestion completed",
		logging.String("audio", result.Audio.Name()),
		logging.Int("difficulties", len(result.Beats)),
		logging.Duration("elapsed", time.Since(g.started)),
	)
}

func (g *generation) fetch() ([]byte, bool) {
	started := time.Now()
	ctx := services.WithStage(g.ctx, StateFetching.String())
	buf, err := g.p.fetcher.Fetch(ctx, g.req.SourceURL, g.gen, func(fraction float64) {
		g.emit(Message{Kind: KindProgress, Fraction: fraction})
	})
	g.p.metrics.ObserveStage(StateFetching.String(), time.Since(started))
	if !g.gen.Current() {
		g.superseded()
		return nil, false
	}
	if err != nil {
		g.fail(err, "fetch_failed", "check the source url and network connectivity")
		return nil, false
	}
	if len(buf) == 0 {
		g.fail(ErrEmptyArchive, "fetch_empty", "the server returned no data for this archive")
		return nil, false
	}
	g.p.metrics.AddBytes(len(buf))
	g.logger.Debug("archive downloaded", logging.Int("bytes", len(buf)))
	return buf, true
}

func (g *generation) decompress(buf []byte) ([]archive.Entry, bool) {
	started := time.Now()
	entries, err := archive.Decompress(buf, g.p.limits)
	g.p.metrics.ObserveStage(StateDecompressing.String(), time.Since(started))
	if !g.gen.Current() {
		g.superseded()
		return nil, false
	}
	if err != nil {
		g.fail(err, "archive_invalid", "the download is not a readable zip archive")
		return nil, false
	}
	g.logger.Debug("archive decompressed", logging.Int("entries", len(entries)))
	return entries, true
}

func (g *generation) match(entries []archive.Entry) (*Result, bool) {
	started := time.Now()
	defer func() {
		g.p.metrics.ObserveStage(StateMatching.String(), time.Since(started))
	}()

	audioEntry, ok := matcher.FindAudio(entries, g.p.audioExts)
	if !ok {
		g.fail(ErrAudioMissing, "audio_missing", "archive must contain an .egg or .ogg file")
		return nil, false
	}

	infoEntry, ok := matcher.FindInfo(entries)
	if !ok {
		g.fail(fmt.Errorf("%w: %s not found", ErrManifestMissing, matcher.InfoFileName), "manifest_missing", "archive must contain Info.dat")
		return nil, false
	}
	info, err := manifest.Parse(infoEntry.Data)
	if !g.gen.Current() {
		g.superseded()
		return nil, false
	}
	if err != nil {
		g.logger.Debug("manifest recovery failed",
			logging.String("path", infoEntry.Path),
			logging.String("charset_guess", manifest.DetectCharset(infoEntry.Data)),
		)
		g.fail(fmt.Errorf("%w: %w", ErrManifestMissing, err), "manifest_unrecoverable", "Info.dat could not be decoded as UTF-8 or UTF-16LE JSON")
		return nil, false
	}

	matched := matcher.Match(info, entries, g.req.BeatsPerMinute)
	for _, omission := range matched.Omissions {
		g.p.metrics.ObserveOmission(omission.Reason)
		g.logger.Debug("difficulty omitted",
			logging.String("key", omission.Key),
			logging.String("file", omission.FileName),
			logging.String("reason", omission.Reason),
		)
	}
	if !g.gen.Current() {
		g.superseded()
		return nil, false
	}
	if len(matched.Beats) == 0 {
		g.fail(fmt.Errorf("%w: %d declared", ErrNoDifficulties, info.DifficultyCount()), "difficulties_missing", "no declared difficulty file could be resolved")
		return nil, false
	}

	return &Result{
		Audio: audio.New(audioEntry.Path, audioEntry.Data),
		Info:  info,
		Beats: matched.Beats,
	}, true
}

// transition advances the generation state and publishes it to Status.
func (g *generation) transition(state State) {
	g.logger.Debug("state transition",
		logging.String("from", g.state.String()),
		logging.String("to", state.String()),
	)
	g.state = state
	g.p.setState(g.gen, state, g.req.Version)
}

// emit hands msg to the actor. It returns false when the generation context
// ended first.
func (g *generation) emit(msg Message) bool {
	msg.Generation = uint64(g.gen.Token())
	msg.Version = g.req.Version
	if msg.Kind != KindProgress {
		msg.Hash = g.req.Hash
	}
	select {
	case g.p.events <- msg:
		return true
	case <-g.ctx.Done():
		return false
	}
}

func (g *generation) fail(err error, eventType, hint string) {
	if !g.gen.Current() {
		g.superseded()
		return
	}
	failedIn := g.state
	g.transition(StateFailed)
	g.p.metrics.ObserveOutcome(metrics.OutcomeFailed)
	logging.ErrorWithContext(g.logger, "ingestion failed", eventType,
		logging.String("failed_state", failedIn.String()),
		logging.String(logging.FieldErrorHint, hint),
		logging.Error(err),
	)
	g.emit(Message{Kind: KindError, Err: err, Reason: err.Error()})
}

func (g *generation) superseded() {
	outcome := metrics.OutcomeSuperseded
	if g.p.abortedAt.Load() == uint64(g.gen.Token())+1 {
		outcome = metrics.OutcomeAborted
	}
	g.logger.Debug("generation superseded",
		logging.String("state", g.state.String()),
		logging.String("outcome", outcome),
	)
	g.state = StateSuperseded
	g.p.metrics.ObserveOutcome(outcome)
}
