package daemon

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/unsupervisednn/moonrider/internal/audio"
	"github.com/unsupervisednn/moonrider/internal/manifest"
	"github.com/unsupervisednn/moonrider/internal/matcher"
	"github.com/unsupervisednn/moonrider/internal/pipeline"
)

// Event is a pipeline message as recorded by the hub.
type Event struct {
	Sequence   uint64         `json:"seq"`
	Timestamp  time.Time      `json:"ts"`
	Kind       pipeline.Kind  `json:"kind"`
	Generation uint64         `json:"generation"`
	Version    string         `json:"version,omitempty"`
	Hash       string         `json:"hash,omitempty"`
	Fraction   float64        `json:"fraction,omitempty"`
	Error      string         `json:"error,omitempty"`
	Result     *ResultPayload `json:"result,omitempty"`
}

// ResultPayload carries a completed generation. The audio bytes are served
// separately from AudioURL.
type ResultPayload struct {
	AudioURL string                          `json:"audioURL"`
	Audio    *audio.Ref                      `json:"audio"`
	Info     *manifest.Info                  `json:"info"`
	Beats    map[string]matcher.NoteDocument `json:"beats"`
}

// eventFromMessage converts a pipeline message into a hub event.
func eventFromMessage(msg pipeline.Message) Event {
	evt := Event{
		Kind:       msg.Kind,
		Generation: msg.Generation,
		Version:    msg.Version,
		Hash:       msg.Hash,
		Fraction:   msg.Fraction,
		Error:      msg.Reason,
	}
	if evt.Error == "" && msg.Err != nil {
		evt.Error = msg.Err.Error()
	}
	if msg.Data != nil {
		evt.Result = &ResultPayload{
			AudioURL: audioURL(msg.Generation),
			Audio:    msg.Data.Audio,
			Info:     msg.Data.Info,
			Beats:    msg.Data.Beats,
		}
	}
	return evt
}

func audioURL(generation uint64) string {
	return "/api/audio?generation=" + strconv.FormatUint(generation, 10)
}

// EventHub stores recent pipeline events and wakes waiters when new events
// arrive.
type EventHub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
}

// NewEventHub constructs a bounded in-memory event buffer.
func NewEventHub(capacity int) *EventHub {
	if capacity <= 0 {
		capacity = 256
	}
	h := &EventHub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish appends evt and returns its sequence number.
func (h *EventHub) Publish(evt Event) uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	h.cond.Broadcast()
	return evt.Sequence
}

// Fetch returns events with sequence greater than since, along with the
// cursor to pass on the next call. When wait is true, Fetch blocks until at
// least one event is available or the context ends.
func (h *EventHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Tail returns the most recent limit events without blocking.
func (h *EventHub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	start := max(len(h.buffer)-limit, 0)
	out := make([]Event, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

// LastSequence reports the sequence of the newest event.
func (h *EventHub) LastSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextSeq
}

func (h *EventHub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	startIdx := -1
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, max(since, h.nextSeq)
	}
	end := min(startIdx+limit, len(h.buffer))
	out := make([]Event, end-startIdx)
	copy(out, h.buffer[startIdx:end])
	return out, out[len(out)-1].Sequence
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
