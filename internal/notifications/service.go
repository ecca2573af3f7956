package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/unsupervisednn/moonrider/internal/config"
)

const userAgent = "Moonrider-Go/0.1.0"

// Event identifies a notification kind.
type Event string

const (
	EventIngestCompleted Event = "ingest_completed"
	EventIngestFailed    Event = "ingest_failed"
	EventTest            Event = "test"
)

// Payload carries event-specific values keyed by name.
type Payload map[string]any

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// render returns false for events that are not delivered.
func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventIngestCompleted:
		title := payloadString(payload, "songName")
		if title == "" {
			title = "untitled beatmap"
		}
		if author := payloadString(payload, "songAuthor"); author != "" {
			title += " by " + author
		}
		body := fmt.Sprintf("🎵 Ingested: %s", title)
		if count, ok := payload["difficulties"].(int); ok {
			body += fmt.Sprintf(" (%d difficulties)", count)
		}
		if version := payloadString(payload, "version"); version != "" {
			body += "\nVersion: " + version
		}
		return message{
			title: "Moonrider - Ingested",
			body:  body,
			tags:  []string{"moonrider", "ingest", "completed"},
		}, true
	case EventIngestFailed:
		var b strings.Builder
		b.WriteString("❌ Ingest failed")
		if version := payloadString(payload, "version"); version != "" {
			b.WriteString(" for ")
			b.WriteString(version)
		}
		b.WriteString(": ")
		if reason := payloadString(payload, "error"); reason != "" {
			b.WriteString(reason)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Moonrider - Error",
			body:     b.String(),
			tags:     []string{"moonrider", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Moonrider - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"moonrider", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return ""
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
