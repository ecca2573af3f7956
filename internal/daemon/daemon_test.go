package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/unsupervisednn/moonrider/internal/config"
	"github.com/unsupervisednn/moonrider/internal/daemon"
	"github.com/unsupervisednn/moonrider/internal/logging"
	"github.com/unsupervisednn/moonrider/internal/notifications"
	"github.com/unsupervisednn/moonrider/internal/pipeline"
	"github.com/unsupervisednn/moonrider/internal/testsupport"
)

func startDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = d.Close()
	})
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return d
}

func apiURL(d *daemon.Daemon, path string) string {
	return "http://" + d.Status().APIAddress + path
}

func songArchive(t *testing.T, audio []byte) []byte {
	t.Helper()
	info := testsupport.InfoJSON(t, "Daemon Song",
		testsupport.Set{Characteristic: "Standard", Difficulties: []testsupport.Difficulty{
			{Level: "Normal", File: "Normal.dat"},
		}},
	)
	return testsupport.BuildArchive(t,
		testsupport.File{Name: "Info.dat", Data: info},
		testsupport.File{Name: "song.egg", Data: audio, Store: true},
		testsupport.File{Name: "Normal.dat", Data: testsupport.NotesJSON(3)},
	)
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func waitForTerminal(t *testing.T, d *daemon.Daemon) daemon.Event {
	t.Helper()
	var since uint64
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(apiURL(d, "/api/events?follow=1&since="+strconv.FormatUint(since, 10)))
		if err != nil {
			t.Fatalf("GET events: %v", err)
		}
		var payload daemon.EventsResponse
		err = json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode events: %v", err)
		}
		for _, evt := range payload.Events {
			if evt.Kind != pipeline.KindProgress {
				return evt
			}
		}
		since = payload.Next
	}
	t.Fatal("timed out waiting for terminal event")
	return daemon.Event{}
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := startDaemon(t, cfg)

	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon running")
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}
	if status.Pipeline.State != pipeline.StateIdle {
		t.Fatalf("expected idle pipeline, got %s", status.Pipeline.State)
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon stopped")
	}
	if err := d.Dispatch(context.Background(), pipeline.Command{Abort: true}); !errors.Is(err, daemon.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after stop, got %v", err)
	}
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	startDaemon(t, cfg)

	second := *cfg
	second.Paths.APIBind = ""
	other, err := daemon.New(&second, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer other.Close()
	if err := other.Start(context.Background()); !errors.Is(err, daemon.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestAPIIngestPublishesResultAndServesAudio(t *testing.T) {
	audio := bytes.Repeat([]byte("OggS"), 2048)
	srv := testsupport.ServeArchive(t, songArchive(t, audio))
	d := startDaemon(t, testsupport.NewConfig(t))

	resp, err := http.Get(apiURL(d, "/api/audio"))
	if err != nil {
		t.Fatalf("GET audio: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before any result, got %d", resp.StatusCode)
	}

	resp = postJSON(t, apiURL(d, "/api/ingest"), `{"sourceURL":"`+srv.URL()+`","version":"v9","hash":"feed","bpm":120}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	evt := waitForTerminal(t, d)
	if evt.Kind != pipeline.KindResult {
		t.Fatalf("expected result event, got %+v", evt)
	}
	if evt.Version != "v9" || evt.Hash != "feed" || evt.Result == nil {
		t.Fatalf("unexpected result event %+v", evt)
	}
	if evt.Result.Info == nil || evt.Result.Info.SongName != "Daemon Song" {
		t.Fatalf("unexpected info %+v", evt.Result.Info)
	}
	if doc, ok := evt.Result.Beats["Standard-Normal"]; !ok || doc.NoteCount() != 3 {
		t.Fatalf("unexpected beats %v", evt.Result.Beats)
	}

	resp, err = http.Get(apiURL(d, evt.Result.AudioURL))
	if err != nil {
		t.Fatalf("GET audio: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for audio, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "audio/ogg" {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	if !bytes.Equal(body, audio) {
		t.Fatalf("audio body mismatch: got %d bytes", len(body))
	}

	resp, err = http.Get(apiURL(d, "/api/audio?generation=999"))
	if err != nil {
		t.Fatalf("GET stale audio: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("expected 410 for stale generation, got %d", resp.StatusCode)
	}
}

func TestAPIIngestFailurePublishesError(t *testing.T) {
	srv := testsupport.ServeArchive(t, testsupport.BuildArchive(t,
		testsupport.File{Name: "Info.dat", Data: []byte(`{}`)},
	))
	d := startDaemon(t, testsupport.NewConfig(t))

	resp := postJSON(t, apiURL(d, "/api/ingest"), `{"sourceURL":"`+srv.URL()+`"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	evt := waitForTerminal(t, d)
	if evt.Kind != pipeline.KindError || evt.Error == "" {
		t.Fatalf("expected error event, got %+v", evt)
	}
}

func TestAPIRejectsInvalidCommands(t *testing.T) {
	d := startDaemon(t, testsupport.NewConfig(t))

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"sourceURL":`, http.StatusBadRequest},
		{"missing url", `{"version":"v1"}`, http.StatusBadRequest},
		{"abort", `{"abort":true}`, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, apiURL(d, "/api/ingest"), tt.body)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}

	resp, err := http.Get(apiURL(d, "/api/ingest"))
	if err != nil {
		t.Fatalf("GET ingest: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestAPIRequiresTokenWhenConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t, func(c *config.Config) { c.Paths.APIToken = "hunter2" })
	d := startDaemon(t, cfg)

	resp, err := http.Get(apiURL(d, "/api/status"))
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, apiURL(d, "/api/status"), nil)
	req.Header.Set("Authorization", "Bearer hunter2")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	var status daemon.Status
	err = json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if err != nil || !status.Running {
		t.Fatalf("unexpected status %+v err=%v", status, err)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	d := startDaemon(t, testsupport.NewConfig(t))

	resp, err := http.Get(apiURL(d, "/metrics"))
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatal("expected go collector output")
	}
}

type recordingNotifier struct {
	published chan notifications.Event
	payloads  chan notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.published <- event
	r.payloads <- payload
	return nil
}

func TestDaemonNotifiesOutcomes(t *testing.T) {
	notifier := &recordingNotifier{
		published: make(chan notifications.Event, 4),
		payloads:  make(chan notifications.Payload, 4),
	}
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, logging.NewNop(), daemon.WithNotifier(notifier))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = d.Close()
	})
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	srv := testsupport.ServeArchive(t, songArchive(t, bytes.Repeat([]byte("OggS"), 512)))
	if err := d.Dispatch(ctx, pipeline.Command{SourceURL: srv.URL(), Version: "n1"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	select {
	case event := <-notifier.published:
		if event != notifications.EventIngestCompleted {
			t.Fatalf("expected completion notification, got %s", event)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
	payload := <-notifier.payloads
	if payload["songName"] != "Daemon Song" || payload["version"] != "n1" || payload["difficulties"] != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}
