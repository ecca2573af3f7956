package daemonclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/unsupervisednn/moonrider/internal/daemon"
	"github.com/unsupervisednn/moonrider/internal/daemonclient"
	"github.com/unsupervisednn/moonrider/internal/pipeline"
)

func TestNewEmptyBind(t *testing.T) {
	client, err := daemonclient.New("", "")
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client for empty bind")
	}
	if _, err := client.Status(context.Background()); !errors.Is(err, daemonclient.ErrAPIUnavailable) {
		t.Fatalf("expected ErrAPIUnavailable, got %v", err)
	}
}

func TestEventsBuildsQueryAndDecodes(t *testing.T) {
	var gotQuery url.Values
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(daemon.EventsResponse{
			Events: []daemon.Event{{Sequence: 4, Kind: pipeline.KindProgress, Fraction: 0.5}},
			Next:   4,
		})
	}))
	defer srv.Close()

	client, err := daemonclient.New(srv.URL, "tok")
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	resp, err := client.Events(context.Background(), daemonclient.EventQuery{Since: 3, Limit: 50, Follow: true, Tail: true})
	if err != nil {
		t.Fatalf("Events error: %v", err)
	}
	if resp.Next != 4 || len(resp.Events) != 1 || resp.Events[0].Fraction != 0.5 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if gotQuery.Get("since") != "3" || gotQuery.Get("limit") != "50" || gotQuery.Get("follow") != "1" || gotQuery.Get("tail") != "1" {
		t.Fatalf("unexpected query %v", gotQuery)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
}

func TestIngestPostsCommand(t *testing.T) {
	var got pipeline.Command
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/ingest" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"accepted":true}`)
	}))
	defer srv.Close()

	client, _ := daemonclient.New(srv.URL, "")
	cmd := pipeline.Command{SourceURL: "https://example.com/a.zip", Version: "v1", BeatsPerMinute: 90}
	if err := client.Ingest(context.Background(), cmd); err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if got != cmd {
		t.Fatalf("unexpected command %+v", got)
	}
}

func TestStatusErrorCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid ingest request"}`)
	}))
	defer srv.Close()

	client, _ := daemonclient.New(srv.URL, "")
	err := client.Ingest(context.Background(), pipeline.Command{})
	var statusErr *daemonclient.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest || statusErr.Message != "invalid ingest request" {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
}

func TestStreamFollowsUntilCallbackStops(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		var resp daemon.EventsResponse
		switch r.URL.Query().Get("since") {
		case "":
			resp = daemon.EventsResponse{Events: []daemon.Event{{Sequence: 1, Kind: pipeline.KindProgress}}, Next: 1}
		case "1":
			resp = daemon.EventsResponse{Events: []daemon.Event{{Sequence: 2, Kind: pipeline.KindResult}}, Next: 2}
		default:
			t.Errorf("unexpected since %q", r.URL.Query().Get("since"))
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, _ := daemonclient.New(srv.URL, "")
	var kinds []pipeline.Kind
	err := client.Stream(context.Background(), daemonclient.EventQuery{}, true, func(evt daemon.Event) bool {
		kinds = append(kinds, evt.Kind)
		return evt.Kind == pipeline.KindProgress
	})
	if err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	if len(kinds) != 2 || kinds[1] != pipeline.KindResult || calls != 2 {
		t.Fatalf("unexpected stream %v after %d calls", kinds, calls)
	}
}

func TestIsAPIUnavailable(t *testing.T) {
	client, _ := daemonclient.New("127.0.0.1:1", "")
	_, err := client.Status(context.Background())
	if !daemonclient.IsAPIUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if daemonclient.IsAPIUnavailable(&daemonclient.StatusError{StatusCode: 500}) {
		t.Fatal("status errors are not unavailability")
	}
}
