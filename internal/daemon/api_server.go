package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/unsupervisednn/moonrider/internal/config"
	"github.com/unsupervisednn/moonrider/internal/logging"
	"github.com/unsupervisednn/moonrider/internal/pipeline"
)

const (
	maxCommandBytes = 64 << 10
	defaultLimit    = 100
	followTimeout   = 25 * time.Second
)

// EventsResponse is the payload of GET /api/events.
type EventsResponse struct {
	Events []Event `json:"events"`
	Next   uint64  `json:"next"`
}

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}
	srv.handler = srv.routes(cfg.Paths.APIToken)
	srv.server = &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      followTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, s.handleStatus))
	mux.HandleFunc("/api/ingest", authMiddleware(token, s.handleIngest))
	mux.HandleFunc("/api/abort", authMiddleware(token, s.handleAbort))
	mux.HandleFunc("/api/events", authMiddleware(token, s.handleEvents))
	mux.HandleFunc("/api/audio", authMiddleware(token, s.handleAudio))
	mux.Handle("/metrics", s.daemon.Metrics().Handler())
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *apiServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var cmd pipeline.Command
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBytes))
	if err := decoder.Decode(&cmd); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid command: "+err.Error())
		return
	}
	s.dispatch(w, r, cmd)
}

func (s *apiServer) handleAbort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.dispatch(w, r, pipeline.Command{Abort: true})
}

func (s *apiServer) dispatch(w http.ResponseWriter, r *http.Request, cmd pipeline.Command) {
	err := s.daemon.Dispatch(r.Context(), cmd)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrInvalidRequest):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrNotRunning), errors.Is(err, pipeline.ErrStopped):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": true,
		"abort":    cmd.Abort,
	})
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	hub := s.daemon.Events()

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultLimit
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	tail := query.Get("tail") == "1" || strings.EqualFold(query.Get("tail"), "true")

	var (
		events []Event
		next   uint64
	)
	if tail && since == 0 && !follow {
		events, next = hub.Tail(limit)
	} else {
		ctx := r.Context()
		if follow {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, followTimeout)
			defer cancel()
		}
		var err error
		events, next, err = hub.Fetch(ctx, since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if events == nil {
		events = []Event{}
	}
	s.writeJSON(w, http.StatusOK, EventsResponse{Events: events, Next: next})
}

func (s *apiServer) handleAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ref, generation, ok := s.daemon.LatestAudio()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no completed ingestion")
		return
	}
	if value := strings.TrimSpace(r.URL.Query().Get("generation")); value != "" {
		requested, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid generation")
			return
		}
		if requested != generation {
			s.writeError(w, http.StatusGone, "audio superseded by a newer ingestion")
			return
		}
	}
	w.Header().Set("Content-Type", ref.ContentType())
	w.Header().Set("X-Moonrider-Generation", strconv.FormatUint(generation, 10))
	http.ServeContent(w, r, ref.Name(), time.Time{}, bytes.NewReader(ref.Bytes()))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
