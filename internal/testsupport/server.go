package testsupport

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
)

// ServeOption customizes an archive server.
type ServeOption func(*archiveServer)

type archiveServer struct {
	data          []byte
	chunkSize     int
	omitLength    bool
	status        int
	gate          <-chan struct{}
	lastUserAgent atomic.Value
}

// WithoutContentLength streams the body chunked so no length is announced.
func WithoutContentLength() ServeOption {
	return func(s *archiveServer) { s.omitLength = true }
}

// WithStatus makes the server answer every request with status and no body.
func WithStatus(status int) ServeOption {
	return func(s *archiveServer) { s.status = status }
}

// WithChunkSize sets how many bytes are flushed per write.
func WithChunkSize(size int) ServeOption {
	return func(s *archiveServer) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithGate holds the body after the first chunk until gate is closed.
func WithGate(gate <-chan struct{}) ServeOption {
	return func(s *archiveServer) { s.gate = gate }
}

// ArchiveServer wraps an httptest server that serves one payload.
type ArchiveServer struct {
	*httptest.Server
	state *archiveServer
}

// LastUserAgent returns the User-Agent of the most recent request.
func (s *ArchiveServer) LastUserAgent() string {
	ua, _ := s.state.lastUserAgent.Load().(string)
	return ua
}

// URL returns the archive download URL.
func (s *ArchiveServer) URL() string {
	return s.Server.URL + "/archive.zip"
}

// ServeArchive starts a server that returns data for every request and closes
// it when the test ends.
func ServeArchive(t testing.TB, data []byte, opts ...ServeOption) *ArchiveServer {
	t.Helper()

	state := &archiveServer{data: data, chunkSize: 1024}
	for _, opt := range opts {
		opt(state)
	}

	srv := httptest.NewServer(http.HandlerFunc(state.handle))
	t.Cleanup(srv.Close)
	return &ArchiveServer{Server: srv, state: state}
}

func (s *archiveServer) handle(w http.ResponseWriter, r *http.Request) {
	s.lastUserAgent.Store(r.UserAgent())

	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	if !s.omitLength {
		w.Header().Set("Content-Length", strconv.Itoa(len(s.data)))
	}
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for offset := 0; offset < len(s.data); offset += s.chunkSize {
		end := min(offset+s.chunkSize, len(s.data))
		if _, err := w.Write(s.data[offset:end]); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		if offset == 0 && s.gate != nil {
			select {
			case <-s.gate:
			case <-r.Context().Done():
				return
			}
		}
	}
}
