package main

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/unsupervisednn/moonrider/internal/testsupport"
)

func TestPreflightCommand(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	t.Cleanup(api.Close)
	configPath := writeTestConfig(t, testsupport.NewConfig(t, testsupport.WithBeatSaverAPI(api.URL)))

	out, _, err := runCLI(t, configPath, "preflight")
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	requireContains(t, out, "Log directory")
	requireContains(t, out, "BeatSaver API")

	status.Store(http.StatusServiceUnavailable)
	if _, _, err := runCLI(t, configPath, "preflight"); err == nil {
		t.Fatal("expected failing BeatSaver check to fail the command")
	}
}
