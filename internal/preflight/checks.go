package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const httpCheckTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBeatSaver verifies that the map metadata API answers. Any response
// below 500 counts as reachable.
func CheckBeatSaver(ctx context.Context, apiURL, userAgent string) Result {
	const name = "BeatSaver API"

	base := strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	status, err := probe(ctx, http.MethodGet, base+"/maps/latest", userAgent)
	if err != nil {
		return Result{Name: name, Detail: summarizeHTTPError(err)}
	}
	if status >= 500 {
		return Result{Name: name, Detail: fmt.Sprintf("unhealthy (%d)", status)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckNtfy verifies that the ntfy server hosting topic answers. The topic
// itself is not posted to.
func CheckNtfy(ctx context.Context, topic string) Result {
	const name = "Ntfy"

	parsed, err := url.Parse(strings.TrimSpace(topic))
	if err != nil || parsed.Host == "" {
		return Result{Name: name, Detail: "invalid topic url"}
	}
	health := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/v1/health"}
	status, err := probe(ctx, http.MethodGet, health.String(), "")
	if err != nil {
		return Result{Name: name, Detail: summarizeHTTPError(err)}
	}
	if status >= 500 {
		return Result{Name: name, Detail: fmt.Sprintf("unhealthy (%d)", status)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

func probe(ctx context.Context, method, endpoint, userAgent string) (int, error) {
	checkCtx, cancel := context.WithTimeout(ctx, httpCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, method, endpoint, nil)
	if err != nil {
		return 0, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := (&http.Client{Timeout: httpCheckTimeout}).Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// summarizeHTTPError produces a human-readable summary for failed probes.
func summarizeHTTPError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	return fmt.Sprintf("unreachable (%v)", err)
}
