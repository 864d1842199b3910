// Package fetcher retrieves pages either directly over HTTP or through an
// external renderer process, selecting per fetch based on configuration and
// a persisted availability probe.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Realistic Firefox user agent. Some sites reject unidentified clients.
const defaultUserAgent = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

const (
	defaultRendererPath = "chromium"
	defaultTimeout      = 30 * time.Second
	probeTimeout        = 15 * time.Second
	// Known-reachable address used to probe the renderer.
	probeURL = "https://www.google.com"
)

// Options configures the fetcher behavior.
type Options struct {
	UserAgent       string
	TimeoutSeconds  int
	RendererEnabled bool
	RendererPath    string // empty = "chromium" from PATH
	StateDir        string // empty = XDG state dir
}

// NetworkError reports a failed direct fetch: a connection problem or a
// non-success response status.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when the request never completed
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RenderError reports a renderer that ran but produced no usable page:
// non-zero exit, a known error boilerplate body, or a file type the
// renderer cannot dump.
type RenderError struct {
	URL    string
	Reason string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering %s: %s", e.URL, e.Reason)
}

func (e *RenderError) Unwrap() error { return e.Err }

// SpawnError reports a renderer process that could not be started at all,
// typically a missing binary.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning renderer %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Backend is a page retrieval capability. The cache only ever sees this
// interface, never the process-spawning details behind it.
type Backend interface {
	Name() string
	Fetch(address string) ([]byte, error)
}

// direct fetches with a plain HTTP GET.
type direct struct {
	userAgent string
	timeout   time.Duration
}

func (d *direct) Name() string { return "direct" }

func (d *direct) Fetch(address string) ([]byte, error) {
	req, err := http.NewRequest("GET", address, nil)
	if err != nil {
		return nil, &NetworkError{URL: address, Err: err}
	}
	req.Header.Set("User-Agent", d.userAgent)

	client := &http.Client{Timeout: d.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: address, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{URL: address, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: address, Err: err}
	}
	return body, nil
}

// rendered fetches by dumping the DOM from a headless renderer process, so
// javascript-built pages come back materialized. No timeout is applied
// beyond what the renderer itself enforces.
type rendered struct {
	path string
}

func (r *rendered) Name() string { return "rendered" }

// Extensions the renderer dumps nothing useful for.
var unsupportedExtensions = []string{".pdf"}

// Markers the renderer leaves in its output when navigation failed.
var rendererErrorMarkers = []string{
	"chrome-error://chromewebdata",
	"ERR_NAME_NOT_RESOLVED",
	"ERR_CONNECTION_REFUSED",
}

func (r *rendered) Fetch(address string) ([]byte, error) {
	for _, ext := range unsupportedExtensions {
		if strings.HasSuffix(strings.ToLower(address), ext) {
			return nil, &RenderError{URL: address, Reason: "unsupported extension " + ext}
		}
	}

	out, err := exec.Command(r.path, "--headless", "--dump-dom", address).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &RenderError{URL: address, Reason: "renderer exited with an error", Err: err}
		}
		return nil, &SpawnError{Path: r.path, Err: err}
	}

	if reason, bad := isRendererErrorPage(out); bad {
		return nil, &RenderError{URL: address, Reason: reason}
	}
	return out, nil
}

func isRendererErrorPage(content []byte) (string, bool) {
	page := string(content)
	for _, marker := range rendererErrorMarkers {
		if strings.Contains(page, marker) {
			return "renderer error page (" + marker + ")", true
		}
	}
	return "", false
}

// Selector picks a backend for each fetch. With the renderer disabled it
// always fetches directly; otherwise it consults the persisted availability
// flag, probing once per renderer configuration.
type Selector struct {
	opts Options
}

// New creates a Selector, filling in defaults for unset options.
func New(opts Options) *Selector {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.TimeoutSeconds <= 0 {
		opts.TimeoutSeconds = int(defaultTimeout / time.Second)
	}
	if opts.RendererPath == "" {
		opts.RendererPath = defaultRendererPath
	}
	return &Selector{opts: opts}
}

// Backend returns the backend the next fetch would use.
func (s *Selector) Backend() Backend {
	if s.opts.RendererEnabled && s.rendererAvailable() {
		return &rendered{path: s.opts.RendererPath}
	}
	return &direct{
		userAgent: s.opts.UserAgent,
		timeout:   time.Duration(s.opts.TimeoutSeconds) * time.Second,
	}
}

// Fetch retrieves address through the selected backend.
func (s *Selector) Fetch(address string) ([]byte, error) {
	return s.Backend().Fetch(address)
}

// StateDir returns the state directory, honouring XDG_STATE_HOME.
func StateDir() (string, error) {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "bookmark"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "bookmark"), nil
}

const stateFile = "renderer_available"

// fingerprint identifies the renderer configuration a probe result was
// recorded under. A stored result from a different configuration is stale
// and forces a re-probe.
func (s *Selector) fingerprint() string {
	return fmt.Sprintf("%t|%s", s.opts.RendererEnabled, s.opts.RendererPath)
}

func (s *Selector) statePath() (string, error) {
	dir := s.opts.StateDir
	if dir == "" {
		d, err := StateDir()
		if err != nil {
			return "", err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, stateFile), nil
}

// rendererAvailable reports whether the renderer is usable, probing it and
// recording the result when no current answer is on file. Concurrent runs
// may race on the state file; last writer wins.
func (s *Selector) rendererAvailable() bool {
	path, err := s.statePath()
	if err != nil {
		return s.probe()
	}
	if available, ok := readState(path, s.fingerprint()); ok {
		return available
	}
	available := s.probe()
	writeState(path, available, s.fingerprint())
	return available
}

// probe spawns the renderer against a known-reachable address. A probe is
// slow; rendererAvailable persists its result.
func (s *Selector) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	err := exec.CommandContext(ctx, s.opts.RendererPath, "--headless", "--dump-dom", probeURL).Run()
	return err == nil
}

// readState reads the availability flag, rejecting entries recorded under a
// different renderer configuration. File format: "1" or "0", a newline,
// then the configuration fingerprint.
func readState(path, fingerprint string) (available, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, false
	}
	lines := strings.SplitN(strings.TrimRight(string(data), "\n"), "\n", 2)
	if len(lines) != 2 || lines[1] != fingerprint {
		return false, false
	}
	switch lines[0] {
	case "1":
		return true, true
	case "0":
		return false, true
	}
	return false, false
}

func writeState(path string, available bool, fingerprint string) {
	flag := "0"
	if available {
		flag = "1"
	}
	// Best effort: a failed write only means probing again next run.
	_ = os.WriteFile(path, []byte(flag+"\n"+fingerprint+"\n"), 0644)
}
