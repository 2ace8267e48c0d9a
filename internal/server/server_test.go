package server

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muurk/softap/internal/logging"
	"github.com/muurk/softap/internal/netmode"
)

const testPage = "<html><body><form>setup</form></body></html>\n"

// recordingConfigurator records stages and fails the ones listed in fail.
type recordingConfigurator struct {
	mu     sync.Mutex
	stages []netmode.Stage
	fail   map[netmode.Stage]bool
	creds  []netmode.StationCredentials
}

func (r *recordingConfigurator) Apply(ctx context.Context, action netmode.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, action.Stage)
	if action.Stage == netmode.StageAssociate && action.Station != nil {
		r.creds = append(r.creds, *action.Station)
	}
	if r.fail[action.Stage] {
		return errors.New("scripted failure")
	}
	return nil
}

func (r *recordingConfigurator) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stages)
}

func (r *recordingConfigurator) joined() []netmode.StationCredentials {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]netmode.StationCredentials(nil), r.creds...)
}

func (r *recordingConfigurator) count(stage netmode.Stage) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.stages {
		if s == stage {
			n++
		}
	}
	return n
}

type harness struct {
	server     *Server
	controller *netmode.Controller
	configurer *recordingConfigurator
	cancel     context.CancelFunc
	result     chan serveResult
}

type serveResult struct {
	outcome Outcome
	err     error
}

func newHarness(t *testing.T, configurer *recordingConfigurator, pagePath string) *harness {
	t.Helper()

	if pagePath == "" {
		pagePath = filepath.Join(t.TempDir(), "index.html")
		if err := os.WriteFile(pagePath, []byte(testPage), 0644); err != nil {
			t.Fatal(err)
		}
	}

	controller := netmode.NewController(configurer, zap.NewNop())
	srv := New(&Config{
		Host:        "127.0.0.1",
		Port:        0,
		PagePath:    pagePath,
		ReadTimeout: 2 * time.Second,
		Fallback:    netmode.AccessPointConfig{SSID: "MySoftAP", Passphrase: "mypassword", StaticIP: "192.168.43.1", PrefixLen: 24},
	}, controller)

	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		server:     srv,
		controller: controller,
		configurer: configurer,
		cancel:     cancel,
		result:     make(chan serveResult, 1),
	}
	go func() {
		outcome, err := srv.Serve(ctx)
		h.result <- serveResult{outcome, err}
	}()
	t.Cleanup(func() {
		cancel()
		<-srv.Done()
	})
	return h
}

// roundTrip sends raw and reads until the server closes the connection.
func (h *harness) roundTrip(t *testing.T, raw string) string {
	t.Helper()

	conn, err := net.Dial("tcp", h.server.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write([]byte(raw)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	resp, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return string(resp)
}

func (h *harness) wait(t *testing.T) serveResult {
	t.Helper()
	select {
	case r := <-h.result:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
		return serveResult{}
	}
}

func saveRequest(body string) string {
	return "POST /save HTTP/1.1\r\nHost: 192.168.43.1:8080\r\nContent-Type: application/json\r\n\r\n" + body
}

func TestRouter_Index(t *testing.T) {
	h := newHarness(t, &recordingConfigurator{}, "")

	resp := h.roundTrip(t, "GET /index.html HTTP/1.1\r\nHost: 192.168.43.1\r\n\r\n")

	want := "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\n\r\n" + testPage
	if resp != want {
		t.Errorf("response = %q, want %q", resp, want)
	}
}

func TestRouter_NotFound(t *testing.T) {
	h := newHarness(t, &recordingConfigurator{}, "")

	tests := []struct {
		name string
		raw  string
	}{
		{"other path", "GET /foo HTTP/1.1\r\n\r\n"},
		{"root", "GET / HTTP/1.1\r\n\r\n"},
		{"wrong method for save", "GET /save HTTP/1.1\r\n\r\n"},
		{"wrong method for index", "POST /index.html HTTP/1.1\r\n\r\n"},
		{"garbage", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.roundTrip(t, tt.raw)
			if resp != notFoundResponse {
				t.Errorf("response = %q, want 404", resp)
			}
		})
	}
}

func TestRouter_SaveMissingFields(t *testing.T) {
	configurer := &recordingConfigurator{}
	h := newHarness(t, configurer, "")

	tests := []struct {
		name string
		raw  string
	}{
		{"both missing", saveRequest(`{"foo":"bar"}`)},
		{"password missing", saveRequest(`{"ssid":"Home"}`)},
		{"ssid missing", saveRequest(`{"password":"secret"}`)},
		{"empty body", saveRequest("")},
		{"no body separator", "POST /save HTTP/1.1\r\nHost: x\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.roundTrip(t, tt.raw)
			if !strings.HasPrefix(resp, "HTTP/1.1 400 Bad Request\r\n") {
				t.Errorf("status line = %q, want 400", firstLine(resp))
			}
			if !strings.Contains(resp, ErrorBody) {
				t.Errorf("response missing error page: %q", resp)
			}
		})
	}

	if n := configurer.total(); n != 0 {
		t.Errorf("configurator called %d times, want 0", n)
	}
}

func TestRouter_SaveJoinFailureFallsBack(t *testing.T) {
	configurer := &recordingConfigurator{fail: map[netmode.Stage]bool{netmode.StageAssociate: true}}
	h := newHarness(t, configurer, "")

	resp := h.roundTrip(t, saveRequest(`{"ssid":"Home","password":"secret"}`))

	// The response is only written after the fallback has finished.
	if resp != successResponse {
		t.Errorf("response = %q, want success page", resp)
	}
	if got := configurer.count(netmode.StageAssociate); got != 1 {
		t.Errorf("station join attempted %d times, want 1", got)
	}
	if got := configurer.count(netmode.StageRestartAccessPoint); got != 1 {
		t.Errorf("access point restarted %d times, want 1", got)
	}
	if mode := h.controller.CurrentMode(); mode != netmode.ModeAccessPoint {
		t.Errorf("mode = %s, want access-point", mode)
	}
	if creds := configurer.joined(); len(creds) != 1 || creds[0].SSID != "Home" || creds[0].Passphrase != "secret" {
		t.Errorf("credentials = %+v", creds)
	}

	// Still serving.
	resp = h.roundTrip(t, "GET /foo HTTP/1.1\r\n\r\n")
	if resp != notFoundResponse {
		t.Errorf("server stopped serving after a failed join")
	}
}

func TestRouter_SaveJoinFailureLogsStages(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(zap.NewNop()) })

	configurer := &recordingConfigurator{fail: map[netmode.Stage]bool{
		netmode.StageAssociate:       true,
		netmode.StageStartDHCPServer: true,
	}}
	h := newHarness(t, configurer, "")

	if resp := h.roundTrip(t, saveRequest(`{"ssid":"Home","password":"secret"}`)); resp != successResponse {
		t.Errorf("response = %q, want success page", resp)
	}

	entries := logs.FilterMessage("Join failed and access point could not be restored").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d fallback failures, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["join_stage"] != string(netmode.StageAssociate) {
		t.Errorf("join_stage = %v, want associate", fields["join_stage"])
	}
	if fields["fallback_stage"] != string(netmode.StageStartDHCPServer) {
		t.Errorf("fallback_stage = %v, want %s", fields["fallback_stage"], netmode.StageStartDHCPServer)
	}
}

func TestRouter_SaveJoinSuccessIsTerminal(t *testing.T) {
	configurer := &recordingConfigurator{}
	h := newHarness(t, configurer, "")

	resp := h.roundTrip(t, saveRequest(`{"ssid":"Home","password":"secret"}`))
	if resp != successResponse {
		t.Errorf("response = %q, want success page", resp)
	}

	r := h.wait(t)
	if r.err != nil {
		t.Errorf("Serve() error = %v", r.err)
	}
	if r.outcome != OutcomeProvisioned {
		t.Errorf("Serve() outcome = %s, want provisioned", r.outcome)
	}
	if h.server.Outcome() != OutcomeProvisioned {
		t.Errorf("Outcome() = %s, want provisioned", h.server.Outcome())
	}
	if got := configurer.count(netmode.StageAssociate); got != 1 {
		t.Errorf("station join attempted %d times, want 1", got)
	}
	if got := configurer.count(netmode.StageRestartAccessPoint); got != 0 {
		t.Errorf("access point restarted %d times, want 0", got)
	}
	if mode := h.controller.CurrentMode(); mode != netmode.ModeStation {
		t.Errorf("mode = %s, want station", mode)
	}

	// The listener is closed.
	if _, err := net.DialTimeout("tcp", h.server.Addr().String(), time.Second); err == nil {
		t.Error("server still accepting after provisioning")
	}
}

func TestRouter_MissingPageIsFatal(t *testing.T) {
	h := newHarness(t, &recordingConfigurator{}, filepath.Join(t.TempDir(), "missing.html"))

	resp := h.roundTrip(t, "GET /index.html HTTP/1.1\r\n\r\n")
	if resp != "" {
		t.Errorf("response = %q, want none", resp)
	}

	r := h.wait(t)
	if r.outcome != OutcomeFailed {
		t.Errorf("outcome = %s, want failed", r.outcome)
	}
	if !IsResourceError(r.err) {
		t.Errorf("Serve() error = %v, want *ResourceError", r.err)
	}
}

func TestHandleConnection_TruncatesAtBufferSize(t *testing.T) {
	configurer := &recordingConfigurator{}
	controller := netmode.NewController(configurer, zap.NewNop())
	srv := New(&Config{PagePath: "unused"}, controller)

	client, serverConn := net.Pipe()
	defer client.Close()

	// The password starts beyond the single read and is never seen.
	padding := strings.Repeat("x", BufferSize)
	raw := saveRequest(`{"ssid":"Home","pad":"` + padding + `","password":"secret"}`)
	go func() {
		_, _ = client.Write([]byte(raw))
	}()

	done := make(chan Outcome, 1)
	go func() {
		outcome, _ := srv.handleConnection(context.Background(), serverConn)
		done <- outcome
	}()

	resp, _ := io.ReadAll(client)
	if !strings.HasPrefix(string(resp), "HTTP/1.1 400") {
		t.Errorf("status line = %q, want 400", firstLine(string(resp)))
	}
	if outcome := <-done; outcome != OutcomeShutdown {
		t.Errorf("outcome = %s, want shutdown", outcome)
	}
	if n := configurer.total(); n != 0 {
		t.Errorf("configurator called %d times, want 0", n)
	}
}

func TestServe_ContextCancel(t *testing.T) {
	h := newHarness(t, &recordingConfigurator{}, "")

	h.cancel()
	r := h.wait(t)
	if r.err != nil || r.outcome != OutcomeShutdown {
		t.Errorf("Serve() = (%s, %v), want (shutdown, nil)", r.outcome, r.err)
	}
	if h.server.State() != StateStopped {
		t.Errorf("State() = %s, want stopped", h.server.State())
	}
}

func TestShutdown(t *testing.T) {
	h := newHarness(t, &recordingConfigurator{}, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if r := h.wait(t); r.outcome != OutcomeShutdown {
		t.Errorf("outcome = %s, want shutdown", r.outcome)
	}
}

func TestShutdown_WithoutServe(t *testing.T) {
	srv := New(&Config{Host: "127.0.0.1", Port: 0}, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Shutdown() took %s, want immediate return", elapsed)
	}

	// A late Serve sees the closed listener and stops straight away.
	outcome, err := srv.Serve(context.Background())
	if err != nil || outcome != OutcomeShutdown {
		t.Errorf("Serve() after Shutdown = (%s, %v), want (shutdown, nil)", outcome, err)
	}
}

func TestServe_NotStarted(t *testing.T) {
	srv := New(&Config{}, nil)
	if _, err := srv.Serve(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Serve() error = %v, want ErrNotStarted", err)
	}
}

func TestStart_BindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	srv := New(&Config{Host: "127.0.0.1", Port: port}, nil)

	err = srv.Start()
	var bindErr *BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("Start() error = %v, want *BindError", err)
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\r\n")
	return line
}
