package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vcstech/pulseline-core/internal/gpio"
	"github.com/vcstech/pulseline-core/internal/infrastructure/config"
	"github.com/vcstech/pulseline-core/internal/infrastructure/logging"
	"github.com/vcstech/pulseline-core/internal/pulse"
)

// testServer creates a Server backed by a real line registry with
// simulated outputs. The returned handler is the full router with
// middleware, served via httptest.
func testServer(t *testing.T, lines ...string) (*Server, http.Handler) {
	t.Helper()

	registry := pulse.NewRegistry(pulse.RegistryConfig{TicksPerSecond: 1000})
	t.Cleanup(registry.Close)

	for _, name := range lines {
		if _, err := registry.Register(context.Background(), name, gpio.NewSim(), pulse.Binding{Source: pulse.SourceConfig}); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:   log,
		Registry: registry,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	srv.hub = NewHub(srv.wsCfg, log)

	return srv, srv.buildRouter()
}

// doRequest runs one request through the router and returns the recorder.
func doRequest(t *testing.T, handler http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestNewValidation(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	registry := pulse.NewRegistry(pulse.RegistryConfig{})
	defer registry.Close()

	if _, err := New(Deps{Registry: registry}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() without registry should fail")
	}
	if _, err := New(Deps{Logger: log, Registry: registry}); err != nil {
		t.Errorf("New() with required deps failed: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, handler := testServer(t, "led0", "led1")

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}

	body := decodeJSON[map[string]any](t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
	if body["lines"] != float64(2) {
		t.Errorf("lines = %v, want 2", body["lines"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	_, handler := testServer(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing generated X-Request-ID header")
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/health", "", map[string]string{"X-Request-ID": "req-42"})
	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42 echoed back", got)
	}
}

func TestHealthCheckBeforeStart(t *testing.T) {
	srv, _ := testServer(t)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck before Start should report not started")
	}
}

func TestCloseBeforeStart(t *testing.T) {
	srv, _ := testServer(t)

	if err := srv.Close(); err != nil {
		t.Errorf("Close before Start should be a no-op, got %v", err)
	}
}
