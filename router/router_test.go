package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stanleyndaba/clario-detection-engine/commission"
	"github.com/stanleyndaba/clario-detection-engine/config"
	"github.com/stanleyndaba/clario-detection-engine/queue"
	"github.com/stanleyndaba/clario-detection-engine/sse"
	"github.com/stanleyndaba/clario-detection-engine/store"
)

func testSetup() http.Handler {
	cfg := &config.Config{
		Addr:            ":0",
		Env:             "test",
		MaxBodyBytes:    1 << 20,
		DefaultTimeout:  0,
		SSESharedSecret: "test-secret",
	}
	log := zerolog.New(io.Discard).With().Timestamp().Logger()

	q := queue.New(queue.Config{})
	hub := sse.NewHub()
	auth := sse.NewAuthenticator(cfg.SSESharedSecret, true)
	engine := commission.New((*store.Store)(nil), cfg.CommissionRate, cfg.DisputeWindow)

	return NewRouter(cfg, log, Deps{Queue: q, Hub: hub, Auth: auth, Commission: engine})
}

func TestHealthEndpoints(t *testing.T) {
	r := testSetup()

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"healthz", "/healthz", http.StatusOK},
		{"ready", "/ready", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			rw := httptest.NewRecorder()
			r.ServeHTTP(rw, req)
			if rw.Result().StatusCode != tc.status {
				t.Fatalf("expected %d for %s, got %d", tc.status, tc.path, rw.Result().StatusCode)
			}
		})
	}
}

func TestQueueStats(t *testing.T) {
	r := testSetup()

	req := httptest.NewRequest(http.MethodGet, "/queue-stats", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for /queue-stats, got %d", rw.Result().StatusCode)
	}
}

func TestConnectionStatusDemoMode(t *testing.T) {
	r := testSetup()

	req := httptest.NewRequest(http.MethodGet, "/connection-status", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for /connection-status under demo mode, got %d", rw.Result().StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := testSetup()

	req := httptest.NewRequest(http.MethodOptions, "/queue-stats", nil)
	req.Header.Set("Origin", "https://app.clario.io")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("expected CORS Allow-Origin header on preflight response")
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := testSetup()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	headers := []string{
		"X-Content-Type-Options",
		"X-Frame-Options",
		"Strict-Transport-Security",
	}
	for _, h := range headers {
		if rw.Header().Get(h) == "" {
			t.Fatalf("expected security header %s to be set", h)
		}
	}
}
