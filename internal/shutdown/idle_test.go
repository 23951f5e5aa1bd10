package shutdown

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestIsProbe(t *testing.T) {
	tests := []struct {
		path string
		ua   string
		want bool
	}{
		{"/status", "", true},
		{"/health", "", true},
		{"/healthz", "", true},
		{"/scrape", "", false},
		{"/scrape", "Consul-HealthCheck/1.0", true},
		{"/debug/region", "curl/8.0", false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.ua != "" {
			req.Header.Set("User-Agent", tt.ua)
		}
		if got := isProbe(req); got != tt.want {
			t.Errorf("isProbe(%s, ua=%q) = %v, want %v", tt.path, tt.ua, got, tt.want)
		}
	}
}

func TestIdleMonitor_Disabled(t *testing.T) {
	m := NewIdleMonitor(0, testLogger())
	if m.Enabled() {
		t.Error("zero timeout reported enabled")
	}
	m.Start() // must not spawn the watcher

	select {
	case <-m.ShutdownChan():
		t.Error("disabled monitor signaled shutdown")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestIdleMonitor_ProbesDoNotResetTimer(t *testing.T) {
	m := NewIdleMonitor(time.Hour, testLogger())
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	before := m.IdleTime()
	time.Sleep(10 * time.Millisecond)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if m.IdleTime() < before {
		t.Error("health probe reset the idle timer")
	}

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scrape", nil))
	if m.IdleTime() > 5*time.Millisecond {
		t.Error("real request did not reset the idle timer")
	}
}
