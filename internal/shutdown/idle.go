// Package shutdown provides graceful shutdown utilities including idle
// monitoring for scale-to-zero deployments.
package shutdown

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// healthPaths are probe endpoints that do not count as activity.
var healthPaths = map[string]bool{
	"/status":  true,
	"/health":  true,
	"/healthz": true,
}

// isProbe reports whether a request is a health probe. Probes never reset
// the idle timer.
func isProbe(r *http.Request) bool {
	if healthPaths[r.URL.Path] {
		return true
	}
	return strings.Contains(r.Header.Get("User-Agent"), "HealthCheck")
}

// IdleMonitor signals shutdown after a configured stretch with no real
// requests and none in flight. A timeout of zero disables it.
type IdleMonitor struct {
	timeout time.Duration
	logger  *slog.Logger

	lastRequest atomic.Value // time.Time
	inFlight    atomic.Int64

	stopCh     chan struct{}
	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

// NewIdleMonitor creates a monitor with the given idle timeout.
func NewIdleMonitor(timeout time.Duration, logger *slog.Logger) *IdleMonitor {
	m := &IdleMonitor{
		timeout:    timeout,
		logger:     logger,
		stopCh:     make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}
	m.lastRequest.Store(time.Now())
	return m
}

// Enabled reports whether idle monitoring is active.
func (m *IdleMonitor) Enabled() bool { return m.timeout > 0 }

// Start begins the idle watch. No-op when disabled.
func (m *IdleMonitor) Start() {
	if !m.Enabled() {
		m.logger.Info("idle shutdown disabled")
		return
	}
	m.logger.Info("idle shutdown armed", "timeout", m.timeout)
	m.wg.Add(1)
	go m.run()
}

// Stop tears the monitor down.
func (m *IdleMonitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

// ShutdownChan is closed when the idle timeout fires. Main selects on it
// alongside the signal channel.
func (m *IdleMonitor) ShutdownChan() <-chan struct{} {
	return m.shutdownCh
}

// IdleTime returns how long the server has gone without a real request.
func (m *IdleMonitor) IdleTime() time.Duration {
	return time.Since(m.lastRequest.Load().(time.Time))
}

func (m *IdleMonitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			idle := m.IdleTime()
			if idle > m.timeout && m.inFlight.Load() == 0 {
				m.logger.Info("idle timeout reached, signaling shutdown",
					"idle_time", idle.Round(time.Second),
				)
				close(m.shutdownCh)
				return
			}
		}
	}
}

// Middleware tracks request activity. Health probes pass through without
// touching the timer.
func (m *IdleMonitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isProbe(r) {
			next.ServeHTTP(w, r)
			return
		}

		m.inFlight.Add(1)
		m.lastRequest.Store(time.Now())
		defer func() {
			m.inFlight.Add(-1)
			m.lastRequest.Store(time.Now())
		}()

		next.ServeHTTP(w, r)
	})
}
