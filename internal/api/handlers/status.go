// Package handlers implements the control surface endpoints.
package handlers

import (
	"context"
	"time"

	"github.com/creatorstats/qptrd/internal/credential"
	"github.com/creatorstats/qptrd/internal/geo"
	"github.com/creatorstats/qptrd/internal/outcome"
	"github.com/creatorstats/qptrd/internal/version"
)

// httpStatus maps an outcome to its response code: classified failures
// stay 200 with success=false, only internal_error is a 500.
func httpStatus(o *outcome.Outcome) int {
	if o.Reason == outcome.InternalError {
		return 500
	}
	return 200
}

// StatusResponse is the health payload.
type StatusResponse struct {
	Status           string     `json:"status"`
	Version          string     `json:"version"`
	UptimeSeconds    int64      `json:"uptime_seconds"`
	CredentialCached bool       `json:"credential_cached"`
	Region           geo.Report `json:"region"`
}

// StatusOutput is the output wrapper for Huma.
type StatusOutput struct {
	Body StatusResponse
}

// StatusHandler serves health plus the current region report.
type StatusHandler struct {
	probe   *geo.Probe
	store   *credential.Store
	started time.Time
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(probe *geo.Probe, store *credential.Store) *StatusHandler {
	return &StatusHandler{probe: probe, store: store, started: time.Now()}
}

// Handle returns the health status.
func (h *StatusHandler) Handle(ctx context.Context) *StatusResponse {
	return &StatusResponse{
		Status:           "healthy",
		Version:          version.Get().Version,
		UptimeSeconds:    int64(time.Since(h.started).Seconds()),
		CredentialCached: h.store.Get() != nil,
		Region:           h.probe.Do(ctx),
	}
}
