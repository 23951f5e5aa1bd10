package handlers

import (
	"context"
	"log/slog"

	"github.com/creatorstats/qptrd/internal/credential"
	"github.com/creatorstats/qptrd/internal/geo"
	"github.com/creatorstats/qptrd/internal/outcome"
)

// RegionOutput is the output wrapper for Huma.
type RegionOutput struct {
	Body geo.Report
}

// RegionHandler runs the geolocation probe on its own.
type RegionHandler struct {
	probe *geo.Probe
}

// NewRegionHandler creates a region handler.
func NewRegionHandler(probe *geo.Probe) *RegionHandler {
	return &RegionHandler{probe: probe}
}

// Handle probes and reports the current egress region.
func (h *RegionHandler) Handle(ctx context.Context) *geo.Report {
	report := h.probe.Do(ctx)
	return &report
}

// DebugLoginOutput is the output wrapper for Huma.
type DebugLoginOutput struct {
	Status int
	Body   outcome.Outcome
}

// LoginRunner runs the login flow by itself, with no scrape attached.
type LoginRunner interface {
	LoginOnly(ctx context.Context) (token string, result *outcome.Outcome)
}

// DebugLoginHandler runs the interactive login flow in isolation, without
// the cached-credential path or a scrape. Screenshots stay attached so an
// operator can see what the browser saw.
type DebugLoginHandler struct {
	runner LoginRunner
	store  *credential.Store
	logger *slog.Logger
}

// NewDebugLoginHandler creates a debug login handler.
func NewDebugLoginHandler(runner LoginRunner, store *credential.Store, logger *slog.Logger) *DebugLoginHandler {
	return &DebugLoginHandler{runner: runner, store: store, logger: logger}
}

// Handle runs one forced interactive login. The harvested credential is
// stored for later requests but only its masked form is returned.
func (h *DebugLoginHandler) Handle(ctx context.Context) *DebugLoginOutput {
	h.logger.Info("debug login requested")

	token, result := h.runner.LoginOnly(ctx)
	if token != "" {
		h.store.Put(token)
		result.Artifact = credential.Credential{Token: token}.Masked()
	}

	return &DebugLoginOutput{Status: httpStatus(result), Body: *result}
}
