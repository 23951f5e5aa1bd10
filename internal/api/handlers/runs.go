package handlers

import (
	"context"
	"log/slog"

	"github.com/creatorstats/qptrd/internal/journal"
)

const defaultRunsLimit = 20
const maxRunsLimit = 200

// RunsResponse lists recent journaled attempts, newest first.
type RunsResponse struct {
	Runs []journal.Entry `json:"runs"`
}

// RunsInput is the input wrapper for Huma.
type RunsInput struct {
	Limit int `query:"limit" doc:"Maximum entries to return"`
}

// RunsOutput is the output wrapper for Huma.
type RunsOutput struct {
	Body RunsResponse
}

// RunsHandler serves the run journal.
type RunsHandler struct {
	journal *journal.Store
	logger  *slog.Logger
}

// NewRunsHandler creates a runs handler.
func NewRunsHandler(jnl *journal.Store, logger *slog.Logger) *RunsHandler {
	return &RunsHandler{journal: jnl, logger: logger}
}

// Handle returns recent journal entries.
func (h *RunsHandler) Handle(ctx context.Context, limit int) *RunsResponse {
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}

	entries, err := h.journal.Recent(limit)
	if err != nil {
		h.logger.Error("journal read failed", "error", err)
		return &RunsResponse{Runs: []journal.Entry{}}
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return &RunsResponse{Runs: entries}
}
