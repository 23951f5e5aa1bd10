package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/creatorstats/qptrd/internal/journal"
	"github.com/creatorstats/qptrd/internal/outcome"
)

// Resolver runs the authentication state machine plus scrape for a game.
type Resolver interface {
	Resolve(ctx context.Context, gameID string) *outcome.Outcome
}

// ScrapeRequest is the scrape request body.
type ScrapeRequest struct {
	GameID string `json:"game_id" required:"true" minLength:"1" doc:"Experience (universe) identifier"`
}

// ScrapeInput is the input wrapper for Huma.
type ScrapeInput struct {
	Body ScrapeRequest
}

// ScrapeOutput is the output wrapper for Huma.
type ScrapeOutput struct {
	Status int
	Body   outcome.Outcome
}

// ScrapeHandler serves metric requests.
type ScrapeHandler struct {
	resolver Resolver
	journal  *journal.Store
	logger   *slog.Logger
}

// NewScrapeHandler creates a scrape handler. jnl may be nil when the run
// journal is disabled.
func NewScrapeHandler(resolver Resolver, jnl *journal.Store, logger *slog.Logger) *ScrapeHandler {
	return &ScrapeHandler{resolver: resolver, journal: jnl, logger: logger}
}

// Handle resolves one metric request and journals the attempt.
func (h *ScrapeHandler) Handle(ctx context.Context, req *ScrapeRequest) *ScrapeOutput {
	start := time.Now()

	h.logger.Info("scrape requested", "game_id", req.GameID)
	o := h.resolver.Resolve(ctx, req.GameID)

	if h.journal != nil {
		if err := h.journal.Record(req.GameID, o, time.Since(start)); err != nil {
			h.logger.Warn("journal write failed", "error", err)
		}
	}

	h.logger.Info("scrape finished",
		"game_id", req.GameID,
		"success", o.Success,
		"reason_code", o.Reason,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	return &ScrapeOutput{Status: httpStatus(o), Body: *o}
}
