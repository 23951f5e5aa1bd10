package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/creatorstats/qptrd/internal/solver"
)

// balanceCacheTTL bounds how often the solver's balance endpoint is hit;
// the provider rate-limits aggressive polling.
const balanceCacheTTL = 60 * time.Second

// BalanceResponse is the solver balance payload.
type BalanceResponse struct {
	Configured bool    `json:"configured"`
	Provider   string  `json:"provider,omitempty"`
	Balance    float64 `json:"balance,omitempty"`
	Cached     bool    `json:"cached"`
	Error      string  `json:"error,omitempty"`
}

// BalanceOutput is the output wrapper for Huma.
type BalanceOutput struct {
	Body BalanceResponse
}

// BalanceHandler proxies the solver's balance query with a short cache.
type BalanceHandler struct {
	solver solver.Solver // nil when no API key is configured
	logger *slog.Logger

	mu        sync.Mutex
	balance   float64
	fetchedAt time.Time
}

// NewBalanceHandler creates a balance handler.
func NewBalanceHandler(slv solver.Solver, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{solver: slv, logger: logger}
}

// Handle returns the solver account balance.
func (h *BalanceHandler) Handle(ctx context.Context) *BalanceResponse {
	if h.solver == nil {
		return &BalanceResponse{Configured: false}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.fetchedAt.IsZero() && time.Since(h.fetchedAt) < balanceCacheTTL {
		return &BalanceResponse{
			Configured: true,
			Provider:   h.solver.Name(),
			Balance:    h.balance,
			Cached:     true,
		}
	}

	bal, err := h.solver.Balance(ctx)
	if err != nil {
		h.logger.Warn("solver balance query failed", "error", err)
		return &BalanceResponse{
			Configured: true,
			Provider:   h.solver.Name(),
			Error:      err.Error(),
		}
	}

	h.balance = bal
	h.fetchedAt = time.Now()
	return &BalanceResponse{
		Configured: true,
		Provider:   h.solver.Name(),
		Balance:    bal,
	}
}
