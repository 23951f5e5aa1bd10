// Package authflow implements the top-level authentication state machine:
// cached credential first, one interactive login at most.
package authflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/creatorstats/qptrd/internal/credential"
	"github.com/creatorstats/qptrd/internal/outcome"
)

// APIClient is the authenticated HTTP API surface the strategy needs.
type APIClient interface {
	Validate(ctx context.Context, token string) bool
	FetchAnalytics(ctx context.Context, token, gameID string) *outcome.Outcome
}

// Interactive performs a browser login and, in the same session, the
// analytics scrape. It returns the harvested credential (empty when the
// login never produced one) and the request outcome whose Artifact is the
// scraped metric.
type Interactive interface {
	Run(ctx context.Context, gameID string) (token string, result *outcome.Outcome)
}

// Strategy resolves a metric request. Order: cached credential with a
// liveness check, then a single interactive login. A stale cached
// credential is cleared and burns the retry budget; the interactive path
// runs at most once per request.
type Strategy struct {
	store       *credential.Store
	api         APIClient
	interactive Interactive
	logger      *slog.Logger
}

// NewStrategy wires the state machine.
func NewStrategy(store *credential.Store, api APIClient, interactive Interactive, logger *slog.Logger) *Strategy {
	return &Strategy{store: store, api: api, interactive: interactive, logger: logger}
}

// Resolve runs the state machine for one request.
func (s *Strategy) Resolve(ctx context.Context, gameID string) *outcome.Outcome {
	start := time.Now()

	if cred := s.store.Get(); cred != nil {
		if s.api.Validate(ctx, cred.Token) {
			s.logger.Info("cached credential validated",
				"credential", cred.Masked(),
				"game_id", gameID,
			)

			o := outcome.OK(outcome.OKCached, outcome.MethodCached)
			stub := s.api.FetchAnalytics(ctx, cred.Token, gameID)
			o.Artifact = stub.Artifact
			o.Diag("analytics_method", string(stub.Method))
			o.Timing("resolve", time.Since(start))
			return o
		}

		s.logger.Warn("cached credential stale, clearing", "credential", cred.Masked())
		s.store.Clear()
	}

	token, result := s.interactive.Run(ctx, gameID)

	if token != "" {
		// Harvested credentials are kept even when a later step failed;
		// the next request revalidates before use.
		s.store.Put(token)
	}

	if !result.Success {
		result.Timing("resolve", time.Since(start))
		return result
	}

	if !s.api.Validate(ctx, token) {
		// The login looked successful but the credential does not
		// authenticate, and the interactive budget is spent.
		s.store.Clear()
		s.logger.Error("harvested credential failed liveness check")
		return outcome.Fail(outcome.LoginStateUnclear).
			Diag("post_login_validation", false).
			Timing("resolve", time.Since(start))
	}

	result.Timing("resolve", time.Since(start))
	return result
}
