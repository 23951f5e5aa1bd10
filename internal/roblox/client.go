// Package roblox talks to the platform's authenticated HTTP API.
package roblox

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/creatorstats/qptrd/internal/outcome"
)

const defaultUsersBaseURL = "https://users.roblox.com"

// authenticatedUserPath returns 200 only with a live session cookie.
const authenticatedUserPath = "/v1/users/authenticated"

// Client performs liveness checks against the authenticated-user endpoint
// and carries the placeholder analytics call.
type Client struct {
	baseURL    string
	cookieName string
	client     *http.Client
	logger     *slog.Logger
}

// NewClient creates a client. baseURL overrides the users API endpoint;
// pass "" for production.
func NewClient(baseURL, cookieName string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultUsersBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		cookieName: cookieName,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Validate reports whether the credential still authenticates: true iff
// the authenticated-user endpoint returns 200 with the session cookie
// attached. Transport errors read as invalid.
func (c *Client) Validate(ctx context.Context, token string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+authenticatedUserPath, nil)
	if err != nil {
		return false
	}
	req.AddCookie(&http.Cookie{Name: c.cookieName, Value: token})

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("credential validation request failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	valid := resp.StatusCode == http.StatusOK
	c.logger.Info("credential validated", "valid", valid, "status", resp.StatusCode)
	return valid
}

// FetchAnalytics is the API-based metric retrieval slot. No public
// analytics endpoint exists yet, so it reports api_stub with no artifact;
// callers fall through to the browser scraper for the real value.
func (c *Client) FetchAnalytics(ctx context.Context, token, gameID string) *outcome.Outcome {
	o := outcome.OK(outcome.OKCached, outcome.MethodAPIStub)
	o.Diag("game_id", gameID)
	o.Diag("note", "analytics API pending, no artifact")
	return o
}
