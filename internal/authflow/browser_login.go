package authflow

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"

	"github.com/creatorstats/qptrd/internal/browser"
	"github.com/creatorstats/qptrd/internal/config"
	"github.com/creatorstats/qptrd/internal/login"
	"github.com/creatorstats/qptrd/internal/outcome"
	"github.com/creatorstats/qptrd/internal/scraper"
)

// BrowserLogin is the Interactive implementation: one leased browser
// session carrying the full login flow and, on success, the analytics
// scrape before release.
type BrowserLogin struct {
	leaser  *browser.Leaser
	flow    *login.Flow
	scraper *scraper.Scraper
	logger  *slog.Logger

	username string
	password string
}

// NewBrowserLogin wires the interactive path.
func NewBrowserLogin(leaser *browser.Leaser, flow *login.Flow, scr *scraper.Scraper, cfg *config.Config, logger *slog.Logger) *BrowserLogin {
	return &BrowserLogin{
		leaser:   leaser,
		flow:     flow,
		scraper:  scr,
		logger:   logger,
		username: cfg.RobloxUsername,
		password: cfg.RobloxPassword,
	}
}

// sessionFailure classifies a WithSession error. A panic recovered from
// the browser steps is a fault in this process; anything else means no
// browser could be leased.
func sessionFailure(err error) *outcome.Outcome {
	reason := outcome.BrowserUnavailable
	if errors.Is(err, browser.ErrStepPanicked) {
		reason = outcome.InternalError
	}
	return outcome.Fail(reason).Diag("error", err.Error())
}

// LoginOnly performs the login flow without a scrape. Used by the debug
// surface to exercise the flow in isolation.
func (b *BrowserLogin) LoginOnly(ctx context.Context) (string, *outcome.Outcome) {
	var (
		token  string
		result *outcome.Outcome
	)

	err := b.leaser.WithSession(ctx, func(sess *browser.Session) error {
		result = b.flow.Login(ctx, sess, b.username, b.password)
		if result.Success {
			token = result.Artifact
			result.Artifact = ""
		}
		return nil
	})
	if err != nil {
		b.logger.Error("browser session failed", "error", err)
		return "", sessionFailure(err)
	}

	return token, result
}

// Run implements Interactive.
func (b *BrowserLogin) Run(ctx context.Context, gameID string) (string, *outcome.Outcome) {
	var (
		token  string
		result *outcome.Outcome
	)

	err := b.leaser.WithSession(ctx, func(sess *browser.Session) error {
		result = b.flow.Login(ctx, sess, b.username, b.password)
		if !result.Success {
			return nil
		}

		// The flow's artifact is the credential; the request's artifact
		// is the metric scraped with it.
		token = result.Artifact
		result.Artifact = ""

		scraped := b.scraper.Scrape(ctx, sess, gameID)
		if scraped.Reason != "" {
			fail := outcome.Fail(scraped.Reason)
			for k, v := range result.Diagnostics {
				fail.Diag(k, v)
			}
			if scraped.Screenshot != nil {
				fail.Screenshot = base64.StdEncoding.EncodeToString(scraped.Screenshot)
			}
			result = fail
			return nil
		}

		result.Artifact = scraped.QPTR
		if scraped.Screenshot != nil {
			result.Screenshot = base64.StdEncoding.EncodeToString(scraped.Screenshot)
		}
		return nil
	})
	if err != nil {
		b.logger.Error("browser session failed", "error", err)
		return "", sessionFailure(err)
	}

	return token, result
}
