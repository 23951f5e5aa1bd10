// Package login drives the interactive login flow inside a leased browser
// session and harvests the session credential.
package login

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/creatorstats/qptrd/internal/browser"
	"github.com/creatorstats/qptrd/internal/challenge"
	"github.com/creatorstats/qptrd/internal/config"
	"github.com/creatorstats/qptrd/internal/consent"
	"github.com/creatorstats/qptrd/internal/geo"
	"github.com/creatorstats/qptrd/internal/outcome"
)

// Stable identifiers of the three login form controls.
const (
	usernameSelector = "#login-username"
	passwordSelector = "#login-password"
	submitSelector   = "#login-button"
)

// Flow runs the login sequence: navigate, suppress consent, fill the form,
// click submit through the robust-click ladder, resolve any challenge, and
// harvest the session cookie.
type Flow struct {
	geo       *geo.Probe
	consent   *consent.Suppressor
	challenge *challenge.Runner
	logger    *slog.Logger

	loginURL    string
	cookieName  string
	settleAfter time.Duration
	fieldPause  time.Duration
}

// NewFlow wires a flow from its collaborators and configuration.
func NewFlow(probe *geo.Probe, suppressor *consent.Suppressor, runner *challenge.Runner, cfg *config.Config, logger *slog.Logger) *Flow {
	return &Flow{
		geo:         probe,
		consent:     suppressor,
		challenge:   runner,
		logger:      logger,
		loginURL:    cfg.LoginURL,
		cookieName:  cfg.SessionCookieName,
		settleAfter: cfg.SettleAfterLogin,
		fieldPause:  300 * time.Millisecond,
	}
}

// classifyNoCookie maps a post-login page without a harvested cookie to a
// failure reason: a visible credential error reads as bad_credentials,
// anything else as login_state_unclear.
func classifyNoCookie(pageURL, bodyText string) outcome.ReasonCode {
	if challenge.Classify(pageURL, bodyText) == challenge.StateLoginError {
		return outcome.BadCredentials
	}
	return outcome.LoginStateUnclear
}

// Login executes the full sequence and returns an Outcome whose Artifact
// is the harvested session cookie value on success.
func (f *Flow) Login(ctx context.Context, sess *browser.Session, username, password string) *outcome.Outcome {
	start := time.Now()

	region := f.geo.Do(ctx)
	f.logger.Info("login starting",
		"country", region.CountryCode,
		"restricted_region", region.Restricted,
	)

	if err := sess.Navigate(f.loginURL); err != nil {
		return f.fail(outcome.BrowserUnavailable, sess, region).
			Diag("stage", "navigate").
			Diag("error", err.Error())
	}
	if err := sess.Settle(ctx, f.settleAfter); err != nil {
		return f.fail(outcome.InternalError, sess, region).Diag("error", err.Error())
	}

	suppressed := f.consent.Suppress(ctx, sess)

	userEl, err := sess.Page.Timeout(sess.ElementWait).Element(usernameSelector)
	if err != nil {
		return f.fail(outcome.FormMissing, sess, region).Diag("missing", usernameSelector)
	}
	passEl, err := sess.Page.Timeout(2 * time.Second).Element(passwordSelector)
	if err != nil {
		return f.fail(outcome.FormMissing, sess, region).Diag("missing", passwordSelector)
	}
	submitEl, err := sess.Page.Timeout(2 * time.Second).Element(submitSelector)
	if err != nil {
		return f.fail(outcome.FormMissing, sess, region).Diag("missing", submitSelector)
	}

	// The fields were already located; a failure typing into them is a
	// driver fault, not a missing form.
	if err := fillField(userEl, username); err != nil {
		return f.fail(outcome.InternalError, sess, region).
			Diag("stage", "fill_username").
			Diag("error", err.Error())
	}
	if err := sess.Settle(ctx, f.fieldPause); err != nil {
		return f.fail(outcome.InternalError, sess, region).Diag("error", err.Error())
	}
	if err := fillField(passEl, password); err != nil {
		return f.fail(outcome.InternalError, sess, region).
			Diag("stage", "fill_password").
			Diag("error", err.Error())
	}

	// Consent dialogs can reappear while the form is being filled.
	f.consent.Suppress(ctx, sess)

	click := robustClick(ctx, sess, submitEl, f.logger)
	if click.Err != nil {
		o := f.fail(outcome.ClickIntercepted, sess, region).
			Diag("click_attempts", click.Attempts)
		if interceptor := interceptorFrom(click.Err.Error()); interceptor != "" {
			o.Diag("intercepting_element", interceptor)
		}
		return o
	}
	f.logger.Info("submit clicked",
		"strategy", click.Strategy,
		"state_changed", click.Changed,
	)

	if err := sess.Settle(ctx, f.settleAfter); err != nil {
		return f.fail(outcome.InternalError, sess, region).Diag("error", err.Error())
	}

	resolution := f.challenge.Resolve(ctx, sess)
	if resolution.Failed() {
		o := f.fail(resolution.Reason, sess, region)
		for k, v := range resolution.Diagnostics {
			o.Diag(k, v)
		}
		return o
	}

	token, found := sess.Cookie(f.cookieName)
	if !found {
		pageURL, body := sess.URL(), sess.BodyText()
		return f.fail(classifyNoCookie(pageURL, body), sess, region).
			Diag("current_url", pageURL).
			Diag("body_sample", sample(body, 300))
	}

	reason := outcome.OKInteractiveNoChallenge
	method := outcome.MethodInteractive
	if resolution.Detected {
		reason = outcome.OKInteractiveSolved
		method = resolution.Method
	}

	o := outcome.OK(reason, method)
	o.Artifact = token
	f.attachScreenshot(o, sess)
	f.regionDiag(o, region)
	for k, v := range resolution.Diagnostics {
		o.Diag(k, v)
	}
	o.Diag("consent_accepted", suppressed.Accepted)
	o.Diag("consent_destroyed", suppressed.Destroyed)
	o.Diag("click_strategy", click.Strategy)
	o.Timing("login", time.Since(start))

	f.logger.Info("login succeeded", "reason_code", reason, "method", method)
	return o
}

// formField is the input surface fillField drives. Satisfied by
// *rod.Element.
type formField interface {
	SelectAllText() error
	Input(text string) error
}

// fillField clears an input and types the value.
func fillField(el formField, value string) error {
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}

// sample truncates body text for diagnostics.
func sample(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (f *Flow) fail(reason outcome.ReasonCode, sess *browser.Session, region geo.Report) *outcome.Outcome {
	o := outcome.Fail(reason)
	f.attachScreenshot(o, sess)
	f.regionDiag(o, region)
	f.logger.Warn("login failed", "reason_code", reason)
	return o
}

func (f *Flow) attachScreenshot(o *outcome.Outcome, sess *browser.Session) {
	if shot := sess.Screenshot(); shot != nil {
		o.Screenshot = base64.StdEncoding.EncodeToString(shot)
	}
}

func (f *Flow) regionDiag(o *outcome.Outcome, region geo.Report) {
	o.Diag("region", map[string]any{
		"country_code":         region.CountryCode,
		"continent_code":       region.ContinentCode,
		"is_restricted_region": region.Restricted,
	})
}
