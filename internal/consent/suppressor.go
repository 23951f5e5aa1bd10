// Package consent detects and neutralizes the consent interstitial that
// occludes the login form in restricted regions.
package consent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ysmood/gson"

	"github.com/creatorstats/qptrd/internal/browser"
)

// Page is the document surface a suppression pass drives. Satisfied by
// *browser.Session.
type Page interface {
	Eval(js string, args ...any) (gson.JSON, error)
	Frame(selector string) (browser.Evaluator, error)
	Settle(ctx context.Context, d time.Duration) error
}

// Result reports what a suppression pass did. The operation itself never
// fails the request.
type Result struct {
	Destroyed int `json:"destroyed"`
	Accepted  int `json:"accepted"`
}

// framePatterns locate the consent vendors' iframes. Tried in order; a
// pattern that matches nothing is skipped silently.
var framePatterns = []string{
	`iframe[src*="consent"]`,
	`iframe[id*="sp_message_iframe"]`,
	`iframe[src*="privacy"]`,
	`iframe[src*="cmp"]`,
	`iframe[title*="consent"]`,
	`iframe[title*="Consent"]`,
}

// acceptIntentTexts is the accept-intent set matched (normalized, exact)
// against control text in the top-document DOM pass.
var acceptIntentTexts = []string{
	"accept",
	"accept all",
	"accept all cookies",
	"accept cookies",
	"allow",
	"ok",
	"continue",
	"agree",
	"i accept",
}

// consentKeywords mark an element as consent-related during the removal
// pass.
var consentKeywords = []string{
	"cookie",
	"consent",
	"privacy",
	"gdpr",
}

// matchesFrameAccept reports whether a framed control's text or aria-label
// marks it as the dialog's accept button.
func matchesFrameAccept(text, label string) bool {
	for _, probe := range []string{text, label} {
		p := strings.ToLower(strings.TrimSpace(probe))
		if p == "" {
			continue
		}
		if strings.Contains(p, "accept") || strings.Contains(p, "agree") {
			return true
		}
	}
	return false
}

// Suppressor neutralizes consent dialogs in three passes: framed dialogs,
// top-document DOM, and a short settle for late arrivals. Idempotent and
// safe to re-run at any point during a login flow.
type Suppressor struct {
	logger *slog.Logger
	settle time.Duration
}

// NewSuppressor creates a suppressor.
func NewSuppressor(logger *slog.Logger) *Suppressor {
	return &Suppressor{logger: logger, settle: 1500 * time.Millisecond}
}

// Suppress runs all three passes and reports counts. Errors inside a pass
// are logged and swallowed; a consent dialog that cannot be dismissed will
// surface later as a click interception, not here.
func (s *Suppressor) Suppress(ctx context.Context, page Page) Result {
	var res Result

	res.Accepted += s.framedDialogPass(page)

	clicked, removed := s.domPass(page)
	res.Accepted += clicked
	res.Destroyed += removed

	// Late-arriving dialogs render after the first sweep.
	_ = page.Settle(ctx, s.settle)

	if res.Accepted > 0 || res.Destroyed > 0 {
		s.logger.Info("consent dialogs suppressed",
			"accepted", res.Accepted,
			"destroyed", res.Destroyed,
		)
	}
	return res
}

const framePresenceJS = `(selectors) => selectors.filter((s) => document.querySelector(s) !== null)`

const frameControlsJS = `() => {
	const out = [];
	document.querySelectorAll('button, a, [role="button"], input[type="submit"]').forEach((el, i) => {
		const rect = el.getBoundingClientRect();
		out.push({
			index: i,
			text: (el.textContent || el.value || '').trim(),
			label: el.getAttribute('aria-label') || '',
			visible: rect.width > 0 && rect.height > 0
		});
	});
	return out;
}`

const frameClickJS = `(i) => {
	const els = document.querySelectorAll('button, a, [role="button"], input[type="submit"]');
	if (els[i]) { els[i].click(); return true; }
	return false;
}`

// framedDialogPass enters each consent iframe present on the page and
// clicks its accept control. A single scan establishes which patterns
// match, so a page without consent iframes costs one script evaluation.
// Returns the number of accepts clicked.
func (s *Suppressor) framedDialogPass(page Page) int {
	matched, err := page.Eval(framePresenceJS, framePatterns)
	if err != nil {
		s.logger.Debug("consent frame scan failed", "error", err)
		return 0
	}

	accepted := 0
	for _, m := range matched.Arr() {
		pattern := m.Str()

		frame, err := page.Frame(pattern)
		if err != nil {
			s.logger.Debug("consent iframe not enterable", "pattern", pattern, "error", err)
			continue
		}

		res, err := frame.Eval(frameControlsJS)
		if err != nil {
			continue
		}

		for _, c := range res.Arr() {
			if !c.Get("visible").Bool() {
				continue
			}
			if !matchesFrameAccept(c.Get("text").Str(), c.Get("label").Str()) {
				continue
			}
			if _, err := frame.Eval(frameClickJS, c.Get("index").Int()); err == nil {
				s.logger.Debug("accepted framed consent dialog", "pattern", pattern)
				accepted++
			}
			break
		}
	}

	return accepted
}

const domPassJS = `(texts, keywords) => {
	let clicked = 0, removed = 0;
	const norm = (t) => (t || '').trim().toLowerCase();

	document.querySelectorAll('button, a, [role="button"], input[type="submit"]').forEach((el) => {
		const t = norm(el.textContent || el.value);
		if (!texts.includes(t)) return;
		const rect = el.getBoundingClientRect();
		if (rect.width > 0 && rect.height > 0) {
			try { el.click(); clicked++; } catch (e) {}
		}
	});

	const candidates = document.querySelectorAll(
		'[class*="consent"], [id*="consent"], [class*="cookie"], [id*="cookie"], ' +
		'[class*="gdpr"], [id*="gdpr"], [role="dialog"], [aria-modal="true"], ' +
		'[class*="overlay"], [class*="modal"]'
	);
	candidates.forEach((el) => {
		const t = norm(el.textContent);
		const z = parseInt(window.getComputedStyle(el).zIndex, 10);
		const keywordHit = keywords.some((k) => t.includes(k));
		if (keywordHit || (!isNaN(z) && z > 1000)) {
			try { el.remove(); removed++; } catch (e) {}
		}
	});

	document.body.style.overflow = 'auto';
	document.documentElement.style.overflow = 'auto';
	['modal-open', 'no-scroll', 'noscroll', 'overflow-hidden', 'scroll-lock'].forEach((c) => {
		document.body.classList.remove(c);
		document.documentElement.classList.remove(c);
	});

	return { clicked: clicked, removed: removed };
}`

// domPass runs the single-script top-document sweep: click accept-intent
// controls, remove consent dialogs (keyword text or z-index above 1000),
// restore scrolling.
func (s *Suppressor) domPass(page Page) (clicked, removed int) {
	res, err := page.Eval(domPassJS, acceptIntentTexts, consentKeywords)
	if err != nil {
		s.logger.Debug("consent DOM pass failed", "error", err)
		return 0, 0
	}
	return res.Get("clicked").Int(), res.Get("removed").Int()
}
