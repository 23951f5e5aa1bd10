package login

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// clickPage is the page surface the ladder observes for state changes.
// Satisfied by *browser.Session.
type clickPage interface {
	URL() string
	BodyText() string
	MouseClick() error
	Settle(ctx context.Context, d time.Duration) error
}

// clickTarget is the element surface a strategy invokes. Satisfied by
// *rod.Element.
type clickTarget interface {
	Click(button proto.InputMouseButton, clickCount int) error
	Hover() error
	Eval(js string, args ...interface{}) (*proto.RuntimeRemoteObject, error)
}

// clickStrategy is one technique for invoking a click on an element.
// Strategies are tried in order; any exception advances to the next.
type clickStrategy struct {
	name string
	fn   func(page clickPage, el clickTarget) error
}

var clickStrategies = []clickStrategy{
	{"native", func(_ clickPage, el clickTarget) error {
		return el.Click(proto.InputMouseButtonLeft, 1)
	}},
	{"scripted", func(_ clickPage, el clickTarget) error {
		_, err := el.Eval(`() => this.click()`)
		return err
	}},
	{"pointer", func(page clickPage, el clickTarget) error {
		if err := el.Hover(); err != nil {
			return err
		}
		return page.MouseClick()
	}},
	{"mouse_event", func(_ clickPage, el clickTarget) error {
		_, err := el.Eval(`() => this.dispatchEvent(new MouseEvent('click', { bubbles: true }))`)
		return err
	}},
	{"focus_click", func(_ clickPage, el clickTarget) error {
		_, err := el.Eval(`() => { this.focus(); this.click(); }`)
		return err
	}},
}

// clickResult reports how the ladder went. Err is set only when every
// strategy raised; a strategy that completed without an observable state
// change is still treated as a (tentative) success, since the post-click
// page classification catches dead clicks.
type clickResult struct {
	Strategy string
	Changed  bool
	Attempts []string
	Err      error
}

// fingerprint condenses the observable page state for change detection.
func fingerprint(pageURL, bodyText string) string {
	h := fnv.New64a()
	h.Write([]byte(bodyText))
	return fmt.Sprintf("%s|%d|%x", pageURL, len(bodyText), h.Sum64())
}

// interceptorFrom pulls the identity of an intercepting element out of a
// driver error message, when the driver reports one.
func interceptorFrom(errText string) string {
	lower := strings.ToLower(errText)
	idx := strings.Index(lower, "intercept")
	if idx < 0 {
		return ""
	}
	// The driver appends the element description after the verb.
	rest := strings.TrimSpace(errText[idx:])
	if len(rest) > 200 {
		rest = rest[:200]
	}
	return rest
}

// robustClick tries each strategy in order. The first strategy whose
// exception-free completion is followed by any observable state change
// wins. All-raised is the only hard failure.
func robustClick(ctx context.Context, page clickPage, el clickTarget, logger *slog.Logger) clickResult {
	before := fingerprint(page.URL(), page.BodyText())

	var res clickResult
	var lastClean string

	for _, strat := range clickStrategies {
		if err := strat.fn(page, el); err != nil {
			res.Attempts = append(res.Attempts, strat.name+": "+err.Error())
			res.Err = err
			logger.Debug("click strategy raised", "strategy", strat.name, "error", err)
			continue
		}

		res.Attempts = append(res.Attempts, strat.name+": ok")
		lastClean = strat.name

		_ = page.Settle(ctx, time.Second)
		if fingerprint(page.URL(), page.BodyText()) != before {
			res.Strategy = strat.name
			res.Changed = true
			res.Err = nil
			return res
		}
	}

	if lastClean != "" {
		// No strategy produced a visible change, but at least one ran
		// clean. Let the page classification decide what happened.
		res.Strategy = lastClean
		res.Err = nil
	}
	return res
}
