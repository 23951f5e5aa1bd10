// Package browser provides scoped leasing of remote browser instances.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/creatorstats/qptrd/internal/config"
)

// ErrStepPanicked marks a panic recovered from the function passed to
// WithSession. The lease itself succeeded and was released normally.
var ErrStepPanicked = errors.New("browser step panicked")

// Evaluator runs a script against a document and returns its value.
type Evaluator interface {
	Eval(js string, args ...any) (gson.JSON, error)
}

// Session is a handle to one leased browser with a single stealth page.
// A Session is only ever observable inside the function passed to
// WithSession; release happens on every exit path.
type Session struct {
	Page *rod.Page

	browser *rod.Browser

	// Timeouts applied by the helper methods.
	ElementWait time.Duration
	PageLoad    time.Duration
	Script      time.Duration
}

// Leaser leases browsers from the configured remote farm, or launches a
// local Chromium when no farm URL is set.
type Leaser struct {
	cfg    *config.Config
	logger *slog.Logger

	// Lifecycle indirection; lease and release always come paired
	// through WithSession.
	leaseFn   func(context.Context) (*Session, error)
	releaseFn func(*Session)
}

// NewLeaser creates a new leaser.
func NewLeaser(cfg *config.Config, logger *slog.Logger) *Leaser {
	l := &Leaser{cfg: cfg, logger: logger}
	l.leaseFn = l.lease
	l.releaseFn = l.release
	return l
}

// WithSession leases a browser, passes it to f, and releases it
// unconditionally when f returns, errors, or panics. A recovered panic
// surfaces as an error wrapping ErrStepPanicked. The release path
// tolerates a browser already terminated by the remote farm.
func (l *Leaser) WithSession(ctx context.Context, f func(*Session) error) (err error) {
	sess, lerr := l.leaseFn(ctx)
	if lerr != nil {
		return lerr
	}

	defer l.releaseFn(sess)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrStepPanicked, r)
		}
	}()

	return f(sess)
}

// lease connects to the remote farm (or launches locally) and prepares a
// stealth page with the configured viewport, locale and timeouts.
func (l *Leaser) lease(ctx context.Context) (*Session, error) {
	leaseCtx, cancel := context.WithTimeout(ctx, l.cfg.BrowserLeaseTimeout)
	defer cancel()

	var controlURL string
	if l.cfg.BrowserFarmURL != "" {
		u, err := launcher.ResolveURL(l.cfg.BrowserFarmURL)
		if err != nil {
			return nil, fmt.Errorf("resolve browser farm url: %w", err)
		}
		controlURL = u
	} else {
		lc := launcher.New()
		if l.cfg.ChromePath != "" {
			lc = lc.Bin(l.cfg.ChromePath)
		}
		lc = lc.
			Headless(true).
			Set("disable-blink-features", "AutomationControlled").
			Set("disable-dev-shm-usage").
			Set("disable-gpu").
			Set("no-sandbox").
			Set("disable-infobars").
			Set("window-size", "1920,1080").
			Set("lang", "en-US,en")

		u, err := lc.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(leaseCtx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	// Bind subsequent commands to the request context, not the lease
	// deadline.
	b = b.Context(ctx)

	page, err := newStealthPage(b)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("create stealth page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = page.Close()
		_ = b.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	l.logger.Info("browser leased", "remote", l.cfg.BrowserFarmURL != "")

	return &Session{
		Page:        page.Context(ctx),
		browser:     b,
		ElementWait: l.cfg.ElementWaitTimeout,
		PageLoad:    l.cfg.PageLoadTimeout,
		Script:      l.cfg.ScriptTimeout,
	}, nil
}

// release closes the page and browser. Errors are logged, not propagated:
// the remote farm may have torn the instance down already.
func (l *Leaser) release(s *Session) {
	defer func() {
		// rod can panic when the transport is already gone.
		if r := recover(); r != nil {
			l.logger.Warn("browser release panicked", "cause", r)
		}
	}()

	if s.Page != nil {
		if err := s.Page.Close(); err != nil {
			l.logger.Debug("page close failed", "error", err)
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			l.logger.Debug("browser close failed", "error", err)
		}
	}
	l.logger.Info("browser released")
}

// Navigate loads url and waits for the load event, bounded by the page-load
// timeout.
func (s *Session) Navigate(url string) error {
	p := s.Page.Timeout(s.PageLoad)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

// Reload reloads the current page and waits for the load event.
func (s *Session) Reload() error {
	p := s.Page.Timeout(s.PageLoad)
	if err := p.Reload(); err != nil {
		return err
	}
	return p.WaitLoad()
}

// URL returns the current page URL, or "" when the page is unreachable.
func (s *Session) URL() string {
	info, err := s.Page.Timeout(s.Script).Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Eval runs js in the top document, bounded by the script timeout, and
// returns the script's value.
func (s *Session) Eval(js string, args ...any) (gson.JSON, error) {
	res, err := s.Page.Timeout(s.Script).Eval(js, args...)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

// frameSurface adapts an iframe's document to the Evaluator interface.
type frameSurface struct {
	page    *rod.Page
	timeout time.Duration
}

func (f frameSurface) Eval(js string, args ...any) (gson.JSON, error) {
	res, err := f.page.Timeout(f.timeout).Eval(js, args...)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

// Frame returns a script surface for the iframe matched by selector.
func (s *Session) Frame(selector string) (Evaluator, error) {
	el, err := s.Page.Timeout(s.Script).Element(selector)
	if err != nil {
		return nil, err
	}
	fp, err := el.Frame()
	if err != nil {
		return nil, err
	}
	return frameSurface{page: fp, timeout: s.Script}, nil
}

// MouseClick presses the left button at the mouse's current position.
func (s *Session) MouseClick() error {
	return s.Page.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

// BodyText returns the rendered text of the document body.
func (s *Session) BodyText() string {
	res, err := s.Page.Timeout(s.Script).Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// HTML returns the full page source.
func (s *Session) HTML() (string, error) {
	return s.Page.Timeout(s.Script).HTML()
}

// Cookie returns the value of the named cookie from the browser's jar.
func (s *Session) Cookie(name string) (string, bool) {
	cookies, err := s.Page.Timeout(s.Script).Cookies(nil)
	if err != nil {
		return "", false
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// SetCookie installs a cookie scoped to the given domain before navigation.
func (s *Session) SetCookie(name, value, domain string) error {
	return s.Page.SetCookies([]*proto.NetworkCookieParam{{
		Name:   name,
		Value:  value,
		Domain: domain,
		Path:   "/",
		Secure: true,
	}})
}

// Screenshot captures the viewport as PNG. Best effort: failures return nil.
func (s *Session) Screenshot() []byte {
	shot, err := s.Page.Timeout(s.Script).Screenshot(false, nil)
	if err != nil {
		return nil
	}
	return shot
}

// Settle sleeps for d, honoring context cancellation.
func (s *Session) Settle(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
