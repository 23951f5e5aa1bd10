package challenge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/creatorstats/qptrd/internal/browser"
	"github.com/creatorstats/qptrd/internal/outcome"
	"github.com/creatorstats/qptrd/internal/solver"
)

// Resolution is the result of one challenge resolution attempt.
type Resolution struct {
	// Detected is false when the page carried no challenge at all.
	Detected bool

	Kind Kind

	// Method records how a detected challenge was cleared: the solver
	// method, or auto_resolved when the fallback ladder observed the
	// challenge disappear on its own.
	Method outcome.Method

	// Reason is the classified failure, empty when the challenge cleared
	// (or none was detected).
	Reason outcome.ReasonCode

	Diagnostics map[string]any
}

// Failed reports whether the attempt ended in a classified failure.
func (r *Resolution) Failed() bool { return r.Reason != "" }

func (r *Resolution) diag(k string, v any) {
	if r.Diagnostics == nil {
		r.Diagnostics = make(map[string]any)
	}
	r.Diagnostics[k] = v
}

// Runner detects the post-submit challenge, drives the external solver,
// injects the solution, and falls back to the recovery ladder when the
// solver is unavailable or unsuccessful.
type Runner struct {
	detector *Detector
	solver   solver.Solver // nil when no API key is configured
	loginURL string
	logger   *slog.Logger

	injectSleep time.Duration
	ladderWait  time.Duration
	reloadWait  time.Duration
}

// NewRunner creates a runner. slv may be nil; a detected challenge then
// goes straight to the fallback ladder with reason solver_unavailable.
func NewRunner(detector *Detector, slv solver.Solver, loginURL string, logger *slog.Logger) *Runner {
	return &Runner{
		detector:    detector,
		solver:      slv,
		loginURL:    loginURL,
		logger:      logger,
		injectSleep: 3 * time.Second,
		ladderWait:  10 * time.Second,
		reloadWait:  8 * time.Second,
	}
}

// Resolve runs one full detect-solve-verify cycle against the session's
// current page.
func (r *Runner) Resolve(ctx context.Context, sess *browser.Session) *Resolution {
	desc := r.detector.Detect(sess)

	res := &Resolution{Kind: desc.Kind}
	if desc.Kind == KindNone {
		return res
	}

	res.Detected = true
	res.diag("challenge_kind", string(desc.Kind))
	if desc.FrameURL != "" {
		res.diag("challenge_frame_url", desc.FrameURL)
	}
	if desc.UsedDefaultKey {
		res.diag("used_default_site_key", true)
	}

	r.logger.Info("challenge detected",
		"kind", desc.Kind,
		"used_default_site_key", desc.UsedDefaultKey,
	)

	if desc.Kind == KindUnknown {
		res.Reason = outcome.ChallengeUnrecognized
		return res
	}

	if r.solver == nil || !r.solver.CanSolve(methodFor(desc.Kind)) {
		r.fallback(ctx, sess, res, outcome.SolverUnavailable)
		return res
	}

	token, solveErr := r.solve(ctx, desc)
	if solveErr != "" {
		r.fallback(ctx, sess, res, solveErr)
		return res
	}

	if err := r.inject(ctx, sess, desc, token); err != nil {
		r.logger.Warn("solution injection failed", "error", err)
		r.fallback(ctx, sess, res, outcome.SolverWrong)
		return res
	}

	if r.cleared(sess) {
		res.Method = methodOutcome(desc.Kind)
		return res
	}

	// Token accepted by the service but the challenge is still up.
	r.fallback(ctx, sess, res, outcome.SolverWrong)
	return res
}

func methodFor(k Kind) string {
	if k == KindImage {
		return solver.MethodImage
	}
	return solver.MethodFunCaptcha
}

func methodOutcome(k Kind) outcome.Method {
	if k == KindImage {
		return outcome.MethodTwoCaptchaImage
	}
	return outcome.MethodTwoCaptchaFun
}

// solve calls the external service and maps its errors to reason codes.
func (r *Runner) solve(ctx context.Context, desc Descriptor) (string, outcome.ReasonCode) {
	params := solverParams(desc)

	start := time.Now()
	result, err := r.solver.Solve(ctx, params)
	if err != nil {
		r.logger.Warn("solver failed",
			"provider", r.solver.Name(),
			"kind", desc.Kind,
			"elapsed", time.Since(start),
			"error", err,
		)
		if errors.Is(err, solver.ErrTimeout) {
			return "", outcome.SolverTimeout
		}
		return "", outcome.SolverUnavailable
	}

	r.logger.Info("solver returned solution",
		"provider", r.solver.Name(),
		"kind", desc.Kind,
		"elapsed", result.Elapsed,
	)
	return result.Token, ""
}

// solverParams maps a challenge descriptor onto solver parameters.
func solverParams(desc Descriptor) solver.Params {
	p := solver.Params{PageURL: desc.PageURL}
	switch desc.Kind {
	case KindImage:
		p.Method = solver.MethodImage
		p.ImageURL = desc.ImageURL
	default:
		p.Method = solver.MethodFunCaptcha
		p.SiteKey = desc.SiteKey
	}
	return p
}

const injectFunCaptchaJS = `(token) => {
	const shapes = [
		() => fc_callback(token),
		() => funcaptcha_callback(token),
		() => { if (window.fc_callback) window.fc_callback(token); }
	];
	for (const shape of shapes) {
		try { shape(); } catch (e) {}
	}
}`

const injectImageAnswerJS = `(text) => {
	const probe = (el) => ((el.name || '') + ' ' + (el.id || '') + ' ' + (el.placeholder || '')).toLowerCase();
	const input = Array.from(document.querySelectorAll('input')).find((el) => probe(el).includes('captcha'));
	if (!input) return false;
	input.value = text;
	input.dispatchEvent(new Event('input', { bubbles: true }));
	const submit = document.querySelector('button[type="submit"], input[type="submit"], button');
	if (submit) submit.click();
	return true;
}`

// inject delivers the solution into the page.
func (r *Runner) inject(ctx context.Context, sess *browser.Session, desc Descriptor, token string) error {
	switch desc.Kind {
	case KindImage:
		res, err := sess.Page.Timeout(sess.Script).Eval(injectImageAnswerJS, token)
		if err != nil {
			return err
		}
		if !res.Value.Bool() {
			return errors.New("no captcha answer input found")
		}
	default:
		if _, err := sess.Page.Timeout(sess.Script).Eval(injectFunCaptchaJS, token); err != nil {
			return err
		}
	}
	return sess.Settle(ctx, r.injectSleep)
}

// cleared reports whether the challenge is gone: no indicator remains or
// the URL advanced past the login wall.
func (r *Runner) cleared(sess *browser.Session) bool {
	return Classify(sess.URL(), sess.BodyText()) != StateChallenge
}

// fallback runs the recovery ladder after a solver failure: wait for
// auto-resolution, reload, then renavigate to login. Each step runs once,
// stopping on success. On exhaustion the resolution carries reset_to_login
// when the page returned to login, otherwise the original failure.
func (r *Runner) fallback(ctx context.Context, sess *browser.Session, res *Resolution, orig outcome.ReasonCode) {
	res.diag("solver_failure", string(orig))
	r.logger.Warn("entering challenge fallback ladder", "cause", orig)

	if err := sess.Settle(ctx, r.ladderWait); err == nil && r.cleared(sess) {
		r.autoResolved(res, "wait")
		return
	}

	if err := sess.Reload(); err == nil {
		if err := sess.Settle(ctx, r.reloadWait); err == nil && r.cleared(sess) {
			r.autoResolved(res, "reload")
			return
		}
	}

	if err := sess.Navigate(r.loginURL); err == nil && Classify(sess.URL(), "") == StateLogin {
		res.Reason = outcome.ResetToLogin
		res.diag("fallback_step", "renavigate")
		return
	}

	res.Reason = orig
}

func (r *Runner) autoResolved(res *Resolution, step string) {
	r.logger.Info("challenge auto-resolved", "fallback_step", step)
	res.Method = outcome.MethodAutoResolved
	res.diag("fallback_step", step)
}
