// Package outcome defines the tagged result type returned by every public
// operation, together with the closed reason-code taxonomy.
package outcome

import "time"

// ReasonCode classifies how an operation ended. The set is closed: every
// Outcome carries exactly one of these, success or not.
type ReasonCode string

const (
	OKCached                 ReasonCode = "ok_cached"
	OKInteractiveNoChallenge ReasonCode = "ok_interactive_no_challenge"
	OKInteractiveSolved      ReasonCode = "ok_interactive_solved"
	BrowserUnavailable       ReasonCode = "browser_unavailable"
	FormMissing              ReasonCode = "form_missing"
	ClickIntercepted         ReasonCode = "click_intercepted"
	BadCredentials           ReasonCode = "bad_credentials"
	LoginStateUnclear        ReasonCode = "login_state_unclear"
	ChallengeUnrecognized    ReasonCode = "challenge_unrecognized"
	SolverUnavailable        ReasonCode = "solver_unavailable"
	SolverTimeout            ReasonCode = "solver_timeout"
	SolverWrong              ReasonCode = "solver_wrong"
	ResetToLogin             ReasonCode = "reset_to_login"
	ScrapeEmpty              ReasonCode = "scrape_empty"
	InternalError            ReasonCode = "internal_error"
)

// reasonCodes is the closed taxonomy. Keep in sync with the constants above.
var reasonCodes = map[ReasonCode]bool{
	OKCached:                 true,
	OKInteractiveNoChallenge: true,
	OKInteractiveSolved:      true,
	BrowserUnavailable:       true,
	FormMissing:              true,
	ClickIntercepted:         true,
	BadCredentials:           true,
	LoginStateUnclear:        true,
	ChallengeUnrecognized:    true,
	SolverUnavailable:        true,
	SolverTimeout:            true,
	SolverWrong:              true,
	ResetToLogin:             true,
	ScrapeEmpty:              true,
	InternalError:            true,
}

// Valid reports whether r is part of the closed taxonomy.
func (r ReasonCode) Valid() bool {
	return reasonCodes[r]
}

// IsSuccess reports whether r is one of the ok_* codes.
func (r ReasonCode) IsSuccess() bool {
	switch r {
	case OKCached, OKInteractiveNoChallenge, OKInteractiveSolved:
		return true
	}
	return false
}

// Method identifies how a result was produced.
type Method string

const (
	MethodCached             Method = "cached"
	MethodInteractive        Method = "interactive"
	MethodAutoResolved       Method = "auto_resolved"
	MethodTwoCaptchaFun      Method = "2captcha_funcaptcha"
	MethodTwoCaptchaImage    Method = "2captcha_image"
	MethodAPIStub            Method = "api_stub"
)

// Outcome is the tagged result of a public operation. Artifact holds the
// operation's payload (a credential, a QPTR value); Screenshot is a base64
// PNG captured on browser steps; Diagnostics carries timings, the region
// snapshot, and any failure detail.
type Outcome struct {
	Success     bool           `json:"success"`
	Method      Method         `json:"method,omitempty"`
	Reason      ReasonCode     `json:"reason_code"`
	Artifact    string         `json:"artifact,omitempty"`
	Screenshot  string         `json:"screenshot,omitempty"`
	Diagnostics map[string]any `json:"diagnostics,omitempty"`
}

// OK creates a success outcome.
func OK(reason ReasonCode, method Method) *Outcome {
	return &Outcome{
		Success:     true,
		Method:      method,
		Reason:      reason,
		Diagnostics: map[string]any{},
	}
}

// Fail creates a failure outcome.
func Fail(reason ReasonCode) *Outcome {
	return &Outcome{
		Success:     false,
		Reason:      reason,
		Diagnostics: map[string]any{},
	}
}

// Diag attaches a diagnostic key/value and returns the outcome for chaining
// at construction sites.
func (o *Outcome) Diag(key string, value any) *Outcome {
	if o.Diagnostics == nil {
		o.Diagnostics = map[string]any{}
	}
	o.Diagnostics[key] = value
	return o
}

// Timing records an elapsed duration in milliseconds under timing_<name>.
func (o *Outcome) Timing(name string, d time.Duration) *Outcome {
	return o.Diag("timing_"+name+"_ms", d.Milliseconds())
}
