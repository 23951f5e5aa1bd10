package outcome

import (
	"testing"
	"time"
)

func TestReasonCode_Valid(t *testing.T) {
	valid := []ReasonCode{
		OKCached, OKInteractiveNoChallenge, OKInteractiveSolved,
		BrowserUnavailable, FormMissing, ClickIntercepted,
		BadCredentials, LoginStateUnclear, ChallengeUnrecognized,
		SolverUnavailable, SolverTimeout, SolverWrong,
		ResetToLogin, ScrapeEmpty, InternalError,
	}
	for _, r := range valid {
		if !r.Valid() {
			t.Errorf("ReasonCode(%q).Valid() = false, want true", r)
		}
	}

	if ReasonCode("not_a_reason").Valid() {
		t.Error("unknown reason code reported as valid")
	}
	if ReasonCode("").Valid() {
		t.Error("empty reason code reported as valid")
	}
}

func TestReasonCode_IsSuccess(t *testing.T) {
	tests := []struct {
		reason ReasonCode
		want   bool
	}{
		{OKCached, true},
		{OKInteractiveNoChallenge, true},
		{OKInteractiveSolved, true},
		{BadCredentials, false},
		{BrowserUnavailable, false},
		{ScrapeEmpty, false},
	}
	for _, tt := range tests {
		if got := tt.reason.IsSuccess(); got != tt.want {
			t.Errorf("ReasonCode(%q).IsSuccess() = %v, want %v", tt.reason, got, tt.want)
		}
	}
}

func TestOK_CarriesReason(t *testing.T) {
	o := OK(OKCached, MethodCached)

	if !o.Success {
		t.Error("OK() outcome not marked success")
	}
	if o.Reason != OKCached {
		t.Errorf("Reason = %q, want %q", o.Reason, OKCached)
	}
	if o.Method != MethodCached {
		t.Errorf("Method = %q, want %q", o.Method, MethodCached)
	}
	if !o.Reason.Valid() {
		t.Error("success outcome carries a reason outside the taxonomy")
	}
}

func TestFail_CarriesReason(t *testing.T) {
	o := Fail(ClickIntercepted)

	if o.Success {
		t.Error("Fail() outcome marked success")
	}
	if o.Reason != ClickIntercepted {
		t.Errorf("Reason = %q, want %q", o.Reason, ClickIntercepted)
	}
}

func TestOutcome_Diag(t *testing.T) {
	o := Fail(FormMissing).Diag("current_url", "https://www.roblox.com/login")

	if got := o.Diagnostics["current_url"]; got != "https://www.roblox.com/login" {
		t.Errorf("Diagnostics[current_url] = %v, want login url", got)
	}

	// Diag must tolerate a nil map.
	o2 := &Outcome{}
	o2.Diag("k", "v")
	if o2.Diagnostics["k"] != "v" {
		t.Error("Diag on zero-value outcome did not initialise diagnostics")
	}
}

func TestOutcome_Timing(t *testing.T) {
	o := OK(OKInteractiveSolved, MethodTwoCaptchaFun).Timing("login", 1500*time.Millisecond)

	if got := o.Diagnostics["timing_login_ms"]; got != int64(1500) {
		t.Errorf("timing_login_ms = %v, want 1500", got)
	}
}
