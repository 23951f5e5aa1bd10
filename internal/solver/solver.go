// Package solver integrates external CAPTCHA solving services.
package solver

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Methods a solver can be asked to handle.
const (
	MethodFunCaptcha = "funcaptcha"
	MethodImage      = "image"
)

// Params describes one challenge to solve.
type Params struct {
	// Method is MethodFunCaptcha or MethodImage.
	Method string

	// SiteKey is the FunCaptcha public key (funcaptcha only).
	SiteKey string

	// PageURL is the URL of the page hosting the challenge.
	PageURL string

	// ImageURL is the challenge image to download (image only).
	ImageURL string
}

// Result is a successful solve.
type Result struct {
	Token   string
	Elapsed time.Duration
}

// ErrTimeout is returned when the service accepted the task but produced
// no answer within the polling window.
var ErrTimeout = errors.New("solver: timed out waiting for answer")

// Error wraps a service-level failure with the provider's message.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("solver: %s: %v", e.Message, e.Cause)
	}
	return "solver: " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Solver is a CAPTCHA solving backend.
type Solver interface {
	// Name identifies the provider in logs and diagnostics.
	Name() string

	// CanSolve reports whether the provider handles the given method.
	CanSolve(method string) bool

	// Solve submits the challenge and blocks until an answer, a service
	// error, ErrTimeout, or context cancellation.
	Solve(ctx context.Context, p Params) (*Result, error)

	// Balance returns the remaining account balance in the provider's
	// currency.
	Balance(ctx context.Context) (float64, error)
}
