package authflow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/creatorstats/qptrd/internal/browser"
	"github.com/creatorstats/qptrd/internal/outcome"
)

func TestSessionFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want outcome.ReasonCode
	}{
		{
			name: "lease failure",
			err:  errors.New("farm unreachable"),
			want: outcome.BrowserUnavailable,
		},
		{
			name: "recovered panic",
			err:  fmt.Errorf("%w: nil dereference", browser.ErrStepPanicked),
			want: outcome.InternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := sessionFailure(tt.err)
			if o.Success {
				t.Error("failure reported success")
			}
			if o.Reason != tt.want {
				t.Errorf("reason = %q, want %q", o.Reason, tt.want)
			}
		})
	}
}
