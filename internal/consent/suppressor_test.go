package consent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ysmood/gson"

	"github.com/creatorstats/qptrd/internal/browser"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func mustJSON(v any) gson.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return gson.NewFrom(string(b))
}

// fakeFrame is a consent vendor iframe with a fixed control set.
type fakeFrame struct {
	controls []map[string]any
	clicks   []int
}

func (f *fakeFrame) Eval(js string, args ...any) (gson.JSON, error) {
	if strings.Contains(js, "getBoundingClientRect") {
		return mustJSON(f.controls), nil
	}
	if len(args) > 0 {
		if i, ok := args[0].(int); ok {
			f.clicks = append(f.clicks, i)
		}
	}
	return mustJSON(true), nil
}

// fakeConsentPage simulates a document carrying consent dialogs and,
// optionally, a vendor iframe. The DOM pass removes its dialogs, so a
// second sweep finds nothing.
type fakeConsentPage struct {
	dialogs    int
	framed     bool
	frame      *fakeFrame
	scans      int
	frameCalls []string
}

func (p *fakeConsentPage) Eval(js string, args ...any) (gson.JSON, error) {
	switch {
	case strings.Contains(js, "filter"):
		p.scans++
		if p.framed {
			return mustJSON([]string{framePatterns[0]}), nil
		}
		return mustJSON([]string{}), nil
	case strings.Contains(js, "clicked"):
		removed := p.dialogs
		p.dialogs = 0
		return mustJSON(map[string]any{"clicked": 0, "removed": removed}), nil
	}
	return mustJSON(nil), nil
}

func (p *fakeConsentPage) Frame(selector string) (browser.Evaluator, error) {
	p.frameCalls = append(p.frameCalls, selector)
	if p.frame == nil {
		return nil, errors.New("no such frame")
	}
	return p.frame, nil
}

func (p *fakeConsentPage) Settle(context.Context, time.Duration) error { return nil }

func TestSuppress_SecondPassDestroysNothing(t *testing.T) {
	page := &fakeConsentPage{dialogs: 2}
	s := NewSuppressor(testLogger())

	first := s.Suppress(context.Background(), page)
	if first.Destroyed != 2 {
		t.Errorf("first pass destroyed = %d, want 2", first.Destroyed)
	}

	second := s.Suppress(context.Background(), page)
	if second.Destroyed != 0 || second.Accepted != 0 {
		t.Errorf("second pass = %+v, want nothing left to do", second)
	}
}

func TestSuppress_FramedAcceptClicked(t *testing.T) {
	frame := &fakeFrame{controls: []map[string]any{
		{"index": 0, "text": "Manage settings", "label": "", "visible": true},
		{"index": 1, "text": "Accept all", "label": "", "visible": false},
		{"index": 3, "text": "Accept all", "label": "", "visible": true},
	}}
	page := &fakeConsentPage{framed: true, frame: frame}

	res := NewSuppressor(testLogger()).Suppress(context.Background(), page)
	if res.Accepted != 1 {
		t.Errorf("accepted = %d, want 1", res.Accepted)
	}
	if len(frame.clicks) != 1 || frame.clicks[0] != 3 {
		t.Errorf("clicked controls = %v, want the visible accept at index 3", frame.clicks)
	}
}

func TestSuppress_NoFrameMeansOneScanNoLookups(t *testing.T) {
	page := &fakeConsentPage{}

	NewSuppressor(testLogger()).Suppress(context.Background(), page)
	if page.scans != 1 {
		t.Errorf("presence scans = %d, want 1", page.scans)
	}
	if len(page.frameCalls) != 0 {
		t.Errorf("frame lookups = %v, want none without a matching iframe", page.frameCalls)
	}
}

func TestMatchesFrameAccept(t *testing.T) {
	tests := []struct {
		text  string
		label string
		want  bool
	}{
		{"Accept", "", true},
		{"ACCEPT ALL", "", true},
		{"I Agree", "", true},
		{"agree", "", true},
		{"", "Accept cookies", true},
		{"", "agree to terms", true},
		{"Decline", "", false},
		{"Manage settings", "", false},
		{"", "", false},
		{"  ", "  ", false},
	}

	for _, tt := range tests {
		if got := matchesFrameAccept(tt.text, tt.label); got != tt.want {
			t.Errorf("matchesFrameAccept(%q, %q) = %v, want %v", tt.text, tt.label, got, tt.want)
		}
	}
}

func TestAcceptIntentTexts_Normalized(t *testing.T) {
	// The DOM pass compares normalized (lowercase, trimmed) text; the set
	// must already be in that form.
	for _, text := range acceptIntentTexts {
		if text != strings.ToLower(strings.TrimSpace(text)) {
			t.Errorf("accept intent entry %q is not normalized", text)
		}
	}

	required := []string{"accept", "accept all", "allow", "ok", "continue", "agree", "i accept"}
	for _, r := range required {
		found := false
		for _, text := range acceptIntentTexts {
			if text == r {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("accept intent set missing %q", r)
		}
	}
}

func TestDOMPassScript_ReferencesKeywordRemoval(t *testing.T) {
	// The removal rule is keyword text OR z-index above 1000, and the pass
	// must restore scrolling.
	for _, needle := range []string{"zIndex", "1000", "overflow", "remove"} {
		if !strings.Contains(domPassJS, needle) {
			t.Errorf("DOM pass script does not reference %q", needle)
		}
	}
}

func TestFramePatterns_NotEmpty(t *testing.T) {
	if len(framePatterns) == 0 {
		t.Fatal("no frame patterns configured")
	}
	for _, p := range framePatterns {
		if !strings.HasPrefix(p, "iframe") {
			t.Errorf("frame pattern %q does not target an iframe", p)
		}
	}
}

func TestResult_JSONShape(t *testing.T) {
	b, err := json.Marshal(Result{Destroyed: 2, Accepted: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(b)
	if got != `{"destroyed":2,"accepted":1}` {
		t.Errorf("Result JSON = %s", got)
	}
}
