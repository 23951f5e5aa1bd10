package challenge

import (
	"testing"

	"github.com/creatorstats/qptrd/internal/solver"
)

func TestContainsIndicator(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{"Please complete the Verification to continue", true},
		{"START PUZZLE", true},
		{"solve this captcha", true},
		{"Complete the challenge below", true},
		{"verify you are human", true},
		{"loading funcaptcha widget", true},
		{"powered by Arkose Labs", true},
		{"Welcome back! Redirecting to your dashboard.", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ContainsIndicator(tt.body); got != tt.want {
			t.Errorf("ContainsIndicator(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}

func TestExtractSiteKey(t *testing.T) {
	tests := []struct {
		name    string
		sources []string
		want    string
		found   bool
	}{
		{
			name:    "data attribute",
			sources: []string{`<div data-sitekey="AAAA-1111"></div>`},
			want:    "AAAA-1111",
			found:   true,
		},
		{
			name:    "single quoted object key",
			sources: []string{`{'sitekey':'BBBB-2222'}`},
			want:    "BBBB-2222",
			found:   true,
		},
		{
			name:    "double quoted object key",
			sources: []string{`{"sitekey":"CCCC-3333"}`},
			want:    "CCCC-3333",
			found:   true,
		},
		{
			name:    "unquoted object key",
			sources: []string{`setup({sitekey:"DDDD-4444"})`},
			want:    "DDDD-4444",
			found:   true,
		},
		{
			name:    "pk query parameter",
			sources: []string{`https://roblox-api.arkoselabs.com/v2/pk=EEEE-5555`},
			want:    "EEEE-5555",
			found:   true,
		},
		{
			name:    "public_key parameter",
			sources: []string{`https://client-api.arkoselabs.com/fc/gt2/public_key=FFFF-6666`},
			want:    "FFFF-6666",
			found:   true,
		},
		{
			name: "pattern order wins over source order",
			sources: []string{
				`https://x.example/pk=LATER`,
				`<div data-sitekey="FIRST"></div>`,
			},
			want:  "FIRST",
			found: true,
		},
		{
			name:    "no match",
			sources: []string{`nothing to see here`},
			found:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ExtractSiteKey(tt.sources...)
			if found != tt.found {
				t.Fatalf("found = %v, want %v", found, tt.found)
			}
			if got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMatchChallengeFrame(t *testing.T) {
	tests := []struct {
		src   string
		title string
		want  bool
	}{
		{"https://roblox-api.arkoselabs.com/v2/funcaptcha/frame", "", true},
		{"https://client-api.ARKOSELABS.com/fc/gc/", "", true},
		{"https://example.com/widget", "Verification challenge", true},
		{"https://example.com/ads", "Sponsored", false},
		{"", "", false},
	}

	for _, tt := range tests {
		if got := matchChallengeFrame(tt.src, tt.title); got != tt.want {
			t.Errorf("matchChallengeFrame(%q, %q) = %v, want %v", tt.src, tt.title, got, tt.want)
		}
	}
}

func TestMatchChallengeImage(t *testing.T) {
	tests := []struct {
		src  string
		alt  string
		want bool
	}{
		{"https://example.com/captcha.png", "", true},
		{"https://example.com/img.png", "captcha image", true},
		{"data:image/png;base64,AAAA", "captcha", false},
		{"", "captcha", false},
		{"https://example.com/logo.png", "logo", false},
	}

	for _, tt := range tests {
		if got := matchChallengeImage(tt.src, tt.alt); got != tt.want {
			t.Errorf("matchChallengeImage(%q, %q) = %v, want %v", tt.src, tt.alt, got, tt.want)
		}
	}
}

func TestSolverParams(t *testing.T) {
	fun := solverParams(Descriptor{
		Kind:    KindFunCaptcha,
		SiteKey: "KEY-1",
		PageURL: "https://www.roblox.com/login",
	})
	if fun.Method != solver.MethodFunCaptcha {
		t.Errorf("Method = %q, want funcaptcha", fun.Method)
	}
	if fun.SiteKey != "KEY-1" || fun.PageURL != "https://www.roblox.com/login" {
		t.Errorf("unexpected funcaptcha params: %+v", fun)
	}

	img := solverParams(Descriptor{
		Kind:     KindImage,
		ImageURL: "https://example.com/c.png",
		PageURL:  "https://www.roblox.com/login",
	})
	if img.Method != solver.MethodImage {
		t.Errorf("Method = %q, want image", img.Method)
	}
	if img.ImageURL != "https://example.com/c.png" {
		t.Errorf("ImageURL = %q", img.ImageURL)
	}
}
