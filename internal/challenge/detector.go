// Package challenge detects, classifies and resolves the verification
// challenges the login page raises after submit.
package challenge

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/creatorstats/qptrd/internal/browser"
)

// Kind classifies a detected challenge.
type Kind string

const (
	KindNone       Kind = "none"
	KindFunCaptcha Kind = "funcaptcha"
	KindImage      Kind = "image"
	KindUnknown    Kind = "unknown"
)

// indicators is the fixed vocabulary tested against rendered body text.
var indicators = []string{
	"verification",
	"start puzzle",
	"captcha",
	"challenge",
	"verify",
	"funcaptcha",
	"arkose",
}

// ContainsIndicator reports whether any challenge indicator appears in the
// body text. Matching is case-insensitive.
func ContainsIndicator(bodyText string) bool {
	b := strings.ToLower(bodyText)
	for _, ind := range indicators {
		if strings.Contains(b, ind) {
			return true
		}
	}
	return false
}

// siteKeyPatterns are tried in order against the challenge iframe URL and
// then the full page source. The first capture wins.
var siteKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`data-sitekey="([^"]+)"`),
	regexp.MustCompile(`'sitekey':'([^']+)'`),
	regexp.MustCompile(`"sitekey":"([^"]+)"`),
	regexp.MustCompile(`sitekey:"([^"]+)"`),
	regexp.MustCompile(`pk=([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`public_key=([A-Za-z0-9_-]+)`),
}

// ExtractSiteKey scans the sources in order against the pattern list and
// returns the first captured key.
func ExtractSiteKey(sources ...string) (string, bool) {
	for _, pat := range siteKeyPatterns {
		for _, src := range sources {
			if m := pat.FindStringSubmatch(src); m != nil {
				return m[1], true
			}
		}
	}
	return "", false
}

// matchChallengeFrame reports whether an iframe belongs to the FunCaptcha
// vendor.
func matchChallengeFrame(src, title string) bool {
	s := strings.ToLower(src)
	if strings.Contains(s, "funcaptcha") || strings.Contains(s, "arkose") {
		return true
	}
	return strings.Contains(strings.ToLower(title), "verification")
}

// matchChallengeImage reports whether an image element carries a solvable
// image challenge. Data URLs cannot be handed to the solver.
func matchChallengeImage(src, alt string) bool {
	if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
		return false
	}
	return strings.Contains(strings.ToLower(src), "captcha") ||
		strings.Contains(strings.ToLower(alt), "captcha")
}

// Descriptor describes one detected challenge.
type Descriptor struct {
	Kind     Kind
	SiteKey  string
	ImageURL string
	FrameURL string
	PageURL  string

	// UsedDefaultKey is set when site key extraction failed and the
	// configured fallback key was substituted. Surfaced in diagnostics.
	UsedDefaultKey bool
}

// Detector classifies the current page's challenge, if any.
type Detector struct {
	defaultSiteKey string
	logger         *slog.Logger
}

// NewDetector creates a detector. defaultSiteKey may be empty, in which
// case a FunCaptcha with no extractable key is handed to the solver
// keyless and fails there.
func NewDetector(defaultSiteKey string, logger *slog.Logger) *Detector {
	return &Detector{defaultSiteKey: defaultSiteKey, logger: logger}
}

const framesJS = `() => Array.from(document.querySelectorAll('iframe')).map((f) => {
	const rect = f.getBoundingClientRect();
	return {
		src: f.src || '',
		title: f.title || '',
		visible: rect.width > 0 && rect.height > 0
	};
})`

const imagesJS = `() => Array.from(document.querySelectorAll('img')).map((img) => {
	const rect = img.getBoundingClientRect();
	return {
		src: img.src || '',
		alt: img.alt || '',
		visible: rect.width > 0 && rect.height > 0
	};
})`

// Detect reads the rendered page and classifies the challenge.
func (d *Detector) Detect(sess *browser.Session) Descriptor {
	pageURL := sess.URL()

	if !ContainsIndicator(sess.BodyText()) {
		return Descriptor{Kind: KindNone, PageURL: pageURL}
	}

	if frameURL, ok := d.findChallengeFrame(sess); ok {
		desc := Descriptor{Kind: KindFunCaptcha, FrameURL: frameURL, PageURL: pageURL}

		source, _ := sess.HTML()
		if key, found := ExtractSiteKey(frameURL, source); found {
			desc.SiteKey = key
		} else {
			desc.SiteKey = d.defaultSiteKey
			desc.UsedDefaultKey = true
			d.logger.Warn("site key extraction failed, using configured default",
				"default_set", d.defaultSiteKey != "",
			)
		}
		return desc
	}

	if imageURL, ok := d.findChallengeImage(sess); ok {
		return Descriptor{Kind: KindImage, ImageURL: imageURL, PageURL: pageURL}
	}

	return Descriptor{Kind: KindUnknown, PageURL: pageURL}
}

func (d *Detector) findChallengeFrame(sess *browser.Session) (string, bool) {
	res, err := sess.Page.Timeout(sess.Script).Eval(framesJS)
	if err != nil {
		return "", false
	}
	for _, f := range res.Value.Arr() {
		if !f.Get("visible").Bool() {
			continue
		}
		if matchChallengeFrame(f.Get("src").Str(), f.Get("title").Str()) {
			return f.Get("src").Str(), true
		}
	}
	return "", false
}

func (d *Detector) findChallengeImage(sess *browser.Session) (string, bool) {
	res, err := sess.Page.Timeout(sess.Script).Eval(imagesJS)
	if err != nil {
		return "", false
	}
	for _, img := range res.Value.Arr() {
		if !img.Get("visible").Bool() {
			continue
		}
		if matchChallengeImage(img.Get("src").Str(), img.Get("alt").Str()) {
			return img.Get("src").Str(), true
		}
	}
	return "", false
}
