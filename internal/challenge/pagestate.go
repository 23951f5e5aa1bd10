package challenge

import "strings"

// PageState is the closed set of observations about where a login attempt
// currently stands. Every call-site that needs to know "what page are we
// on" consults Classify instead of doing its own text probing.
type PageState string

const (
	// StateLoggedIn means the URL advanced to a known post-login host.
	StateLoggedIn PageState = "logged_in"

	// StateChallenge means a challenge indicator is present in body text.
	StateChallenge PageState = "challenge"

	// StateLoginError means we are still on the login page and the body
	// carries an error phrase, typically rejected credentials.
	StateLoginError PageState = "login_error"

	// StateLogin means we are on the login page with no error shown.
	StateLogin PageState = "login"

	// StateUnknown means none of the above matched.
	StateUnknown PageState = "unknown"
)

// postLoginHosts mark a URL as past the login wall.
var postLoginHosts = []string{"create.roblox.com", "dashboard", "home"}

// loginErrorWords mark a login page as showing a credential error.
var loginErrorWords = []string{"incorrect", "invalid", "error", "try again"}

// Classify maps the current URL and rendered body text to a PageState.
// A post-login URL wins over lingering challenge text, so a cleared
// challenge whose banner has not yet unmounted still reads as logged in.
func Classify(pageURL, bodyText string) PageState {
	u := strings.ToLower(pageURL)
	b := strings.ToLower(bodyText)

	for _, host := range postLoginHosts {
		if strings.Contains(u, host) {
			return StateLoggedIn
		}
	}

	if ContainsIndicator(b) {
		return StateChallenge
	}

	if strings.Contains(u, "login") {
		for _, word := range loginErrorWords {
			if strings.Contains(b, word) {
				return StateLoginError
			}
		}
		return StateLogin
	}

	return StateUnknown
}
