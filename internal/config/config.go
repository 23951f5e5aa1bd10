// Package config provides configuration management for the QPTR agent.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the agent. Secrets (Roblox credentials,
// solver key, operator token secret) come from the environment only; nothing
// is compiled in.
type Config struct {
	// Server settings
	Port        int
	LogLevel    string
	IdleTimeout time.Duration

	// Target credentials
	RobloxUsername string
	RobloxPassword string

	// Browser settings
	BrowserFarmURL      string // remote DevTools endpoint; empty means launch locally
	ChromePath          string
	BrowserLeaseTimeout time.Duration
	PageLoadTimeout     time.Duration
	ScriptTimeout       time.Duration
	ElementWaitTimeout  time.Duration

	// Login / scrape settings
	LoginURL           string
	AnalyticsURLFormat string
	SessionCookieName  string
	SettleAfterLogin   time.Duration
	SettleAnalytics    time.Duration

	// CAPTCHA solver settings
	TwoCaptchaAPIKey         string
	DefaultFunCaptchaSiteKey string

	// Geo probe settings
	GeoEndpoint          string
	RestrictedCountries  []string
	RestrictedContinents []string

	// Operator auth
	OperatorJWTSecret string

	// Diagnostics journal
	JournalDBPath string
}

// Load creates a Config from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:        getEnvInt("PORT", 8292),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		IdleTimeout: getEnvDuration("IDLE_TIMEOUT", 0),

		RobloxUsername: getEnv("ROBLOX_USERNAME", ""),
		RobloxPassword: getEnv("ROBLOX_PASSWORD", ""),

		BrowserFarmURL:      getEnv("BROWSER_FARM_URL", ""),
		ChromePath:          getEnv("CHROME_PATH", ""),
		BrowserLeaseTimeout: getEnvDuration("BROWSER_LEASE_TIMEOUT", 30*time.Second),
		PageLoadTimeout:     getEnvDuration("PAGE_LOAD_TIMEOUT", 60*time.Second),
		ScriptTimeout:       getEnvDuration("SCRIPT_TIMEOUT", 30*time.Second),
		ElementWaitTimeout:  getEnvDuration("ELEMENT_WAIT_TIMEOUT", 10*time.Second),

		LoginURL:           getEnv("LOGIN_URL", "https://www.roblox.com/login"),
		AnalyticsURLFormat: getEnv("ANALYTICS_URL_FORMAT", "https://create.roblox.com/dashboard/creations/experiences/%s/analytics"),
		SessionCookieName:  getEnv("SESSION_COOKIE_NAME", ".ROBLOSECURITY"),
		SettleAfterLogin:   getEnvDuration("SETTLE_AFTER_LOGIN", 5*time.Second),
		SettleAnalytics:    getEnvDuration("SETTLE_ANALYTICS", 15*time.Second),

		TwoCaptchaAPIKey:         getEnv("TWOCAPTCHA_API_KEY", ""),
		DefaultFunCaptchaSiteKey: getEnv("DEFAULT_FUNCAPTCHA_SITE_KEY", ""),

		GeoEndpoint:          getEnv("GEO_ENDPOINT", "http://ip-api.com/json/?fields=status,countryCode,continentCode,query"),
		RestrictedCountries:  getEnvList("RESTRICTED_COUNTRIES", []string{"GB", "IS", "LI", "NO", "CH"}),
		RestrictedContinents: getEnvList("RESTRICTED_CONTINENTS", []string{"EU"}),

		OperatorJWTSecret: getEnv("OPERATOR_JWT_SECRET", ""),

		JournalDBPath: getEnv("JOURNAL_DB_PATH", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
