// Package scraper pulls the QPTR metric off the rendered analytics
// dashboard.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/creatorstats/qptrd/internal/browser"
	"github.com/creatorstats/qptrd/internal/config"
	"github.com/creatorstats/qptrd/internal/outcome"
)

// qptrPatterns are tried in order against the page text; the first capture
// wins. The dashboard has shipped the metric under several labels.
var qptrPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)(\d+(?:\.\d+)?%)\s*(?:qualified|qptr|play.?through)`),
	regexp.MustCompile(`(?is)qualified.*?(\d+(?:\.\d+)?%)`),
	regexp.MustCompile(`(?is)play.?through.*?(\d+(?:\.\d+)?%)`),
}

// ExtractQPTR scans rendered text for the QPTR value.
func ExtractQPTR(text string) (string, bool) {
	for _, pat := range qptrPatterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ExtractFromHTML extracts the metric from raw page source by flattening
// it to text first. Fallback for pages whose innerText read came back
// empty.
func ExtractFromHTML(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	return ExtractQPTR(doc.Text())
}

// Result is one scrape attempt. Reason is empty on success, scrape_empty
// when the page rendered but carried no recognizable metric.
type Result struct {
	QPTR       string
	Screenshot []byte
	Reason     outcome.ReasonCode
}

// Scraper navigates to a game's analytics page inside an authenticated
// browser session and extracts QPTR.
type Scraper struct {
	urlFormat string
	settle    time.Duration
	logger    *slog.Logger
}

// New creates a scraper from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Scraper {
	return &Scraper{
		urlFormat: cfg.AnalyticsURLFormat,
		settle:    cfg.SettleAnalytics,
		logger:    logger,
	}
}

// AnalyticsURL returns the dashboard URL for a game.
func (s *Scraper) AnalyticsURL(gameID string) string {
	return fmt.Sprintf(s.urlFormat, gameID)
}

// Scrape loads the analytics page, waits out the dashboard's JS rendering,
// captures a screenshot, and extracts the metric.
func (s *Scraper) Scrape(ctx context.Context, sess *browser.Session, gameID string) Result {
	url := s.AnalyticsURL(gameID)

	if err := sess.Navigate(url); err != nil {
		s.logger.Warn("analytics navigation failed", "url", url, "error", err)
		return Result{Reason: outcome.ScrapeEmpty, Screenshot: sess.Screenshot()}
	}

	// The dashboard renders client-side; give it time.
	if err := sess.Settle(ctx, s.settle); err != nil {
		return Result{Reason: outcome.ScrapeEmpty, Screenshot: sess.Screenshot()}
	}

	shot := sess.Screenshot()

	if qptr, ok := ExtractQPTR(sess.BodyText()); ok {
		s.logger.Info("qptr extracted", "game_id", gameID, "qptr", qptr)
		return Result{QPTR: qptr, Screenshot: shot}
	}

	if html, err := sess.HTML(); err == nil {
		if qptr, ok := ExtractFromHTML(html); ok {
			s.logger.Info("qptr extracted from source", "game_id", gameID, "qptr", qptr)
			return Result{QPTR: qptr, Screenshot: shot}
		}
	}

	s.logger.Warn("no qptr value on analytics page", "game_id", gameID)
	return Result{Reason: outcome.ScrapeEmpty, Screenshot: shot}
}
