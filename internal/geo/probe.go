// Package geo determines whether the host sits in a jurisdiction that
// triggers the consent interstitial on the target site.
package geo

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Report is the result of a single geolocation probe. Produced once per
// request; immutable afterwards.
type Report struct {
	CountryCode   string `json:"country_code"`
	ContinentCode string `json:"continent_code"`
	Restricted    bool   `json:"is_restricted_region"`
	PublicIP      string `json:"public_ip"`
}

// Probe queries a public IP-geolocation endpoint and classifies the region
// against a static restricted set. It fails closed: any error yields a
// report with Restricted = true, so the consent suppressor runs when in
// doubt. A false positive only costs an unnecessary suppressor pass; a
// false negative would break the login silently.
type Probe struct {
	endpoint   string
	countries  map[string]bool
	continents map[string]bool
	client     *http.Client
	logger     *slog.Logger
}

// New creates a probe against the given endpoint. The endpoint must return
// JSON with status, countryCode, continentCode and query (the ip-api.com
// field set).
func New(endpoint string, countries, continents []string, logger *slog.Logger) *Probe {
	p := &Probe{
		endpoint:   endpoint,
		countries:  make(map[string]bool, len(countries)),
		continents: make(map[string]bool, len(continents)),
		client:     &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
	for _, c := range countries {
		p.countries[c] = true
	}
	for _, c := range continents {
		p.continents[c] = true
	}
	return p
}

type geoResponse struct {
	Status        string `json:"status"`
	CountryCode   string `json:"countryCode"`
	ContinentCode string `json:"continentCode"`
	Query         string `json:"query"`
}

// Do runs the probe. It never returns an error; failure modes collapse into
// a pessimistic restricted report.
func (p *Probe) Do(ctx context.Context) Report {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return p.failClosed("build request", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return p.failClosed("geolocation request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("geolocation endpoint returned non-200, assuming restricted region", "status", resp.StatusCode)
		return Report{Restricted: true}
	}

	var body geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return p.failClosed("decode response", err)
	}
	if body.Status != "" && body.Status != "success" {
		p.logger.Warn("geolocation lookup unsuccessful, assuming restricted region", "status", body.Status)
		return Report{Restricted: true}
	}

	report := Report{
		CountryCode:   body.CountryCode,
		ContinentCode: body.ContinentCode,
		PublicIP:      body.Query,
		Restricted:    p.continents[body.ContinentCode] || p.countries[body.CountryCode],
	}

	p.logger.Debug("geolocation probe complete",
		"country", report.CountryCode,
		"continent", report.ContinentCode,
		"restricted", report.Restricted,
	)
	return report
}

func (p *Probe) failClosed(step string, err error) Report {
	p.logger.Warn("geolocation probe failed, assuming restricted region", "step", step, "error", err)
	return Report{Restricted: true}
}
