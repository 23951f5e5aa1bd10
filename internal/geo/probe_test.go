package geo

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestProbe_UnrestrictedRegion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","countryCode":"US","continentCode":"NA","query":"203.0.113.9"}`))
	}))
	defer srv.Close()

	p := New(srv.URL, []string{"GB"}, []string{"EU"}, testLogger())
	report := p.Do(context.Background())

	if report.Restricted {
		t.Error("US/NA classified as restricted")
	}
	if report.CountryCode != "US" {
		t.Errorf("CountryCode = %q, want US", report.CountryCode)
	}
	if report.ContinentCode != "NA" {
		t.Errorf("ContinentCode = %q, want NA", report.ContinentCode)
	}
	if report.PublicIP != "203.0.113.9" {
		t.Errorf("PublicIP = %q, want 203.0.113.9", report.PublicIP)
	}
}

func TestProbe_RestrictedByContinent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","countryCode":"DE","continentCode":"EU","query":"198.51.100.4"}`))
	}))
	defer srv.Close()

	p := New(srv.URL, nil, []string{"EU"}, testLogger())
	if report := p.Do(context.Background()); !report.Restricted {
		t.Error("EU continent not classified as restricted")
	}
}

func TestProbe_RestrictedByCountry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","countryCode":"GB","continentCode":"EU","query":"198.51.100.4"}`))
	}))
	defer srv.Close()

	// GB restricted even when its continent is not in the restricted set.
	p := New(srv.URL, []string{"GB"}, nil, testLogger())
	if report := p.Do(context.Background()); !report.Restricted {
		t.Error("GB country not classified as restricted")
	}
}

func TestProbe_FailsClosed(t *testing.T) {
	t.Run("endpoint unreachable", func(t *testing.T) {
		p := New("http://127.0.0.1:1", nil, nil, testLogger())
		if report := p.Do(context.Background()); !report.Restricted {
			t.Error("unreachable endpoint did not fail closed")
		}
	})

	t.Run("non-200 response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		p := New(srv.URL, nil, nil, testLogger())
		if report := p.Do(context.Background()); !report.Restricted {
			t.Error("non-200 response did not fail closed")
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		p := New(srv.URL, nil, nil, testLogger())
		if report := p.Do(context.Background()); !report.Restricted {
			t.Error("malformed body did not fail closed")
		}
	})

	t.Run("lookup failure status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"fail"}`))
		}))
		defer srv.Close()

		p := New(srv.URL, nil, nil, testLogger())
		if report := p.Do(context.Background()); !report.Restricted {
			t.Error("lookup failure did not fail closed")
		}
	})
}
