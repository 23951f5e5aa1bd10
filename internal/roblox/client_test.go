package roblox

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/creatorstats/qptrd/internal/outcome"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestValidate_LiveCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != authenticatedUserPath {
			t.Errorf("path = %q, want %q", r.URL.Path, authenticatedUserPath)
		}
		cookie, err := r.Cookie(".ROBLOSECURITY")
		if err != nil {
			t.Fatal("session cookie not attached")
		}
		if cookie.Value != "token-1" {
			t.Errorf("cookie value = %q, want token-1", cookie.Value)
		}
		w.Write([]byte(`{"id":123,"name":"builder"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, ".ROBLOSECURITY", testLogger())
	if !c.Validate(context.Background(), "token-1") {
		t.Error("live credential reported invalid")
	}
}

func TestValidate_StaleCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, ".ROBLOSECURITY", testLogger())
	if c.Validate(context.Background(), "stale") {
		t.Error("401 credential reported valid")
	}
}

func TestValidate_TransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", ".ROBLOSECURITY", testLogger())
	if c.Validate(context.Background(), "any") {
		t.Error("unreachable endpoint reported valid")
	}
}

func TestFetchAnalytics_Stub(t *testing.T) {
	c := NewClient("", ".ROBLOSECURITY", testLogger())
	o := c.FetchAnalytics(context.Background(), "token", "7291257156")

	if !o.Success {
		t.Error("stub reported failure")
	}
	if o.Method != outcome.MethodAPIStub {
		t.Errorf("method = %q, want api_stub", o.Method)
	}
	if o.Artifact != "" {
		t.Errorf("stub produced artifact %q", o.Artifact)
	}
}
