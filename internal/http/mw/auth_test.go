package mw

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func signToken(t *testing.T, secret string, expiresIn time.Duration) string {
	t.Helper()
	claims := OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func authedHandler(t *testing.T, secret string) (http.Handler, *string) {
	t.Helper()
	var gotOperator string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOperator = GetOperator(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return Auth(secret, testLogger())(inner), &gotOperator
}

func TestAuth_DisabledWithoutSecret(t *testing.T) {
	h, _ := authedHandler(t, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", rec.Code)
	}
}

func TestAuth_ValidToken(t *testing.T) {
	h, operator := authedHandler(t, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/scrape", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret", time.Hour))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if *operator != "ops" {
		t.Errorf("operator = %q, want ops", *operator)
	}
}

func TestAuth_MissingToken(t *testing.T) {
	h, _ := authedHandler(t, "s3cret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scrape", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_WrongSecret(t *testing.T) {
	h, _ := authedHandler(t, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/scrape", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", time.Hour))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	h, _ := authedHandler(t, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/scrape", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret", -time.Minute))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
