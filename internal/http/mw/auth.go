// Package mw contains HTTP middleware for the control surface.
package mw

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

// OperatorKey is the context key carrying the authenticated operator's
// subject.
const OperatorKey ContextKey = "operator"

// OperatorClaims are the claims accepted on an operator token.
type OperatorClaims struct {
	jwt.RegisteredClaims
}

// GetOperator retrieves the authenticated operator subject from context,
// or "" when the request was unauthenticated (auth disabled).
func GetOperator(ctx context.Context) string {
	sub, _ := ctx.Value(OperatorKey).(string)
	return sub
}

// Auth returns bearer-token middleware validating operator JWTs signed
// with the shared HS256 secret. An empty secret disables authentication
// and the middleware passes every request through.
func Auth(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeAuthError(w, "missing bearer token")
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			claims := &OperatorClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				if errors.Is(err, jwt.ErrTokenExpired) {
					writeAuthError(w, "token expired")
					return
				}
				logger.Debug("operator token rejected", "error", err)
				writeAuthError(w, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), OperatorKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
