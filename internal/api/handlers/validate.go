package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/creatorstats/qptrd/internal/credential"
)

// CredentialChecker is the liveness-check surface the handler needs.
type CredentialChecker interface {
	Validate(ctx context.Context, token string) bool
}

// ValidateResponse reports the stored credential's liveness.
type ValidateResponse struct {
	CredentialCached bool   `json:"credential_cached"`
	Valid            bool   `json:"valid"`
	Credential       string `json:"credential,omitempty"`
	AcquiredAt       string `json:"acquired_at,omitempty"`
}

// ValidateOutput is the output wrapper for Huma.
type ValidateOutput struct {
	Body ValidateResponse
}

// ValidateHandler checks whether the stored credential still validates.
type ValidateHandler struct {
	store   *credential.Store
	checker CredentialChecker
	logger  *slog.Logger
}

// NewValidateHandler creates a validate handler.
func NewValidateHandler(store *credential.Store, checker CredentialChecker, logger *slog.Logger) *ValidateHandler {
	return &ValidateHandler{store: store, checker: checker, logger: logger}
}

// Handle validates the stored credential without mutating the store.
func (h *ValidateHandler) Handle(ctx context.Context) *ValidateResponse {
	cred := h.store.Get()
	if cred == nil {
		return &ValidateResponse{}
	}

	resp := &ValidateResponse{
		CredentialCached: true,
		Valid:            h.checker.Validate(ctx, cred.Token),
		Credential:       cred.Masked(),
		AcquiredAt:       cred.AcquiredAt.UTC().Format(time.RFC3339),
	}
	h.logger.Info("credential liveness checked", "valid", resp.Valid)
	return resp
}
