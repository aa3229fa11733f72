package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flamedesk/flamedesk/internal/adapter/driven/mcp"
	"github.com/flamedesk/flamedesk/internal/application"
	"github.com/flamedesk/flamedesk/internal/domain/model"
	"github.com/flamedesk/flamedesk/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	auth      *application.AuthService
	keySvc    *application.KeyService
	assistant *application.AssistantService
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	auth *application.AuthService,
	keySvc *application.KeyService,
	assistant *application.AssistantService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		auth:      auth,
		keySvc:    keySvc,
		assistant: assistant,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. Every route except the health check
// requires an authenticated principal.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)

	auth := h.requireAuth
	mux.Handle("GET /api/v1/me", auth(h.Me))
	mux.Handle("GET /api/v1/api-keys", auth(h.ListAPIKeys))
	mux.Handle("POST /api/v1/api-keys", auth(h.CreateAPIKey))
	mux.Handle("DELETE /api/v1/api-keys/{id}", auth(h.RevokeAPIKey))
	mux.Handle("POST /api/v1/assistant/tool", auth(h.InvokeTool))

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Me returns the authenticated principal's identity.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())

	resp := MeResponse{
		UserID:         p.UserID,
		Email:          p.Email,
		Role:           p.Role,
		OrganizationID: p.OrganizationID,
		AuthChannel:    string(p.Channel),
	}
	if p.Channel == model.ChannelAPIKey {
		resp.APIKeyScope = string(p.APIKeyScope)
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListAPIKeys returns the caller's API keys, newest first. Metadata only; the
// secret is never recoverable after issuance.
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())

	keys, err := h.keySvc.List(r.Context(), p)
	if err != nil {
		h.logger.Error("failed to list api keys", "user_id", p.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		resp = append(resp, toAPIKeyResponse(k))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateAPIKey mints a new API key for the caller. The response is the only
// place the full key ever appears in plaintext.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())

	var req CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	scope, err := model.ParseScope(req.Scope)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scope: expected read or read_write")
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid expires_at: expected RFC 3339 timestamp")
			return
		}
		if !t.After(time.Now()) {
			writeError(w, http.StatusBadRequest, "expires_at must be in the future")
			return
		}
		utc := t.UTC()
		expiresAt = &utc
	}

	key, fullKey, err := h.keySvc.Issue(r.Context(), p, req.Name, scope, expiresAt)
	if err != nil {
		h.logger.Error("failed to issue api key", "user_id", p.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, CreateAPIKeyResponse{
		APIKeyResponse: toAPIKeyResponse(key),
		Key:            fullKey,
	})
}

// RevokeAPIKey logically revokes one of the caller's keys.
func (h *Handler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	keyID := r.PathValue("id")

	ok, err := h.keySvc.Revoke(r.Context(), p, keyID)
	if err != nil {
		h.logger.Error("failed to revoke api key", "user_id", p.UserID, "key_id", keyID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !ok {
		writeError(w, http.StatusNotFound, "api key not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// InvokeTool runs one assistant tool call on the caller's behalf.
func (h *Handler) InvokeTool(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())

	var req InvokeToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ToolName == "" {
		writeError(w, http.StatusBadRequest, "tool_name is required")
		return
	}

	inv, err := h.assistant.InvokeTool(r.Context(), p, req.ToolName, req.ToolArgs)
	if err != nil {
		var protoErr *mcp.ProtocolError
		switch {
		case errors.As(err, &protoErr):
			h.logger.Error("tool server rejected call", "tool", req.ToolName, "method", protoErr.Method, "error", err)
			writeError(w, http.StatusBadGateway, "tool server error: "+protoErr.Message)
		case errors.Is(err, driven.ErrVaultSecretNotSet):
			h.logger.Error("assistant credentials unavailable", "error", err)
			writeError(w, http.StatusInternalServerError, "assistant is not configured: set FLAMEDESK_VAULT_SECRET")
		default:
			h.logger.Error("tool invocation failed", "tool", req.ToolName, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, InvokeToolResponse{
		ToolResult:  inv.Result,
		UIResource:  inv.UIResource,
		PreviewHTML: inv.PreviewHTML,
	})
}
