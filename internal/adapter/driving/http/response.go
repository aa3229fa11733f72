package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flamedesk/flamedesk/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// MeResponse describes the authenticated principal.
type MeResponse struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id,omitempty"`
	AuthChannel    string `json:"auth_channel"`
	APIKeyScope    string `json:"api_key_scope,omitempty"`
}

// APIKeyResponse is the metadata-only JSON representation of an API key. It
// carries the lookup prefix for display but never the hash or the secret.
type APIKeyResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Scope      string `json:"scope"`
	KeyPrefix  string `json:"key_prefix"`
	CreatedAt  string `json:"created_at"`
	LastUsedAt string `json:"last_used_at,omitempty"`
	ExpiresAt  string `json:"expires_at,omitempty"`
	RevokedAt  string `json:"revoked_at,omitempty"`
}

// CreateAPIKeyRequest is the JSON body for the create key endpoint.
type CreateAPIKeyRequest struct {
	Name      string `json:"name"`
	Scope     string `json:"scope"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// CreateAPIKeyResponse carries the new key's metadata plus the full plaintext
// key, shown exactly once.
type CreateAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}

// InvokeToolRequest is the JSON body for the assistant tool endpoint.
type InvokeToolRequest struct {
	ToolName string         `json:"tool_name"`
	ToolArgs map[string]any `json:"tool_args,omitempty"`
}

// InvokeToolResponse is the outcome of one tool invocation.
type InvokeToolResponse struct {
	ToolResult  *model.ToolResult `json:"tool_result"`
	UIResource  json.RawMessage   `json:"ui_resource,omitempty"`
	PreviewHTML string            `json:"preview_html,omitempty"`
}

// toAPIKeyResponse converts a domain APIKey to its JSON response representation.
func toAPIKeyResponse(k model.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:         k.ID,
		Name:       k.Name,
		Scope:      string(k.Scope),
		KeyPrefix:  k.Prefix,
		CreatedAt:  k.CreatedAt.UTC().Format(time.RFC3339),
		LastUsedAt: formatOptional(k.LastUsedAt),
		ExpiresAt:  formatOptional(k.ExpiresAt),
		RevokedAt:  formatOptional(k.RevokedAt),
	}
}

// formatOptional renders a nullable timestamp, or "" when absent.
func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
