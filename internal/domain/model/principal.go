package model

// AuthChannel indicates how a request was authenticated.
type AuthChannel string

const (
	ChannelAPIKey  AuthChannel = "api_key"
	ChannelSession AuthChannel = "session"
)

// Principal is the per-request authenticated identity. It is never persisted;
// role, organization, and email are re-read from storage on every request so
// that role changes and deactivation take effect immediately.
type Principal struct {
	UserID         string
	Role           string
	OrganizationID string
	Email          string
	Channel        AuthChannel

	// APIKeyID and APIKeyScope are populated only when Channel is ChannelAPIKey.
	APIKeyID    string
	APIKeyScope Scope
}
