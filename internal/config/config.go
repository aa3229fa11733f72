// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr    string
	DBPath        string
	VaultSecret   string
	SessionSecret string
	MCPBaseURL    string
}

// HasSessionSecret returns true when a session signing secret is configured.
// Used by the composition root to decide whether to enable the browser
// session channel; without it, only API key auth is active.
func (c *Config) HasSessionSecret() bool {
	return c.SessionSecret != ""
}

// HasMCPBaseURL returns true when a tool server endpoint is configured. The
// assistant tool route returns errors until one is set.
func (c *Config) HasMCPBaseURL() bool {
	return c.MCPBaseURL != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// FLAMEDESK_VAULT_SECRET, FLAMEDESK_SESSION_SECRET, and FLAMEDESK_MCP_BASE_URL are
// optional; the features depending on them stay disabled until provided.
// Optional variables with defaults: FLAMEDESK_LISTEN_ADDR (127.0.0.1:8080),
// FLAMEDESK_DB_PATH (flamedesk.db).
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("FLAMEDESK_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "flamedesk.db"
	if v, ok := os.LookupEnv("FLAMEDESK_DB_PATH"); ok {
		dbPath = v
	}

	mcpBaseURL := os.Getenv("FLAMEDESK_MCP_BASE_URL")
	if mcpBaseURL != "" {
		u, err := url.Parse(mcpBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("FLAMEDESK_MCP_BASE_URL has invalid url %q", mcpBaseURL)
		}
	}

	return &Config{
		ListenAddr:    listenAddr,
		DBPath:        dbPath,
		VaultSecret:   os.Getenv("FLAMEDESK_VAULT_SECRET"),
		SessionSecret: os.Getenv("FLAMEDESK_SESSION_SECRET"),
		MCPBaseURL:    mcpBaseURL,
	}, nil
}
