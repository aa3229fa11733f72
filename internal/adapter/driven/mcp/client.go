// Package mcp implements the ToolCaller port against a remote MCP
// tool-execution server speaking JSON-RPC 2.0 over HTTP POST.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/flamedesk/flamedesk/internal/domain/model"
	"github.com/flamedesk/flamedesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ToolCaller = (*Client)(nil)

const (
	// protocolVersion is the MCP protocol revision negotiated on every handshake.
	protocolVersion = "2025-06-18"

	// sessionHeader carries the server-issued session ID from the initialize
	// response back on the tools/call request.
	sessionHeader = "Mcp-Session-Id"

	clientName    = "flamedesk-assistant"
	clientVersion = "1.0.0"
)

// ProtocolError is a failure reported by the tool server at either handshake
// step: a JSON-RPC error object, a non-success HTTP status, or a transport
// failure. Message carries the server's error message when one was available.
type ProtocolError struct {
	Method  string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("mcp %s: %s", e.Method, e.Message)
}

// Client performs the two-step tool handshake. It holds no per-call state;
// every CallTool runs a fresh initialize before tools/call.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a Client for the tool server at baseURL. The server's
// single RPC endpoint is <baseURL>/mcp.
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse mcp base url: %w", err)
	}
	u = u.JoinPath("mcp")

	return &Client{
		endpoint: u.String(),
		// Safety-net timeout alongside the caller's context deadline.
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client, intended
// for tests injecting an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	c, err := NewClient(baseURL)
	if err != nil {
		return nil, err
	}
	c.httpClient = httpClient
	return c, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ClientInfo      clientInfo     `json:"clientInfo"`
	Capabilities    map[string]any `json:"capabilities"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CallTool executes one named tool: initialize, then tools/call with the
// session ID the server issued (if any). A failure at the first step aborts
// before the second is attempted; neither step is retried.
func (c *Client) CallTool(ctx context.Context, bearerToken, toolName string, toolArgs map[string]any) (*model.ToolResult, error) {
	if toolArgs == nil {
		toolArgs = map[string]any{}
	}

	initReq := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: initializeParams{
			ProtocolVersion: protocolVersion,
			ClientInfo:      clientInfo{Name: clientName, Version: clientVersion},
			Capabilities:    map[string]any{},
		},
	}

	_, sessionID, err := c.post(ctx, bearerToken, "", initReq)
	if err != nil {
		return nil, err
	}

	callReq := rpcRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/call",
		Params:  toolCallParams{Name: toolName, Arguments: toolArgs},
	}

	resultRaw, _, err := c.post(ctx, bearerToken, sessionID, callReq)
	if err != nil {
		return nil, err
	}

	var result model.ToolResult
	if err := json.Unmarshal(resultRaw, &result); err != nil {
		return nil, &ProtocolError{Method: callReq.Method, Message: fmt.Sprintf("malformed tool result: %v", err)}
	}

	return &result, nil
}

// post sends one JSON-RPC request and returns the result payload plus any
// session ID the server attached to the response.
func (c *Client) post(ctx context.Context, bearerToken, sessionID string, req rpcRequest) (json.RawMessage, string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("marshal %s request: %w", req.Method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("create %s request: %w", req.Method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if bearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearerToken)
	}
	if sessionID != "" {
		httpReq.Header.Set(sessionHeader, sessionID)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", &ProtocolError{Method: req.Method, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer httpResp.Body.Close()

	// Decode the body even on non-2xx: error responses usually carry a
	// JSON-RPC error object whose message is worth surfacing.
	var rpcResp rpcResponse
	decodeErr := json.NewDecoder(httpResp.Body).Decode(&rpcResp)

	if rpcResp.Error != nil {
		return nil, "", &ProtocolError{Method: req.Method, Message: rpcResp.Error.Message}
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, "", &ProtocolError{Method: req.Method, Message: fmt.Sprintf("server returned status %d", httpResp.StatusCode)}
	}
	if decodeErr != nil {
		return nil, "", &ProtocolError{Method: req.Method, Message: fmt.Sprintf("malformed response: %v", decodeErr)}
	}

	return rpcResp.Result, httpResp.Header.Get(sessionHeader), nil
}
