package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/flamedesk/flamedesk/internal/domain/model"
	"github.com/flamedesk/flamedesk/internal/domain/port/driven"
)

// ToolInvocation is the outcome of one assistant tool call: the raw result,
// the first embedded UI resource (if any), and a sanitized HTML preview of
// the first text content item.
type ToolInvocation struct {
	Result      *model.ToolResult
	UIResource  json.RawMessage
	PreviewHTML string
}

// AssistantService orchestrates one tool invocation on behalf of an
// authenticated principal: fetch (or mint) the user's machine credential from
// the vault, run the two-step handshake, and extract the renderable parts.
type AssistantService struct {
	vault  *VaultService
	tools  driven.ToolCaller
	logger *slog.Logger
}

// NewAssistantService creates an AssistantService.
func NewAssistantService(vault *VaultService, tools driven.ToolCaller, logger *slog.Logger) *AssistantService {
	return &AssistantService{
		vault:  vault,
		tools:  tools,
		logger: logger,
	}
}

// InvokeTool runs the named tool for the principal. The machine credential is
// handed to the tool server and never returned to the caller.
func (s *AssistantService) InvokeTool(ctx context.Context, principal *model.Principal, toolName string, toolArgs map[string]any) (*ToolInvocation, error) {
	machineKey, err := s.vault.GetOrCreate(ctx, principal.UserID, principal.OrganizationID)
	if err != nil {
		return nil, err
	}

	result, err := s.tools.CallTool(ctx, machineKey, toolName, toolArgs)
	if err != nil {
		return nil, fmt.Errorf("call tool %q: %w", toolName, err)
	}

	s.logger.Info("tool invoked", "user_id", principal.UserID, "tool", toolName)

	return &ToolInvocation{
		Result:      result,
		UIResource:  result.UIResource(),
		PreviewHTML: RenderMarkdown(result.FirstText()),
	}, nil
}
