package driven

import (
	"context"

	"github.com/flamedesk/flamedesk/internal/domain/model"
)

// ToolCaller defines the driven port onto the remote tool-execution server.
// Each call is an independent two-step handshake (initialize, then
// tools/call); implementations hold no session state between calls.
type ToolCaller interface {
	CallTool(ctx context.Context, bearerToken, toolName string, toolArgs map[string]any) (*model.ToolResult, error)
}
