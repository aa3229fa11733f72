package application_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flamedesk/flamedesk/internal/application"
	"github.com/flamedesk/flamedesk/internal/domain/model"
	"github.com/flamedesk/flamedesk/internal/domain/port/driven"
)

func newAssistantFixture(t *testing.T, tools driven.ToolCaller) (*application.AssistantService, *fakeVaultStore) {
	t.Helper()

	vaultStore := newFakeVaultStore()
	vault := application.NewVaultService(newFakeKeyStore(), vaultStore, testVaultSecret, slog.Default())
	return application.NewAssistantService(vault, tools, slog.Default()), vaultStore
}

func testPrincipal() *model.Principal {
	return &model.Principal{
		UserID:         "user-1",
		Role:           "member",
		OrganizationID: "org-1",
		Channel:        model.ChannelSession,
	}
}

func TestAssistantService_InvokeTool(t *testing.T) {
	tools := &fakeToolCaller{
		result: &model.ToolResult{
			Content: []model.ToolContent{
				{Type: "text", Text: "# Tickets\n\nTwo **open** tickets."},
				{Type: "resource", URI: "ui://tickets/list", MimeType: "text/html"},
			},
		},
	}
	svc, vaultStore := newAssistantFixture(t, tools)

	inv, err := svc.InvokeTool(context.Background(), testPrincipal(), "list_tickets", map[string]any{"status": "open"})
	require.NoError(t, err)

	require.Len(t, tools.calls, 1)
	call := tools.calls[0]
	assert.Equal(t, "list_tickets", call.Name)
	assert.Equal(t, map[string]any{"status": "open"}, call.Args)

	// The bearer handed to the tool server is the vault-minted machine
	// credential, not anything the caller supplied.
	prefix, _, ok := model.ParseKeyToken(call.Bearer)
	require.True(t, ok)
	entries := vaultStore.liveEntries()
	require.Len(t, entries, 1)
	assert.NotEmpty(t, prefix)

	assert.Equal(t, tools.result, inv.Result)

	var resource map[string]any
	require.NoError(t, json.Unmarshal(inv.UIResource, &resource))
	assert.Equal(t, "ui://tickets/list", resource["uri"])

	assert.Contains(t, inv.PreviewHTML, "<h1")
	assert.Contains(t, inv.PreviewHTML, "<strong>open</strong>")
}

func TestAssistantService_InvokeTool_ReusesMachineCredential(t *testing.T) {
	tools := &fakeToolCaller{result: &model.ToolResult{}}
	svc, _ := newAssistantFixture(t, tools)

	_, err := svc.InvokeTool(context.Background(), testPrincipal(), "a", nil)
	require.NoError(t, err)
	_, err = svc.InvokeTool(context.Background(), testPrincipal(), "b", nil)
	require.NoError(t, err)

	require.Len(t, tools.calls, 2)
	assert.Equal(t, tools.calls[0].Bearer, tools.calls[1].Bearer)
}

func TestAssistantService_InvokeTool_NoUIResource(t *testing.T) {
	tools := &fakeToolCaller{
		result: &model.ToolResult{
			Content: []model.ToolContent{{Type: "text", Text: "plain answer"}},
		},
	}
	svc, _ := newAssistantFixture(t, tools)

	inv, err := svc.InvokeTool(context.Background(), testPrincipal(), "ask", nil)
	require.NoError(t, err)
	assert.Nil(t, inv.UIResource)
	assert.Contains(t, inv.PreviewHTML, "plain answer")
}

func TestAssistantService_InvokeTool_CallerError(t *testing.T) {
	tools := &fakeToolCaller{err: assert.AnError}
	svc, _ := newAssistantFixture(t, tools)

	_, err := svc.InvokeTool(context.Background(), testPrincipal(), "broken_tool", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), `call tool "broken_tool"`)
}

func TestAssistantService_InvokeTool_VaultSecretMissing(t *testing.T) {
	vault := application.NewVaultService(newFakeKeyStore(), newFakeVaultStore(), "", slog.Default())
	tools := &fakeToolCaller{result: &model.ToolResult{}}
	svc := application.NewAssistantService(vault, tools, slog.Default())

	_, err := svc.InvokeTool(context.Background(), testPrincipal(), "any", nil)
	require.ErrorIs(t, err, driven.ErrVaultSecretNotSet)
	assert.Empty(t, tools.calls, "tool server must not be contacted without a credential")
}
