package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/reqchat/internal/requirements"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func newTestMCPDeps(t *testing.T) (MCPDeps, *testEnv) {
	t.Helper()
	e := newTestEnv(t, "")
	return MCPDeps{Sessions: e.deps.Sessions}, e
}

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := h(context.Background(), makeCallToolRequest(name, args))
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", name, err)
	}
	return result
}

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if NewMCPServer(deps) == nil {
		t.Fatal("expected non-nil server")
	}
}

func TestMCPTools_Conversation(t *testing.T) {
	deps, e := newTestMCPDeps(t)
	e.oracle.extraction = functional("ユーザー登録", "ログイン")

	res := callTool(t, mcpCreateSession(deps), "create_session", nil)
	if res.IsError {
		t.Fatalf("create_session: %s", toolText(t, res))
	}
	id := toolText(t, res)

	res = callTool(t, mcpSendMessage(deps), "send_message", map[string]interface{}{"session_id": id, "message": "ユーザー登録とログイン"})
	if res.IsError {
		t.Fatalf("send_message: %s", toolText(t, res))
	}
	if !strings.Contains(toolText(t, res), "added 2") {
		t.Errorf("send_message text = %q", toolText(t, res))
	}

	res = callTool(t, mcpListRequirements(deps), "list_requirements", map[string]interface{}{"session_id": id})
	var doc requirements.Document
	if err := json.Unmarshal([]byte(toolText(t, res)), &doc); err != nil {
		t.Fatalf("list_requirements: %v", err)
	}
	if len(doc.Functional) != 2 {
		t.Errorf("functional = %+v", doc.Functional)
	}

	res = callTool(t, mcpRenderQuote(deps), "render_quote", map[string]interface{}{"session_id": id})
	if !strings.Contains(toolText(t, res), "機能要件（2件）") {
		t.Errorf("quote = %q", toolText(t, res))
	}

	res = callTool(t, mcpGenerateArchitecture(deps), "generate_architecture", map[string]interface{}{"session_id": id, "preferred_architecture_type": "serverless"})
	if res.IsError || !strings.Contains(toolText(t, res), `"serverless"`) {
		t.Errorf("generate_architecture = %q", toolText(t, res))
	}

	res = callTool(t, mcpDeleteRequirement(deps), "delete_requirement", map[string]interface{}{"session_id": id, "category": "functional", "id": "f1"})
	if res.IsError {
		t.Fatalf("delete_requirement: %s", toolText(t, res))
	}
	res = callTool(t, mcpDeleteRequirement(deps), "delete_requirement", map[string]interface{}{"session_id": id, "category": "functional", "id": "f1"})
	if !res.IsError {
		t.Error("second delete should fail")
	}

	e.oracle.validation = requirements.ValidationResult{OverallStatus: requirements.StatusWarning, CompletenessScore: 45}
	res = callTool(t, mcpValidate(deps), "validate_requirements", map[string]interface{}{"session_id": id})
	if res.IsError || !strings.Contains(toolText(t, res), "要検討") {
		t.Errorf("validate_requirements = %q", toolText(t, res))
	}
}

func TestMCPTools_ArgumentErrors(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	tests := []struct {
		name string
		res  func() *mcp.CallToolResult
	}{
		{"missing session", func() *mcp.CallToolResult {
			return callTool(t, mcpListRequirements(deps), "list_requirements", map[string]interface{}{})
		}},
		{"unknown session", func() *mcp.CallToolResult {
			return callTool(t, mcpRenderQuote(deps), "render_quote", map[string]interface{}{"session_id": "nope"})
		}},
		{"missing message", func() *mcp.CallToolResult {
			return callTool(t, mcpSendMessage(deps), "send_message", map[string]interface{}{"session_id": "nope"})
		}},
		{"unknown category", func() *mcp.CallToolResult {
			return callTool(t, mcpDeleteRequirement(deps), "delete_requirement", map[string]interface{}{"session_id": "nope", "category": "misc", "id": "x"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := tt.res(); !res.IsError {
				t.Errorf("expected error result, got %q", toolText(t, res))
			}
		})
	}
}

func TestMCPResource_Sessions(t *testing.T) {
	deps, e := newTestMCPDeps(t)
	e.createSession(t)

	contents, err := mcpResourceSessions(deps)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "reqchat://sessions"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	var list []map[string]any
	if err := json.Unmarshal([]byte(text), &list); err != nil || len(list) != 1 {
		t.Fatalf("sessions = %s (%v)", text, err)
	}
}
