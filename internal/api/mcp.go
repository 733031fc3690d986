package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/reqchat/internal/render"
	"github.com/kalambet/reqchat/internal/requirements"
	"github.com/kalambet/reqchat/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Sessions *session.Manager
	Version  string
}

// NewMCPServer creates an MCP server with the requirements tools and
// resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"reqchat",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("reqchat: conversational requirements gathering. Create a session, describe the system in natural language, and read back the structured requirements, architecture and quote request document."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("create_session",
			mcp.WithDescription("Start a new, empty requirements session and return its id."),
		),
		mcpCreateSession(deps),
	)

	s.AddTool(
		mcp.NewTool("send_message",
			mcp.WithDescription("Send a natural-language message to a session. Requirements found in it are merged into the session's store."),
			mcp.WithString("session_id", mcp.Description("Session id"), mcp.Required()),
			mcp.WithString("message", mcp.Description("Message text"), mcp.Required()),
		),
		mcpSendMessage(deps),
	)

	s.AddTool(
		mcp.NewTool("list_requirements",
			mcp.WithDescription("Return the session's structured requirements as JSON."),
			mcp.WithString("session_id", mcp.Description("Session id"), mcp.Required()),
		),
		mcpListRequirements(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_requirement",
			mcp.WithDescription("Delete one requirement by category and id."),
			mcp.WithString("session_id", mcp.Description("Session id"), mcp.Required()),
			mcp.WithString("category", mcp.Description("functional, nonFunctional, constraints, wishes or designGuidelines"), mcp.Required()),
			mcp.WithString("id", mcp.Description("Requirement id"), mcp.Required()),
		),
		mcpDeleteRequirement(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_architecture",
			mcp.WithDescription("Derive a system architecture from the session's requirements."),
			mcp.WithString("session_id", mcp.Description("Session id"), mcp.Required()),
			mcp.WithString("preferred_architecture_type", mcp.Description("Optional hint: auto, monolithic, microservices, serverless, spa_api, mobile_backend or event_driven")),
		),
		mcpGenerateArchitecture(deps),
	)

	s.AddTool(
		mcp.NewTool("validate_requirements",
			mcp.WithDescription("Assess the completeness of the session's requirements and return the formatted report."),
			mcp.WithString("session_id", mcp.Description("Session id"), mcp.Required()),
		),
		mcpValidate(deps),
	)

	s.AddTool(
		mcp.NewTool("render_quote",
			mcp.WithDescription("Render the quote request document (Markdown) for the session."),
			mcp.WithString("session_id", mcp.Description("Session id"), mcp.Required()),
		),
		mcpRenderQuote(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"reqchat://sessions",
			"Sessions",
			mcp.WithResourceDescription("Most recently updated sessions (summaries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSessions(deps),
	)

	return s
}

// mcpSession resolves the session_id argument.
func mcpSession(deps MCPDeps, req mcp.CallToolRequest) (*session.Session, *mcp.CallToolResult) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return nil, mcpError("session_id is required")
	}
	s, err := deps.Sessions.Get(id)
	if err != nil {
		return nil, mcpError(fmt.Sprintf("session %s: %v", id, err))
	}
	return s, nil
}

func mcpCreateSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, err := deps.Sessions.Create()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to create session: %v", err)), nil
		}
		return mcpText(s.ID()), nil
	}
}

func mcpSendMessage(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		s, res := mcpSession(deps, req)
		if res != nil {
			return res, nil
		}

		reply, err := s.SendMessage(ctx, message)
		if err != nil {
			return mcpError(fmt.Sprintf("send failed: %v", err)), nil
		}
		var b strings.Builder
		for _, m := range reply.Messages {
			b.WriteString(m.Content)
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "\n(added %d, skipped %d, total %d)", reply.Added, reply.Skipped, s.Requirements().Total())
		return mcpText(b.String()), nil
	}
}

func mcpListRequirements(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, res := mcpSession(deps, req)
		if res != nil {
			return res, nil
		}
		b, err := json.Marshal(s.Requirements())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal requirements: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpDeleteRequirement(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawCategory, err := req.RequireString("category")
		if err != nil {
			return mcpError("category is required"), nil
		}
		c, ok := requirements.ParseCategory(rawCategory)
		if !ok {
			return mcpError(fmt.Sprintf("unknown category %q", rawCategory)), nil
		}
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		s, res := mcpSession(deps, req)
		if res != nil {
			return res, nil
		}

		if err := s.DeleteItem(c, id); err != nil {
			return mcpError(fmt.Sprintf("delete failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Deleted %s/%s", c, id)), nil
	}
}

func mcpGenerateArchitecture(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, res := mcpSession(deps, req)
		if res != nil {
			return res, nil
		}

		arch, err := s.Regenerate(ctx, req.GetString("preferred_architecture_type", ""))
		if err != nil {
			return mcpError(fmt.Sprintf("architecture generation failed: %v", err)), nil
		}
		if arch == nil {
			return mcpText("No requirements yet; nothing to design."), nil
		}
		b, err := json.Marshal(arch)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal architecture: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpValidate(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, res := mcpSession(deps, req)
		if res != nil {
			return res, nil
		}

		_, msg, err := s.Validate(ctx)
		if err != nil {
			if errors.Is(err, session.ErrBusy) {
				return mcpError(err.Error()), nil
			}
			return mcpError(render.ValidationApology), nil
		}
		return mcpText(msg.Content), nil
	}
}

func mcpRenderQuote(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, res := mcpSession(deps, req)
		if res != nil {
			return res, nil
		}
		return mcpText(s.Quote()), nil
	}
}

func mcpResourceSessions(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		list, err := deps.Sessions.List(10)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}

		b, err := json.Marshal(list)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sessions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
