// Package mcp implements the Model Context Protocol server for Scout.
//
// The MCP server exposes the analysis pipeline through MCP resources and
// tools, allowing MCP-compatible AI agents to run transcript analysis,
// check eligibility, and generate agent modules without the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/brightfield-ai/scout/internal/analysis"
	"github.com/brightfield-ai/scout/internal/catalog"
	"github.com/brightfield-ai/scout/internal/model"
)

// Server wraps the MCP server with Scout's service layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	svc       *analysis.Service
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources and tools.
func New(svc *analysis.Service, version string, logger *slog.Logger) *Server {
	s := &Server{
		svc:    svc,
		logger: logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"scout",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	// scout://agents/catalog — the fixed agent capability catalog.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"scout://agents/catalog",
			"Agent Catalog",
			mcplib.WithResourceDescription("The fixed catalog of agent capabilities, one entry per agent code"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleCatalog,
	)

	// scout://sessions/{id} — analysis state for a session.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"scout://sessions/{id}",
			"Session Analysis",
			mcplib.WithTemplateDescription("Guardrail-validated analysis result for a session"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleSession,
	)
}

func (s *Server) registerTools() {
	// scout_analyze — run the full analysis pipeline on a transcript.
	s.mcpServer.AddTool(
		mcplib.NewTool("scout_analyze",
			mcplib.WithDescription(`Analyze a discovery-call transcript against the agent capability catalog.

Extracts pain points, decides per-agent eligibility with evidence, ranks
eligible agents, and computes a coverage score. The result is stored under
the session ID for later module generation.

Call this FIRST. scout_generate_module refuses agents that this analysis
did not rank as eligible.`),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("transcript",
				mcplib.Description("The discovery call transcript text"),
				mcplib.Required(),
			),
			mcplib.WithString("company_info",
				mcplib.Description("Optional company background blurb"),
			),
			mcplib.WithString("session_id",
				mcplib.Description("Session identifier; defaults to 'default'"),
			),
			mcplib.WithString("priority",
				mcplib.Description("Comma-separated agent codes to prefer in ranking"),
			),
			mcplib.WithString("low_priority",
				mcplib.Description("Comma-separated agent codes needing extra evidence"),
			),
			mcplib.WithString("excluded",
				mcplib.Description("Comma-separated agent codes to exclude outright"),
			),
		),
		s.handleAnalyze,
	)

	// scout_check_eligibility — inspect a prior analysis for one agent.
	s.mcpServer.AddTool(
		mcplib.NewTool("scout_check_eligibility",
			mcplib.WithDescription(`Check whether an agent was ranked eligible by a prior scout_analyze run.

Returns the agent's eligibility record (evidence, confidence, reason) and
the session's full ranked list. Use this before scout_generate_module to
avoid a rejected request.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("agent_code",
				mcplib.Description("Agent code, e.g. HYPE, STRIKE, CARE"),
				mcplib.Required(),
			),
			mcplib.WithString("session_id",
				mcplib.Description("Session identifier; defaults to 'default'"),
			),
		),
		s.handleCheckEligibility,
	)

	// scout_generate_module — generate sanitized module text for one agent.
	s.mcpServer.AddTool(
		mcplib.NewTool("scout_generate_module",
			mcplib.WithDescription(`Generate the capability module text for one eligible agent.

The output is scoped to the agent's own capabilities; mentions of other
agents' owned capabilities are removed. An empty result means nothing in
the transcript maps to this agent's scope.`),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("agent_code",
				mcplib.Description("Agent code, e.g. HYPE, STRIKE, CARE"),
				mcplib.Required(),
			),
			mcplib.WithString("session_id",
				mcplib.Description("Session identifier; defaults to 'default'"),
			),
			mcplib.WithBoolean("force",
				mcplib.Description("Bypass the eligibility gate (the output is still sanitized)"),
			),
		),
		s.handleGenerateModule,
	)
}

func (s *Server) handleCatalog(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	codes := catalog.Codes()
	infos := make([]model.AgentInfo, 0, len(codes))
	for _, code := range codes {
		agent, err := catalog.Get(code)
		if err != nil {
			continue
		}
		infos = append(infos, model.AgentInfo{
			Code:        agent.Code,
			Name:        agent.Name,
			Description: agent.Description,
		})
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal catalog: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "scout://agents/catalog",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleSession(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	// Extract the session ID from the URI template parameter.
	sessionID := strings.TrimPrefix(request.Params.URI, "scout://sessions/")
	if sessionID == "" || sessionID == request.Params.URI {
		return nil, fmt.Errorf("mcp: invalid session URI: %s", request.Params.URI)
	}

	resp, err := s.svc.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("mcp: session %q: %w", sessionID, err)
	}

	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal session: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleAnalyze(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	transcript := request.GetString("transcript", "")
	if transcript == "" {
		return errorResult("transcript is required"), nil
	}

	req := model.AnalyzeRequest{
		Documents: []model.DocumentInput{{
			SourceID: "mcp_transcript",
			Role:     model.RoleTranscript,
			Sections: []model.SectionInput{{Title: "Transcript", Text: transcript}},
		}},
		CompanyInfo:    request.GetString("company_info", ""),
		SessionID:      request.GetString("session_id", ""),
		Priority:       model.ParseCSV(request.GetString("priority", "")),
		LowPriority:    model.ParseCSV(request.GetString("low_priority", "")),
		ExcludedAgents: model.ParseCSV(request.GetString("excluded", "")),
	}

	resp, err := s.svc.Analyze(ctx, req)
	if err != nil {
		return errorResult(fmt.Sprintf("analysis failed: %v", err)), nil
	}
	// The raw classifier text is audit detail; keep tool output compact.
	resp.Raw = ""
	return jsonResult(resp)
}

func (s *Server) handleCheckEligibility(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	code := request.GetString("agent_code", "")
	if code == "" {
		return errorResult("agent_code is required"), nil
	}
	if !catalog.Known(code) {
		return errorResult(fmt.Sprintf("unknown agent code %q", code)), nil
	}

	resp, err := s.svc.GetSession(ctx, request.GetString("session_id", ""))
	if err != nil {
		if errors.Is(err, analysis.ErrSessionNotFound) {
			return errorResult("no analysis found for this session; run scout_analyze first"), nil
		}
		return errorResult(fmt.Sprintf("session lookup failed: %v", err)), nil
	}

	out := struct {
		AgentCode    string                   `json:"agent_code"`
		Eligible     bool                     `json:"eligible"`
		Record       *model.EligibilityRecord `json:"record,omitempty"`
		AgentsRanked []string                 `json:"agents_ranked"`
	}{
		AgentCode:    code,
		AgentsRanked: resp.Analysis.AgentsRanked,
	}
	for _, ranked := range resp.Analysis.AgentsRanked {
		if ranked == code {
			out.Eligible = true
		}
	}
	if rec, ok := resp.Analysis.Eligibility[code]; ok {
		out.Record = &rec
	}
	return jsonResult(out)
}

func (s *Server) handleGenerateModule(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	code := request.GetString("agent_code", "")
	if code == "" {
		return errorResult("agent_code is required"), nil
	}

	resp, err := s.svc.GenerateModule(ctx, model.GenerateModuleRequest{
		AgentCode: code,
		SessionID: request.GetString("session_id", ""),
		Force:     request.GetBool("force", false),
	})
	if err != nil {
		var ineligible *analysis.IneligibleAgentError
		if errors.As(err, &ineligible) {
			return errorResult(fmt.Sprintf("agent %s is not eligible for this session (eligible: %v); re-run scout_analyze or set force", ineligible.AgentCode, ineligible.EligibleAgents)), nil
		}
		return errorResult(fmt.Sprintf("module generation failed: %v", err)), nil
	}
	return jsonResult(resp)
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
