package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kyuho/barun/internal/checker"
	"github.com/kyuho/barun/internal/storage"
)

// MCPChecker abstracts the synchronous check path for the MCP layer.
type MCPChecker interface {
	CheckSync(ctx context.Context, text, providerName string) (storage.CheckResult, error)
	Availability(ctx context.Context) map[string]bool
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store   *storage.Store
	Checker MCPChecker
}

// NewMCPServer creates an MCP server with the barun tools and resources
// registered, for use from editors and agents over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"barun",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("barun — Korean proofreading and document search over a local daemon."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("proofread",
			mcp.WithDescription("Proofread Korean text and return the corrected text with a list of issues."),
			mcp.WithString("text", mcp.Description("The Korean text to check"), mcp.Required()),
			mcp.WithString("provider", mcp.Description("LLM provider to use (claude, openai, gemini); defaults to the first available")),
		),
		mcpProofread(deps),
	)

	s.AddTool(
		mcp.NewTool("search_documents",
			mcp.WithDescription("Search uploaded documents by keyword and return matching pages with snippets."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of matches (default 10)")),
		),
		mcpSearchDocuments(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"barun://providers",
			"Provider Availability",
			mcp.WithResourceDescription("Configured LLM providers and whether each is usable"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProviders(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"barun://history",
			"Recent Checks",
			mcp.WithResourceDescription("Last 10 completed checks (text excerpts only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceHistory(deps),
	)

	return s
}

func mcpProofread(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		providerName := req.GetString("provider", "")

		result, err := deps.Checker.CheckSync(ctx, text, providerName)
		if err != nil {
			if err == checker.ErrEmptyText || err == checker.ErrTextTooLong {
				return mcpError(err.Error()), nil
			}
			return mcpError(fmt.Sprintf("check failed: %v", err)), nil
		}

		issues := result.Issues
		if issues == "" {
			issues = "[]"
		}
		b, err := json.Marshal(map[string]any{
			"corrected_text": result.CorrectedText,
			"issues":         json.RawMessage(issues),
			"provider":       result.Provider,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		matches, err := deps.Store.SearchDocuments(query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		b, err := json.Marshal(toSearchMatchPayloads(matches))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal matches: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceProviders(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Checker.Availability(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal availability: %w", err)
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

func mcpResourceHistory(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		results, _, err := deps.Store.ListCheckResults(1, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to list checks: %w", err)
		}

		type checkSummary struct {
			ID        int64  `json:"id"`
			CreatedAt string `json:"created_at"`
			Provider  string `json:"provider"`
			Excerpt   string `json:"excerpt"`
		}

		summaries := make([]checkSummary, len(results))
		for i, r := range results {
			excerpt := r.OriginalText
			if utf8.RuneCountInString(excerpt) > 200 {
				runes := []rune(excerpt)
				excerpt = string(runes[:200]) + "..."
			}
			summaries[i] = checkSummary{
				ID:        r.ID,
				CreatedAt: r.CreatedAt.Format(time.RFC3339),
				Provider:  r.Provider,
				Excerpt:   excerpt,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal summaries: %w", err)
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
