// Package mcp exposes the fetch pipeline and reference store as MCP tools
// over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mfenderov/refstash/internal/batch"
	"github.com/mfenderov/refstash/internal/browser"
	"github.com/mfenderov/refstash/internal/pipeline"
	"github.com/mfenderov/refstash/internal/store"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Server wraps the MCP server around the fetch pipeline and reference store.
type Server struct {
	mcpServer *server.MCPServer
	store     *store.Store
	fetcher   *pipeline.Fetcher
	links     *batch.Fetcher
	browser   *browser.Manager
}

// NewServer creates an MCP server exposing the refstash tools.
func NewServer(cfg Config, st *store.Store, fetcher *pipeline.Fetcher, links *batch.Fetcher, mgr *browser.Manager) *Server {
	mcpServer := server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		store:     st,
		fetcher:   fetcher,
		links:     links,
		browser:   mgr,
	}

	fetchTool := mcp.NewTool("fetch_url",
		mcp.WithDescription("Fetch a URL, extract its readable content as markdown, and save it as a reference. Falls back to a headless browser render when the plain fetch is low quality."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to fetch"),
		),
		mcp.WithString("query",
			mcp.Description("Optional free-text tag stored with the reference"),
		),
		mcp.WithBoolean("refetch",
			mcp.Description("Overwrite an existing reference for this URL (default: false)"),
		),
		mcp.WithBoolean("force_browser",
			mcp.Description("Skip the plain fetch and render with the browser directly (default: false)"),
		),
	)
	mcpServer.AddTool(fetchTool, s.fetchHandler)

	listTool := mcp.NewTool("list_references",
		mcp.WithDescription("List saved references, newest first. Bodies are omitted."),
	)
	mcpServer.AddTool(listTool, s.listHandler)

	getTool := mcp.NewTool("get_reference",
		mcp.WithDescription("Get a saved reference by its ref ID, including the markdown body"),
		mcp.WithString("ref_id",
			mcp.Required(),
			mcp.Description("Reference ID to retrieve"),
		),
	)
	mcpServer.AddTool(getTool, s.getHandler)

	promoteTool := mcp.NewTool("promote_reference",
		mcp.WithDescription("Promote a temporary reference into permanent storage"),
		mcp.WithString("ref_id",
			mcp.Required(),
			mcp.Description("Reference ID to promote"),
		),
	)
	mcpServer.AddTool(promoteTool, s.promoteHandler)

	deleteTool := mcp.NewTool("delete_reference",
		mcp.WithDescription("Delete a temporary reference"),
		mcp.WithString("ref_id",
			mcp.Required(),
			mcp.Description("Reference ID to delete"),
		),
	)
	mcpServer.AddTool(deleteTool, s.deleteHandler)

	linksTool := mcp.NewTool("fetch_links",
		mcp.WithDescription("Fetch every outbound link of a saved reference and save each result as a new reference"),
		mcp.WithString("ref_id",
			mcp.Required(),
			mcp.Description("Reference whose links to fetch"),
		),
		mcp.WithBoolean("refetch",
			mcp.Description("Overwrite references that already exist for linked URLs (default: false)"),
		),
	)
	mcpServer.AddTool(linksTool, s.fetchLinksHandler)

	return s
}

// fetchResult is the JSON payload returned by the fetch_url tool.
type fetchResult struct {
	RefID                string `json:"ref_id"`
	Path                 string `json:"path"`
	AlreadyExists        bool   `json:"already_exists,omitempty"`
	Title                string `json:"title,omitempty"`
	Score                int    `json:"score"`
	UsedFallbackRenderer bool   `json:"used_fallback_renderer"`
	FallbackReason       string `json:"fallback_reason,omitempty"`
}

func (s *Server) fetchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	query := req.GetString("query", "")
	refetch := req.GetBool("refetch", false)
	forceBrowser := req.GetBool("force_browser", false)

	// Shutdown is always requested after a top-level fetch; the lease
	// manager defers it while sibling fetches still hold leases.
	defer s.browser.RequestShutdown()

	outcome := s.fetcher.Fetch(ctx, url, pipeline.Options{ForceFallback: forceBrowser})
	if !outcome.Success {
		msg := "fetch failed"
		if outcome.Err != nil {
			msg = outcome.Err.Error()
		}
		if outcome.Suggestion != "" {
			msg += " (" + outcome.Suggestion + ")"
		}
		return mcp.NewToolResultError(msg), nil
	}

	title := outcome.Title
	if title == "" {
		title = url
	}

	saved, err := s.store.Save(title, url, outcome.Markdown, query, refetch)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", err)), nil
	}

	res := fetchResult{
		RefID:                saved.RefID,
		Path:                 saved.Path,
		AlreadyExists:        saved.AlreadyExists,
		Title:                title,
		UsedFallbackRenderer: outcome.UsedFallbackRenderer,
		FallbackReason:       outcome.FallbackReason,
	}
	if outcome.Verdict != nil {
		res.Score = outcome.Verdict.Score
	}
	return jsonResult(res)
}

func (s *Server) listHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	refs, err := s.store.List()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	for i := range refs {
		refs[i].Body = ""
	}
	return jsonResult(refs)
}

func (s *Server) getHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	refID, err := req.RequireString("ref_id")
	if err != nil {
		return mcp.NewToolResultError("ref_id parameter is required"), nil
	}

	ref, err := s.store.Find(refID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("reference not found: %s", refID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("get reference failed: %v", err)), nil
	}
	return jsonResult(ref)
}

func (s *Server) promoteHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	refID, err := req.RequireString("ref_id")
	if err != nil {
		return mcp.NewToolResultError("ref_id parameter is required"), nil
	}

	res, err := s.store.Promote(refID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("reference not found: %s", refID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("promote failed: %v", err)), nil
	}
	return jsonResult(res)
}

func (s *Server) deleteHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	refID, err := req.RequireString("ref_id")
	if err != nil {
		return mcp.NewToolResultError("ref_id parameter is required"), nil
	}

	path, err := s.store.Delete(refID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("reference not found: %s", refID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
	}
	return jsonResult(map[string]string{"deleted": path})
}

func (s *Server) fetchLinksHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	refID, err := req.RequireString("ref_id")
	if err != nil {
		return mcp.NewToolResultError("ref_id parameter is required"), nil
	}
	refetch := req.GetBool("refetch", false)

	res, err := s.links.FetchLinks(ctx, refID, refetch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("reference not found: %s", refID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("fetch links failed: %v", err)), nil
	}
	return jsonResult(res)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
