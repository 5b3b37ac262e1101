package pagemap

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domsight/idgen"
	"github.com/hazyhaar/domsight/kit"
	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// RegisterMCP registers the pagemap tools on an MCP server:
// pagemap_open, pagemap_snapshot, pagemap_resolve, pagemap_act,
// pagemap_prompt, pagemap_history and pagemap_close.
func (e *Engine) RegisterMCP(srv *mcp.Server) {
	e.registerOpenTool(srv)
	e.registerSnapshotTool(srv)
	e.registerResolveTool(srv)
	e.registerActTool(srv)
	e.registerPromptTool(srv)
	e.registerHistoryTool(srv)
	e.registerCloseTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var pageIDProp = map[string]any{"type": "string", "description": "Page identifier returned by pagemap_open"}

func (e *Engine) tool(srv *mcp.Server, tool *mcp.Tool, ep kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	mw := kit.Chain(
		kit.RequestID(idgen.Prefixed("req_", e.newID)),
		kit.Logging(e.logger, tool.Name),
	)
	kit.RegisterMCPTool(srv, tool, mw(ep), decode)
}

// --- open ---

type openReq struct {
	PageID       string `json:"page_id"`
	URL          string `json:"url"`
	StealthLevel string `json:"stealth_level"`
	HTML         string `json:"html"`
}

func (e *Engine) registerOpenTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagemap_open",
		Description: "Open a page by URL (or from inline HTML) so it can be snapshotted and acted on.",
		InputSchema: inputSchema(map[string]any{
			"page_id":       map[string]any{"type": "string", "description": "Identifier to register the page under; generated when empty"},
			"url":           map[string]any{"type": "string", "description": "Page URL"},
			"stealth_level": map[string]any{"type": "string", "description": "auto | 0 (HTTP) | 1 (headless) | 2 (headful)", "default": "auto"},
			"html":          map[string]any{"type": "string", "description": "Inline HTML; when set the page is static and url is only recorded"},
		}, nil),
	}
	e.tool(srv, tool, func(ctx context.Context, req any) (any, error) {
		r := req.(*openReq)
		if r.HTML != "" {
			return e.OpenHTML(r.PageID, r.URL, r.HTML)
		}
		return e.OpenPage(ctx, PageConfig{ID: r.PageID, URL: r.URL, StealthLevel: r.StealthLevel})
	}, kit.DecodeJSON[openReq]())
}

// --- snapshot ---

type snapshotReq struct {
	PageID string          `json:"page_id"`
	Config json.RawMessage `json:"config"`
}

func (e *Engine) registerSnapshotTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagemap_snapshot",
		Description: "Capture a snapshot of a page: visible relevant elements with locators, text, role, box and semantic groups.",
		InputSchema: inputSchema(map[string]any{
			"page_id": pageIDProp,
			"config":  map[string]any{"type": "object", "description": "Overrides of the default snapshot configuration"},
		}, []string{"page_id"}),
	}
	e.tool(srv, tool, func(ctx context.Context, req any) (any, error) {
		r := req.(*snapshotReq)
		cfg, err := e.overrideConfig(r.Config)
		if err != nil {
			return nil, err
		}
		return e.Snapshot(ctx, r.PageID, cfg)
	}, kit.DecodeJSON[snapshotReq]())
}

// overrideConfig applies the fields present in raw over the default
// configuration.
func (e *Engine) overrideConfig(raw json.RawMessage) (snapshot.Config, error) {
	return snapshot.Overlay(e.DefaultConfig(), raw)
}

// --- resolve ---

type resolveReq struct {
	PageID  string `json:"page_id"`
	Locator string `json:"locator"`
}

func (e *Engine) registerResolveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagemap_resolve",
		Description: "Check whether a locator from a snapshot still names an element of the page.",
		InputSchema: inputSchema(map[string]any{
			"page_id": pageIDProp,
			"locator": map[string]any{"type": "string", "description": "Locator from a snapshot element"},
		}, []string{"page_id", "locator"}),
	}
	e.tool(srv, tool, func(ctx context.Context, req any) (any, error) {
		r := req.(*resolveReq)
		return e.Resolve(ctx, r.PageID, r.Locator)
	}, kit.DecodeJSON[resolveReq]())
}

// --- act ---

type actReq struct {
	PageID string `json:"page_id"`
	snapshot.Command
}

func (e *Engine) registerActTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagemap_act",
		Description: "Run a command on a page: navigate, click, fill, scroll, hover, goBack or analyze.",
		InputSchema: inputSchema(map[string]any{
			"page_id": pageIDProp,
			"action": map[string]any{"type": "string", "enum": []string{
				string(snapshot.ActionNavigate), string(snapshot.ActionClick), string(snapshot.ActionFill),
				string(snapshot.ActionScroll), string(snapshot.ActionHover), string(snapshot.ActionGoBack),
				string(snapshot.ActionAnalyze),
			}},
			"locator": map[string]any{"type": "string", "description": "Target element locator (click, fill, hover, scroll)"},
			"url":     map[string]any{"type": "string", "description": "Target URL (navigate)"},
			"value":   map[string]any{"type": "string", "description": "Text to type (fill)"},
			"config":  map[string]any{"type": "object", "description": "Snapshot configuration (analyze)"},
		}, []string{"page_id", "action"}),
	}
	e.tool(srv, tool, func(ctx context.Context, req any) (any, error) {
		r := req.(*actReq)
		return e.Execute(ctx, r.PageID, r.Command)
	}, kit.DecodeJSON[actReq]())
}

// --- prompt ---

type promptReq struct {
	PageID  string `json:"page_id"`
	Format  string `json:"format"`
	Refresh bool   `json:"refresh"`
}

func (e *Engine) registerPromptTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagemap_prompt",
		Description: "Render the page's latest snapshot as a compact listing for prompting, taking one first when needed.",
		InputSchema: inputSchema(map[string]any{
			"page_id": pageIDProp,
			"format":  map[string]any{"type": "string", "enum": []string{"text", "markdown"}, "default": "text"},
			"refresh": map[string]any{"type": "boolean", "description": "Take a new snapshot first"},
		}, []string{"page_id"}),
	}
	e.tool(srv, tool, func(ctx context.Context, req any) (any, error) {
		r := req.(*promptReq)
		latest, err := e.Latest(r.PageID)
		if err != nil {
			return nil, err
		}
		if latest == nil || r.Refresh {
			if _, err := e.Snapshot(ctx, r.PageID, e.DefaultConfig()); err != nil {
				return nil, err
			}
		}
		return e.Prompt(r.PageID, r.Format == "markdown")
	}, kit.DecodeJSON[promptReq]())
}

// --- history ---

type historyReq struct {
	PageID string `json:"page_id"`
	Limit  int    `json:"limit"`
}

func (e *Engine) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagemap_history",
		Description: "List the most recent commands run on a page, newest first.",
		InputSchema: inputSchema(map[string]any{
			"page_id": pageIDProp,
			"limit":   map[string]any{"type": "integer", "default": 20},
		}, []string{"page_id"}),
	}
	e.tool(srv, tool, func(ctx context.Context, req any) (any, error) {
		r := req.(*historyReq)
		if r.Limit <= 0 {
			r.Limit = 20
		}
		entries, err := e.History(ctx, r.PageID, r.Limit)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []JournalEntry{}
		}
		return map[string]any{"entries": entries}, nil
	}, kit.DecodeJSON[historyReq]())
}

// --- close ---

type closeReq struct {
	PageID string `json:"page_id"`
}

func (e *Engine) registerCloseTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagemap_close",
		Description: "Close a page and release its browser tab.",
		InputSchema: inputSchema(map[string]any{"page_id": pageIDProp}, []string{"page_id"}),
	}
	e.tool(srv, tool, func(_ context.Context, req any) (any, error) {
		r := req.(*closeReq)
		if err := e.ClosePage(r.PageID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "closed", "page_id": r.PageID}, nil
	}, kit.DecodeJSON[closeReq]())
}
