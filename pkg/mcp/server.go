package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/procdesigner/internal/designer"
	"github.com/rendis/procdesigner/internal/expressions"
	"github.com/rendis/procdesigner/internal/registry"
	"github.com/rendis/procdesigner/internal/store"
	"github.com/rendis/procdesigner/internal/validation"
)

// DesignerServerDeps holds the dependencies for creating a DesignerServer.
type DesignerServerDeps struct {
	Store         store.Store
	Registry      *registry.Registry
	Validator     *validation.DiagramValidator
	FormatVersion int
	AsciiBin      string
	Logger        *slog.Logger
}

// DesignerServer wraps an MCP server with the designer tool handlers. Each
// MCP client gets its own designer session.
type DesignerServer struct {
	store     store.Store
	registry  *registry.Registry
	validator *validation.DiagramValidator
	jq        *expressions.GoJQEngine
	version   int
	asciiBin  string
	logger    *slog.Logger

	sessions  *SessionRegistry
	notifier  SaveNotifier
	mcpServer *server.MCPServer
}

// NewDesignerServer creates a new DesignerServer with all 5 tools registered.
func NewDesignerServer(deps DesignerServerDeps) *DesignerServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if deps.Registry == nil {
		deps.Registry = registry.Default()
	}

	s := &DesignerServer{
		store:     deps.Store,
		registry:  deps.Registry,
		validator: deps.Validator,
		jq:        expressions.NewGoJQEngine(),
		version:   deps.FormatVersion,
		asciiBin:  deps.AsciiBin,
		logger:    logger,
		sessions:  NewSessionRegistry(),
	}

	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(_ context.Context, cs server.ClientSession) {
		s.sessions.Remove(cs.SessionID())
	})

	mcpSrv := server.NewMCPServer(
		"procdesigner",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(hooks),
		server.WithInstructions("procdesigner stores BPMN-style process diagrams. Use designer.load to open a process, designer.save to store a payload or the open diagram, designer.validate to check it, designer.diagram to draw it, and designer.query to inspect it with jq."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv)
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *DesignerServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *DesignerServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Sessions returns the per-client designer sessions.
func (s *DesignerServer) Sessions() *SessionRegistry {
	return s.sessions
}

// newSession opens a designer session bound to the server's store.
func (s *DesignerServer) newSession() *designer.Session {
	return designer.NewSession(designer.Config{
		Registry:      s.registry,
		Store:         s.store,
		FormatVersion: s.version,
		Logger:        s.logger,
	})
}

// tools returns the 5 registered MCP tools as ServerTool entries.
func (s *DesignerServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: loadTool(), Handler: s.handleLoad},
		{Tool: saveTool(), Handler: s.handleSave},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: queryTool(), Handler: s.handleQuery},
	}
}

// --- Tool definitions ---

func loadTool() mcp.Tool {
	return mcp.NewTool("designer.load",
		mcp.WithDescription("Open a stored process in this client's designer session"),
		mcp.WithString("process_id", mcp.Required(), mcp.Description("ID of the process to open")),
	)
}

func saveTool() mcp.Tool {
	return mcp.NewTool("designer.save",
		mcp.WithDescription("Store a process payload, or the diagram open in this session"),
		mcp.WithString("process_id", mcp.Description("Target process (default: the open process)")),
		mcp.WithString("payload", mcp.Description("Encoded diagram to store as is. Omit to save the open diagram")),
		mcp.WithBoolean("async", mcp.Description("Submit in the background and report completion as a notification")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("designer.validate",
		mcp.WithDescription("Check a process diagram for structural issues and lint findings"),
		mcp.WithString("process_id", mcp.Description("Stored process to validate")),
		mcp.WithString("payload", mcp.Description("Encoded diagram to validate instead of a stored process")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("designer.diagram",
		mcp.WithDescription("Draw a process diagram. Returns ASCII art, Mermaid flowchart syntax, or base64-encoded PNG image"),
		mcp.WithString("process_id", mcp.Description("Stored process to draw")),
		mcp.WithString("payload", mcp.Description("Encoded diagram to draw instead of a stored process")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "image"),
			mcp.Description("Output format: ascii (text), mermaid (flowchart syntax), or image (base64 PNG)"),
		),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("designer.query",
		mcp.WithDescription("Run a jq expression over a process diagram"),
		mcp.WithString("expression", mcp.Required(), mcp.Description(`jq expression, e.g. .shapes[] | select(.kind == "task") | .label`)),
		mcp.WithString("process_id", mcp.Description("Stored process to query")),
		mcp.WithString("payload", mcp.Description("Encoded diagram to query instead of a stored process")),
	)
}
