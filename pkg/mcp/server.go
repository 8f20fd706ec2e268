package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/botflowhq/botflow/internal/engine"
	"github.com/botflowhq/botflow/internal/streaming"
	"github.com/botflowhq/botflow/internal/validation"
	"github.com/botflowhq/botflow/pkg/schema"
)

// FlowServerDeps holds the dependencies for creating a FlowServer.
type FlowServerDeps struct {
	Engine    *engine.Engine
	Validator *validation.FlowValidator
	Parser    *validation.FlowParser
	Hub       streaming.EventHub
	Logger    *slog.Logger
}

// FlowServer wraps an MCP server with flow-engine tool handlers.
type FlowServer struct {
	engine    *engine.Engine
	validator *validation.FlowValidator
	parser    *validation.FlowParser
	hub       streaming.EventHub
	logger    *slog.Logger
	sessions  *SessionRegistry
	mcpServer *server.MCPServer
}

// NewFlowServer creates a new FlowServer with all tools registered.
func NewFlowServer(deps FlowServerDeps) *FlowServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	validator := deps.Validator
	if validator == nil {
		validator = validation.NewFlowValidator()
	}

	s := &FlowServer{
		engine:    deps.Engine,
		validator: validator,
		parser:    deps.Parser,
		hub:       deps.Hub,
		logger:    logger,
		sessions:  NewSessionRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		"botflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Botflow is a chatbot flow execution engine. Use flow.execute to run a flow definition, flow.resume to deliver user input to a suspended run, flow.state to inspect a run, flow.cancel to stop one, flow.validate to check a definition without running it, and flow.diagram to render one."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *FlowServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *FlowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// StartNotifier forwards suspension and terminal events from the hub to the
// session that owns each run. Runs until ctx is cancelled.
func (s *FlowServer) StartNotifier(ctx context.Context) error {
	if s.hub == nil {
		return nil
	}
	notifier := NewMCPNotifier(s.mcpServer, s.sessions)
	events, cancel, err := s.hub.Subscribe(ctx, streaming.EventFilter{
		EventTypes: []string{
			schema.EventFlowSuspended, schema.EventFlowCompleted,
			schema.EventFlowFailed, schema.EventFlowCancelled,
		},
	})
	if err != nil {
		return err
	}

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				payload := map[string]any{
					"execution_id": ev.ExecutionID,
					"flow_id":      ev.FlowID,
					"event_type":   ev.EventType,
					"payload":      ev.Payload,
				}
				if err := notifier.Notify(ctx, ev.ExecutionID, payload); err != nil {
					s.logger.Warn("run notification failed",
						slog.String("execution_id", ev.ExecutionID),
						slog.String("error", err.Error()))
				}
				if ev.EventType != schema.EventFlowSuspended {
					s.sessions.Forget(ev.ExecutionID)
				}
			}
		}
	}()
	return nil
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *FlowServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: executeTool(), Handler: s.handleExecute},
		{Tool: resumeTool(), Handler: s.handleResume},
		{Tool: stateTool(), Handler: s.handleState},
		{Tool: cancelTool(), Handler: s.handleCancel},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: diagramTool(), Handler: s.handleDiagram},
	}
}

// --- Tool definitions ---

func executeTool() mcp.Tool {
	return mcp.NewTool("flow.execute",
		mcp.WithDescription("Execute a flow definition from its start node"),
		mcp.WithObject("flow", mcp.Required(), mcp.Description("Flow definition object (nodes, edges, variables)")),
		mcp.WithObject("context", mcp.Description("Initial execution context merged into run variables")),
	)
}

func resumeTool() mcp.Tool {
	return mcp.NewTool("flow.resume",
		mcp.WithDescription("Deliver user input to a suspended run and continue it"),
		mcp.WithString("execution_id", mcp.Required(), mcp.Description("ID of the suspended execution")),
		mcp.WithObject("input", mcp.Required(), mcp.Description("External input, e.g. {\"userInput\": \"...\"}")),
	)
}

func stateTool() mcp.Tool {
	return mcp.NewTool("flow.state",
		mcp.WithDescription("Get the current state of an execution"),
		mcp.WithString("execution_id", mcp.Required(), mcp.Description("ID of the execution to inspect")),
	)
}

func cancelTool() mcp.Tool {
	return mcp.NewTool("flow.cancel",
		mcp.WithDescription("Cancel a running or suspended execution"),
		mcp.WithString("execution_id", mcp.Required(), mcp.Description("ID of the execution to cancel")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("flow.validate",
		mcp.WithDescription("Validate a flow definition without executing it"),
		mcp.WithObject("flow", mcp.Required(), mcp.Description("Flow definition object to validate")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("flow.diagram",
		mcp.WithDescription("Render a flow definition as a diagram, optionally colored by a run's progress"),
		mcp.WithObject("flow", mcp.Required(), mcp.Description("Flow definition object to render")),
		mcp.WithString("format", mcp.Description("Output format: mermaid (default) or png")),
		mcp.WithString("execution_id", mcp.Description("Overlay the state of this execution onto the diagram")),
	)
}
