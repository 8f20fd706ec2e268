package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
)

// RunNotifier pushes run lifecycle notifications to connected clients.
type RunNotifier interface {
	Notify(ctx context.Context, executionID string, payload map[string]any) error
}

// MCPNotifier implements RunNotifier using MCP SSE push.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

// NewMCPNotifier creates a notifier that pushes via MCP SSE.
func NewMCPNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, sessions: sessions}
}

// Notify sends a notification to the session owning the execution.
// Best-effort: returns nil if no session owns the run.
func (n *MCPNotifier) Notify(_ context.Context, executionID string, payload map[string]any) error {
	sessionID, ok := n.sessions.SessionFor(executionID)
	if !ok {
		return nil // no owner connected, best-effort
	}
	err := n.mcpServer.SendNotificationToSpecificClient(sessionID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		// Session expired between lookup and send, not an error.
		n.sessions.Remove(sessionID)
		return nil
	}
	return err
}
