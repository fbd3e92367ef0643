package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
)

// saveNotification is the method used to report background save results.
const saveNotification = "notifications/message"

// SaveNotifier tells a client how a background save ended.
type SaveNotifier interface {
	Notify(ctx context.Context, clientID string, payload map[string]any) error
}

// MCPNotifier implements SaveNotifier with MCP server notifications.
type MCPNotifier struct {
	mcpServer *server.MCPServer
}

// NewMCPNotifier creates a notifier that pushes through the MCP server.
func NewMCPNotifier(mcpServer *server.MCPServer) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer}
}

// Notify sends a notification to the client.
// Best-effort: returns nil if the client is gone.
func (n *MCPNotifier) Notify(_ context.Context, clientID string, payload map[string]any) error {
	if clientID == localClient {
		return nil
	}
	err := n.mcpServer.SendNotificationToSpecificClient(clientID, saveNotification, payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		return nil
	}
	return err
}
