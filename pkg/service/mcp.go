/*
Package service assembles the runtime: the MCP server that exposes the memory
tools over stdio, the HTTP status endpoint, and the credential validation
probe that runs before a provider instance is accepted.
*/
package service

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/theapemachine/mem0-go/pkg/dispatch"
	"github.com/theapemachine/mem0-go/pkg/tools"
)

const (
	serverName    = "mem0-memory"
	serverVersion = "1.0.0"
)

// NewMCPServer builds the MCP server with the memory tool set registered
// against the given dispatcher.
func NewMCPServer(d *dispatch.Dispatcher) *server.MCPServer {
	srv := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	tools.NewMemoryTools(d).Register(srv)

	return srv
}

// ServeStdio blocks serving MCP over stdin/stdout until the transport
// closes. Logging goes to stderr; stdout belongs to the protocol.
func ServeStdio(srv *server.MCPServer) error {
	return server.ServeStdio(srv)
}
