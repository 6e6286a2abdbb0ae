package mcp

import (
	"log/slog"

	"github.com/lucasmend/askdb/internal/core/port"
	"github.com/lucasmend/askdb/internal/core/service"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

const serverName = "askdb"

// NewServer creates an MCPServer with tools and logging hooks. chat may be
// nil when no LLM endpoint is configured; the ask tool is then not registered.
func NewServer(version string, query *service.QueryService, chat *service.ChatService, explorer port.SchemaExplorer, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, query, chat, explorer)

	return s
}
