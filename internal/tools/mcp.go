package tools

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/apperr"
)

// NewMCPServer registers every operation of reg as an MCP tool.
// Operation failures become tool results with IsError set and a "kind: message" text.
func NewMCPServer(reg *Registry, name, version string, logger *zap.Logger) *mcp.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	for _, d := range reg.Descriptors() {
		op, _ := reg.Get(d.Name)
		server.AddTool(&mcp.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		}, toolHandler(d.Name, op, logger))
	}
	return server
}

func toolHandler(name string, op Operation, logger *zap.Logger) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args json.RawMessage
		if req.Params != nil {
			args = req.Params.Arguments
		}
		out, err := op.Invoke(ctx, args)
		if err != nil {
			logger.Warn("tool call failed", zap.String("tool", name), zap.Error(err))
			return ErrorResult(err), nil
		}
		data, err := json.Marshal(out)
		if err != nil {
			return ErrorResult(apperr.External(name, err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	}
}

// ErrorResult renders err as an MCP error result.
func ErrorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: apperr.KindOf(err).String() + ": " + apperr.Message(err)}},
	}
}

// ServeStdio serves server over stdin/stdout until ctx is done or the client disconnects.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler serves server over the streamable HTTP transport.
func HTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}
