// Package mcpserver exposes the query engine as an MCP tool so assistants can ask
// questions about the operational data over stdio.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/askdata-go/internal/engine"
	"github.com/comigor/askdata-go/internal/logger"
)

const ToolName = "ask_data"

// Answerer runs one question through the engine.
type Answerer interface {
	RunQuery(ctx context.Context, req engine.Request) engine.Result
}

// New builds an MCP server with the ask_data tool registered.
func New(e Answerer, version string) *server.MCPServer {
	s := server.NewMCPServer("askdata", version, server.WithToolCapabilities(false))
	s.AddTool(Tool(), Handler(e))
	return s
}

// Serve runs the MCP server over stdin/stdout until the input closes.
func Serve(e Answerer, version string) error {
	return server.ServeStdio(New(e, version))
}

// Tool describes ask_data.
func Tool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription("Answers a natural-language question about orders, customers, group leaders and products. "+
			"Pass the returned sessionId back to ask follow-up questions in the same conversation."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question, up to 500 characters.")),
		mcp.WithString("session_id", mcp.Description("Conversation id from a previous answer; omit to start a new conversation.")),
	)
}

// Handler answers ask_data calls. Engine error results are reported as tool errors.
func Handler(e Answerer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		question, _ := args["question"].(string)
		sessionID, _ := args["session_id"].(string)

		res := e.RunQuery(ctx, engine.Request{Question: question, SessionID: sessionID})
		if !res.OK() {
			return mcp.NewToolResultError(res.Message), nil
		}
		body, err := json.Marshal(res)
		if err != nil {
			logger.L.Error("encode ask_data result", "error", err)
			return mcp.NewToolResultError("could not encode the answer"), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}
