package mcpserver

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/comigor/askdata-go/internal/engine"
	"github.com/comigor/askdata-go/internal/finalize"
)

type fakeEngine struct {
	got []engine.Request
	res engine.Result
}

func (f *fakeEngine) RunQuery(_ context.Context, req engine.Request) engine.Result {
	f.got = append(f.got, req)
	return f.res
}

func call(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: ToolName, Arguments: args}}
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestHandler_Success(t *testing.T) {
	e := &fakeEngine{res: engine.Result{Status: engine.StatusSuccess, Answer: "See the bar chart", Chart: finalize.ChartBar, SessionID: "s1"}}

	res, err := Handler(e)(context.Background(), call(map[string]any{"question": "Orders per week?", "session_id": "s1"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.JSONEq(t, `{"status":"success","answer":"See the bar chart","chartSuggestion":"bar","sessionId":"s1"}`, textOf(t, res))
	require.Equal(t, []engine.Request{{Question: "Orders per week?", SessionID: "s1"}}, e.got)
}

func TestHandler_ErrorResult(t *testing.T) {
	e := &fakeEngine{res: engine.Result{Status: engine.StatusError, Message: "question must not be empty"}}

	res, err := Handler(e)(context.Background(), call(map[string]any{"question": 42}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Equal(t, "question must not be empty", textOf(t, res))
	require.Equal(t, "", e.got[0].Question)
}

func TestTool(t *testing.T) {
	tool := Tool()
	require.Equal(t, ToolName, tool.Name)
	require.Equal(t, []string{"question"}, tool.InputSchema.Required)
	require.Contains(t, tool.InputSchema.Properties, "session_id")
	require.NotNil(t, New(&fakeEngine{}, "test"))
}
