package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/comigor/askdata-go/internal/datastore/datastoretest"
	"github.com/comigor/askdata-go/internal/prompt"
	"github.com/comigor/askdata-go/pkg/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockLLM replays queued responses and records every request it receives.
type mockLLM struct {
	mu       sync.Mutex
	calls    []openai.ChatCompletionResponse
	err      error
	fn       func(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	requests []openai.ChatCompletionRequest
}

func (m *mockLLM) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, r)
	if m.fn != nil {
		return m.fn(ctx, r)
	}
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if len(m.calls) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("mockLLM: no more responses configured")
	}
	resp := m.calls[0]
	m.calls = m.calls[1:]
	return resp, nil
}

func answer(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text},
	}}}
}

func toolCall(id, name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:       id,
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: name, Arguments: args},
			}},
		},
	}}}
}

func sqlToolManager(t *testing.T) *tools.ToolManager {
	return tools.NewToolManager(tools.SQLTools(datastoretest.Open(t), 20)...)
}

var ctxBundle = prompt.Build("Table orders: id", "Answer questions about orders.", nil)

// TestPlan_LLMRespondsDirectly tests the scenario where the model answers without tools.
func TestPlan_LLMRespondsDirectly(t *testing.T) {
	m := &mockLLM{calls: []openai.ChatCompletionResponse{answer("Total sales: $14308.3")}}
	p := New(m, nil, Options{Model: "gpt"})

	out := p.Plan(context.Background(), ctxBundle, "Show total sales in June")
	require.Equal(t, KindCompleted, out.Kind)
	require.Equal(t, "Total sales: $14308.3", out.Answer)
	require.Equal(t, 1, out.Iterations)
	require.NoError(t, out.Err)

	require.Len(t, m.requests, 1)
	req := m.requests[0]
	require.Equal(t, "gpt", req.Model)
	require.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	require.Equal(t, "Show total sales in June", req.Messages[len(req.Messages)-1].Content)
}

// TestPlan_QueriesThenAnswers tests the full loop: query tool, then final answer.
func TestPlan_QueriesThenAnswers(t *testing.T) {
	m := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCall("call_1", "sql_db_query", `{"query":"SELECT SUM(order_total_value) AS total FROM orders"}`),
		answer("Total sales: $14308.3"),
	}}
	p := New(m, sqlToolManager(t), Options{Model: "gpt"})

	out := p.Plan(context.Background(), ctxBundle, "Show total sales in June")
	require.Equal(t, KindCompleted, out.Kind)
	require.Equal(t, 2, out.Iterations)

	require.Len(t, m.requests, 2)
	require.Len(t, m.requests[0].Tools, 3)
	second := m.requests[1].Messages
	toolMsg := second[len(second)-1]
	require.Equal(t, openai.ChatMessageRoleTool, toolMsg.Role)
	require.Equal(t, "call_1", toolMsg.ToolCallID)
	require.Equal(t, "total\n14308.3", toolMsg.Content)
	require.Len(t, second[len(second)-2].ToolCalls, 1, "assistant tool request precedes the tool result")
}

// TestPlan_ToolErrorsGoBackToModel covers malformed arguments, unknown tools and bad SQL.
func TestPlan_ToolErrorsGoBackToModel(t *testing.T) {
	m := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCall("c1", "sql_db_query", `{"query":`),
		toolCall("c2", "sql_db_drop", `{}`),
		toolCall("c3", "sql_db_query", `{"query":"DELETE FROM orders"}`),
		toolCall("c4", "sql_db_query", `{"query":"SELECT missing FROM orders"}`),
		answer("There were 2 orders."),
	}}
	p := New(m, sqlToolManager(t), Options{})

	out := p.Plan(context.Background(), ctxBundle, "How many orders?")
	require.Equal(t, KindCompleted, out.Kind)
	require.Equal(t, 5, out.Iterations)

	for i := 1; i < 5; i++ {
		msgs := m.requests[i].Messages
		require.Contains(t, msgs[len(msgs)-1].Content, "Error: ")
	}
}

func TestPlan_IterationLimit(t *testing.T) {
	m := &mockLLM{fn: func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return toolCall("loop", "sql_db_list_tables", `{}`), nil
	}}
	p := New(m, sqlToolManager(t), Options{MaxIterations: 3})

	out := p.Plan(context.Background(), ctxBundle, "Loop forever")
	require.Equal(t, KindIterationLimit, out.Kind)
	require.Equal(t, 3, out.Iterations)
	require.Empty(t, out.Answer)
	require.Len(t, m.requests, 3)
}

func TestPlan_LLMError(t *testing.T) {
	p := New(&mockLLM{err: errors.New("503 from upstream")}, nil, Options{})

	out := p.Plan(context.Background(), ctxBundle, "hi")
	require.Equal(t, KindReasoningError, out.Kind)
	require.ErrorContains(t, out.Err, "503 from upstream")
}

func TestPlan_UnusableResponses(t *testing.T) {
	for name, resp := range map[string]openai.ChatCompletionResponse{
		"no choices":   {},
		"empty answer": answer("   "),
	} {
		t.Run(name, func(t *testing.T) {
			p := New(&mockLLM{calls: []openai.ChatCompletionResponse{resp}}, nil, Options{})
			out := p.Plan(context.Background(), ctxBundle, "hi")
			require.Equal(t, KindReasoningError, out.Kind)
			require.Error(t, out.Err)
		})
	}
}

func TestPlan_StoreUnavailable(t *testing.T) {
	db := datastoretest.Open(t)
	require.NoError(t, db.Close())
	m := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCall("c1", "sql_db_query", `{"query":"SELECT 1"}`),
		answer("unreachable"),
	}}
	p := New(m, tools.NewToolManager(tools.SQLTools(db, 10)...), Options{})

	out := p.Plan(context.Background(), ctxBundle, "How many orders?")
	require.Equal(t, KindStoreUnavailable, out.Kind)
	require.Len(t, m.requests, 1, "planning stops once the store is unreachable")
}

func TestPlan_Timeout(t *testing.T) {
	m := &mockLLM{fn: func(ctx context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		<-ctx.Done()
		return openai.ChatCompletionResponse{}, ctx.Err()
	}}
	p := New(m, nil, Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	out := p.Plan(context.Background(), ctxBundle, "slow")
	require.Equal(t, KindCanceled, out.Kind)
	require.ErrorIs(t, out.Err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestPlan_CallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &mockLLM{fn: func(ctx context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{}, ctx.Err()
	}}

	out := New(m, nil, Options{}).Plan(ctx, ctxBundle, "bye")
	require.Equal(t, KindCanceled, out.Kind)
	require.ErrorIs(t, out.Err, context.Canceled)
}

func TestKindString(t *testing.T) {
	require.Equal(t, "completed", KindCompleted.String())
	require.Equal(t, "iteration_limit", KindIterationLimit.String())
	require.Equal(t, "store_unavailable", KindStoreUnavailable.String())
	require.Equal(t, "unknown", Kind(42).String())
}
