// Package planner drives the external reasoning service through a bounded
// reason/query loop and reports how it ended as a tagged Outcome.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/askdata-go/internal/datastore"
	"github.com/comigor/askdata-go/internal/llm"
	"github.com/comigor/askdata-go/internal/logger"
	"github.com/comigor/askdata-go/internal/metrics"
	"github.com/comigor/askdata-go/internal/prompt"
	"github.com/comigor/askdata-go/pkg/tools"
)

// FSM states
const (
	StateReadyToCallLLM = "ReadyToCallLLM"
	StateExecutingTools = "ExecutingTools"
	StateCompleted      = "Completed"      // terminal
	StateIterationLimit = "IterationLimit" // terminal
	StateFailed         = "Failed"         // terminal
)

// FSM triggers
const (
	TriggerStart                   = "Start"
	TriggerLLMRespondedWithContent = "LLMRespondedWithContent"
	TriggerLLMRequestedTools       = "LLMRequestedTools"
	TriggerToolsExecutionCompleted = "ToolsExecutionCompleted"
	TriggerIterationLimitReached   = "IterationLimitReached"
	TriggerFailed                  = "Failed"
)

// DefaultMaxIterations bounds reasoning-service calls when Options leaves it unset.
const DefaultMaxIterations = 15

// Options configures a Planner.
type Options struct {
	Model         string
	Temperature   float32
	MaxIterations int
	// Timeout bounds the whole run in wall-clock time; zero means only ctx bounds it.
	Timeout time.Duration
}

// Planner is safe for concurrent use; each Plan call builds its own state machine.
type Planner struct {
	llmClient llm.Client
	tools     *tools.ToolManager
	opts      Options
}

// New creates a planner over a reasoning client and the read-only toolset.
func New(llmClient llm.Client, toolManager *tools.ToolManager, opts Options) *Planner {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if toolManager == nil {
		toolManager = tools.NewToolManager()
	}
	return &Planner{llmClient: llmClient, tools: toolManager, opts: opts}
}

// run is the mutable state of one Plan call.
type run struct {
	messages   []openai.ChatCompletionMessage
	last       openai.ChatCompletionMessage
	answer     string
	iterations int
	kind       Kind
	err        error
}

func (r *run) fail(ctx context.Context, kind Kind, err error) {
	if ctx.Err() != nil {
		kind, err = KindCanceled, ctx.Err()
	}
	r.kind, r.err = kind, err
}

// Plan answers question using the assembled context. It never returns an error: every
// failure is reported as an Outcome kind.
func (p *Planner) Plan(ctx context.Context, pc prompt.Context, question string) (out Outcome) {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	r := &run{messages: pc.Messages(question)}
	defer func() {
		metrics.PlannerOutcomes.WithLabelValues(out.Kind.String()).Inc()
		metrics.PlannerIterations.Observe(float64(out.Iterations))
		logger.L.Info("planner finished", "outcome", out.Kind.String(), "iterations", out.Iterations, "error", out.Err)
	}()

	fsm := p.machine(r)
	if err := fsm.FireCtx(ctx, TriggerStart); err != nil && r.err == nil {
		r.fail(ctx, KindReasoningError, fmt.Errorf("planner state machine: %w", err))
	}

	state, err := fsm.State(ctx)
	if err != nil {
		return Outcome{Kind: KindReasoningError, Iterations: r.iterations, Err: fmt.Errorf("planner state: %w", err)}
	}
	switch state {
	case StateCompleted:
		return Outcome{Kind: KindCompleted, Answer: r.answer, Iterations: r.iterations}
	case StateIterationLimit:
		return Outcome{Kind: KindIterationLimit, Iterations: r.iterations}
	}
	if r.err == nil {
		r.fail(ctx, KindReasoningError, fmt.Errorf("planner stopped in state %v", state))
	}
	return Outcome{Kind: r.kind, Iterations: r.iterations, Err: r.err}
}

func (p *Planner) machine(r *run) *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StateReadyToCallLLM)

	// ReadyToCallLLM: call the reasoning service with the transcript so far.
	fsm.Configure(StateReadyToCallLLM).
		PermitReentry(TriggerStart).
		OnEntry(func(ctx context.Context, _ ...any) error {
			if r.iterations >= p.opts.MaxIterations {
				logger.L.Warn("planner iteration limit reached", "max_iterations", p.opts.MaxIterations)
				return fsm.FireCtx(ctx, TriggerIterationLimitReached)
			}
			r.iterations++
			logger.L.Debug("calling reasoning service", "iteration", r.iterations)

			resp, err := p.llmClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       p.opts.Model,
				Messages:    r.messages,
				Tools:       p.tools.Definitions(),
				Temperature: p.opts.Temperature,
			})
			if err != nil {
				r.fail(ctx, KindReasoningError, fmt.Errorf("reasoning service: %w", err))
				return fsm.FireCtx(ctx, TriggerFailed)
			}
			if len(resp.Choices) == 0 {
				r.fail(ctx, KindReasoningError, errors.New("reasoning service returned no choices"))
				return fsm.FireCtx(ctx, TriggerFailed)
			}

			r.last = resp.Choices[0].Message
			if len(r.last.ToolCalls) > 0 {
				return fsm.FireCtx(ctx, TriggerLLMRequestedTools)
			}
			if strings.TrimSpace(r.last.Content) == "" {
				r.fail(ctx, KindReasoningError, errors.New("reasoning service returned an empty answer"))
				return fsm.FireCtx(ctx, TriggerFailed)
			}
			r.answer = r.last.Content
			return fsm.FireCtx(ctx, TriggerLLMRespondedWithContent)
		}).
		Permit(TriggerLLMRequestedTools, StateExecutingTools).
		Permit(TriggerLLMRespondedWithContent, StateCompleted).
		Permit(TriggerIterationLimitReached, StateIterationLimit).
		Permit(TriggerFailed, StateFailed)

	// ExecutingTools: run every requested tool and append the results to the transcript.
	fsm.Configure(StateExecutingTools).
		OnEntry(func(ctx context.Context, _ ...any) error {
			r.messages = append(r.messages, r.last)
			for _, call := range r.last.ToolCalls {
				content, err := p.executeTool(ctx, call)
				if err != nil {
					kind := KindReasoningError
					if errors.Is(err, datastore.ErrUnavailable) {
						kind = KindStoreUnavailable
					}
					r.fail(ctx, kind, err)
					return fsm.FireCtx(ctx, TriggerFailed)
				}
				r.messages = append(r.messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    content,
					ToolCallID: call.ID,
					Name:       call.Function.Name,
				})
			}
			return fsm.FireCtx(ctx, TriggerToolsExecutionCompleted)
		}).
		Permit(TriggerToolsExecutionCompleted, StateReadyToCallLLM).
		Permit(TriggerFailed, StateFailed)

	return fsm
}

// executeTool returns the text fed back to the model. Only errors that must end the run
// (store unavailable, cancellation) are returned as errors; everything else becomes an
// "Error: ..." message the model can react to.
func (p *Planner) executeTool(ctx context.Context, call openai.ToolCall) (string, error) {
	name := call.Function.Name
	tool, err := p.tools.GetTool(name)
	if err != nil {
		metrics.ToolCalls.WithLabelValues(name, "unknown").Inc()
		logger.L.Warn("model requested unknown tool", "tool", name)
		return "Error: " + err.Error(), nil
	}

	logger.L.Debug("executing tool", "tool", name, "arguments", call.Function.Arguments)
	out, err := tool.Run(ctx, call.Function.Arguments)
	switch {
	case err == nil:
		metrics.ToolCalls.WithLabelValues(name, "ok").Inc()
		return out, nil
	case errors.Is(err, datastore.ErrUnavailable):
		metrics.ToolCalls.WithLabelValues(name, "unavailable").Inc()
		return "", err
	case ctx.Err() != nil:
		return "", ctx.Err()
	default:
		metrics.ToolCalls.WithLabelValues(name, "error").Inc()
		logger.L.Info("tool returned error to model", "tool", name, "error", err)
		return "Error: " + err.Error(), nil
	}
}
