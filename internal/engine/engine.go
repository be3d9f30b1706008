// Package engine is the query-answer facade: it validates a question, serialises work per
// session, runs the planner over the assembled context, finalizes the draft and records the
// exchange. Every failure comes back as a structured Result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/comigor/askdata-go/internal/finalize"
	"github.com/comigor/askdata-go/internal/logger"
	"github.com/comigor/askdata-go/internal/metrics"
	"github.com/comigor/askdata-go/internal/planner"
	"github.com/comigor/askdata-go/internal/prompt"
	"github.com/comigor/askdata-go/internal/session"
)

const (
	MaxQuestionLength  = 500
	MaxSessionIDLength = 128
)

// User-facing messages. Internal error text never reaches callers.
const (
	DegradedMessage       = "I couldn't work out a complete answer to that question. Please try rephrasing it or asking something more specific."
	ReasoningErrorMessage = "Something went wrong while answering your question. Please try again."
	StoreErrorMessage     = "The data store is unavailable right now. Please try again shortly."
	CanceledMessage       = "Answering your question took too long and was stopped. Please try a simpler question."
	SessionErrorMessage   = "Your conversation could not be loaded. Please try again."
	InternalErrorMessage  = "An internal error occurred. Please try again."
)

// ErrValidation matches every request validation failure.
var ErrValidation = errors.New("invalid request")

// ValidationError carries a reason that is safe to show to the user.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return ErrValidation.Error() + ": " + e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Planner produces a draft answer for a question in context.
type Planner interface {
	Plan(ctx context.Context, pc prompt.Context, question string) planner.Outcome
}

// Finalizer turns a draft answer into the final one.
type Finalizer interface {
	Finalize(ctx context.Context, draft string) finalize.Answer
}

// Engine is safe for concurrent use. Calls for the same session run one at a time.
type Engine struct {
	sessions  session.Store
	planner   Planner
	finalizer Finalizer
	texts     prompt.Texts
	locks     *keyedMutex
}

// New wires the facade.
func New(sessions session.Store, p Planner, f Finalizer, texts prompt.Texts) *Engine {
	return &Engine{sessions: sessions, planner: p, finalizer: f, texts: texts, locks: newKeyedMutex()}
}

// Validate trims the question and checks both fields, returning the session id to use.
func Validate(req Request) (question, sessionID string, err error) {
	question = strings.TrimSpace(req.Question)
	switch n := utf8.RuneCountInString(question); {
	case n == 0:
		return "", "", &ValidationError{Reason: "question must not be empty"}
	case n > MaxQuestionLength:
		return "", "", &ValidationError{Reason: fmt.Sprintf("question must be at most %d characters", MaxQuestionLength)}
	}
	sessionID = strings.TrimSpace(req.SessionID)
	if len(sessionID) > MaxSessionIDLength {
		return "", "", &ValidationError{Reason: fmt.Sprintf("session id must be at most %d characters", MaxSessionIDLength)}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return question, sessionID, nil
}

// RunQuery answers one question. It never panics and never returns internal error text.
func (e *Engine) RunQuery(ctx context.Context, req Request) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			logger.L.Error("panic while answering question", "panic", p, "stack", string(debug.Stack()))
			res = failure(InternalErrorMessage)
		}
		metrics.Queries.WithLabelValues(string(res.Status)).Inc()
	}()

	question, sessionID, err := Validate(req)
	if err != nil {
		logger.L.Warn("rejected question", "error", err)
		var ve *ValidationError
		if errors.As(err, &ve) {
			return failure(ve.Reason)
		}
		return failure(InternalErrorMessage)
	}
	logger.L.Info("question received", "session_id", sessionID, "question", question)

	unlock, err := e.locks.Lock(ctx, sessionID)
	if err != nil {
		logger.L.Warn("gave up waiting for session", "session_id", sessionID, "error", err)
		return failure(CanceledMessage)
	}
	defer unlock()

	sess, err := e.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		logger.L.Error("load session", "session_id", sessionID, "error", err)
		return failure(SessionErrorMessage)
	}

	pc := prompt.Build(e.texts.Schema, e.texts.Rules, sess.Turns)
	out := e.planner.Plan(ctx, pc, question)

	switch out.Kind {
	case planner.KindCompleted:
		ans := e.finalizer.Finalize(ctx, out.Answer)
		// The exchange is complete, so record it even if the caller has gone away.
		err := e.sessions.Append(context.WithoutCancel(ctx), sessionID,
			session.NewTurn(session.RoleQuestion, question),
			session.NewTurn(session.RoleAnswer, ans.Text))
		if err != nil {
			logger.L.Error("record exchange", "session_id", sessionID, "error", err)
		}
		logger.L.Info("question answered", "session_id", sessionID, "chart", string(ans.Chart), "iterations", out.Iterations)
		return success(ans.Text, ans.Chart, sessionID)
	case planner.KindIterationLimit:
		logger.L.Warn("question hit the iteration limit", "session_id", sessionID, "iterations", out.Iterations)
		return success(DegradedMessage, finalize.ChartNone, sessionID)
	}

	logger.L.Error("question failed", "session_id", sessionID, "outcome", out.Kind.String(), "error", out.Err)
	switch out.Kind {
	case planner.KindStoreUnavailable:
		return failure(StoreErrorMessage)
	case planner.KindCanceled:
		return failure(CanceledMessage)
	default:
		return failure(ReasoningErrorMessage)
	}
}
