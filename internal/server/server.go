// Package server exposes the query engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/comigor/askdata-go/internal/engine"
	"github.com/comigor/askdata-go/internal/logger"
)

const (
	maxBodyBytes    = 64 << 10
	defaultLogLines = 100
	maxLogLines     = 5000
)

// Examples are the sample questions offered to new users.
var Examples = []string{
	"Get me a list of group leaders who had zero orders last weekend.",
	"Which registration channel shows the highest 30-day retention rate for users who signed up in July?",
	"Which fresh produce items had the highest sales volume in August? Show me a daily sales breakdown for the top 3 items.",
	"Identify the top 10 group leaders who brought the most new, first-time purchasing customers to ChipChip.",
	"What are the peak shopping times for 'Working Professionals' during weekdays?",
}

// Answerer runs one question through the engine.
type Answerer interface {
	RunQuery(ctx context.Context, req engine.Request) engine.Result
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type handler struct {
	engine  Answerer
	db      Pinger
	logPath string
}

// NewRouter wires the HTTP routes. db may be nil, in which case /health only reports
// that the process is up. logPath is the file GET /logs tails; empty disables it.
func NewRouter(e Answerer, db Pinger, logPath string) http.Handler {
	h := &handler{engine: e, db: db, logPath: logPath}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/logs", h.handleLogs)

	routes := func(r chi.Router) {
		r.Post("/ask", h.handleAsk)
		r.Post("/chat", h.handleAsk)
		r.Get("/examples", h.handleExamples)
		r.Post("/feedback", h.handleFeedback)
	}
	routes(r)
	r.Route("/api", routes)
	return r
}

func (h *handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Question        string `json:"question"`
		SessionID       string `json:"sessionId"`
		LegacySessionID string `json:"session_id"` // older clients send snake_case
	}
	if err := decode(w, r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req := engine.Request{Question: payload.Question, SessionID: payload.SessionID}
	if req.SessionID == "" {
		req.SessionID = payload.LegacySessionID
	}

	res := h.engine.RunQuery(r.Context(), req)
	respondJSON(w, http.StatusOK, res)
}

func (h *handler) handleExamples(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"examples": Examples})
}

func (h *handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Feedback string `json:"feedback"`
		Rating   int    `json:"rating"`
		Comment  string `json:"comment"`
	}
	if err := decode(w, r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Question) == "" {
		respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	if strings.TrimSpace(payload.Feedback) == "" && payload.Rating == 0 {
		respondError(w, http.StatusBadRequest, "feedback or rating is required")
		return
	}
	if payload.Rating < 0 || payload.Rating > 5 {
		respondError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	logger.L.Info("feedback received",
		"question", payload.Question,
		"answer", payload.Answer,
		"feedback", payload.Feedback,
		"rating", payload.Rating,
		"comment", payload.Comment)
	respondJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Thank you for your feedback!"})
}

func (h *handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	if h.logPath == "" {
		respondError(w, http.StatusNotFound, "log file is not configured")
		return
	}
	limit := defaultLogLines
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLogLines)
	}

	lines, err := logger.Tail(h.logPath, limit)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		respondError(w, http.StatusNotFound, "log file not found")
		return
	case err != nil:
		logger.L.Error("read log file", "path", h.logPath, "error", err)
		respondError(w, http.StatusInternalServerError, "could not read log file")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if len(lines) == 0 {
		_, _ = w.Write([]byte("Log file is empty."))
		return
	}
	_, _ = w.Write([]byte(strings.Join(lines, "\n") + "\n"))
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			logger.L.Warn("health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "message": "data store unreachable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "message": "Service is up and running"})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Warn("write response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"status": "error", "message": message})
}

// requestLogger logs one line per request through the shared slog logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.L.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
