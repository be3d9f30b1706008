package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

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

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAsk(t *testing.T) {
	e := &fakeEngine{res: engine.Result{Status: engine.StatusSuccess, Answer: "Total sales: $14,308.30", Chart: finalize.ChartNone, SessionID: "s1"}}
	r := NewRouter(e, nil, "")

	rec := do(t, r, http.MethodPost, "/api/ask", `{"question":"Show total sales in June","sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"status":"success","answer":"Total sales: $14,308.30","chartSuggestion":null,"sessionId":"s1"}`, rec.Body.String())
	require.Equal(t, []engine.Request{{Question: "Show total sales in June", SessionID: "s1"}}, e.got)
}

func TestAsk_SnakeCaseSessionID(t *testing.T) {
	e := &fakeEngine{res: engine.Result{Status: engine.StatusError, Message: "question must not be empty"}}
	r := NewRouter(e, nil, "")

	rec := do(t, r, http.MethodPost, "/api/ask", `{"question":"","session_id":"legacy"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"error","message":"question must not be empty"}`, rec.Body.String())
	require.Equal(t, "legacy", e.got[0].SessionID)
}

func TestAsk_BadBody(t *testing.T) {
	e := &fakeEngine{}
	rec := do(t, NewRouter(e, nil, ""), http.MethodPost, "/api/ask", `{"question":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, e.got)

	rec = do(t, NewRouter(e, nil, ""), http.MethodPost, "/api/ask", `{"question":"`+strings.Repeat("a", maxBodyBytes)+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExamples(t *testing.T) {
	rec := do(t, NewRouter(&fakeEngine{}, nil, ""), http.MethodGet, "/api/examples", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Examples []string `json:"examples"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, Examples, body.Examples)
}

func TestFeedback(t *testing.T) {
	r := NewRouter(&fakeEngine{}, nil, "")

	rec := do(t, r, http.MethodPost, "/api/feedback", `{"question":"q","answer":"a","feedback":"Helpful"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"success","message":"Thank you for your feedback!"}`, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/api/feedback", `{"question":"q","rating":4}`)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, body := range []string{`{"feedback":"Helpful"}`, `{"question":"q"}`, `{"question":"q","rating":9}`, `nope`} {
		rec = do(t, r, http.MethodPost, "/api/feedback", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, NewRouter(&fakeEngine{}, fakePinger{}, ""), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"healthy"`)

	rec = do(t, NewRouter(&fakeEngine{}, fakePinger{err: errors.New("down")}, ""), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), `"unhealthy"`)
}

func TestMetrics(t *testing.T) {
	rec := do(t, NewRouter(&fakeEngine{}, nil, ""), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUnknownRoute(t *testing.T) {
	rec := do(t, NewRouter(&fakeEngine{}, nil, ""), http.MethodGet, "/api/ask", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRootAliases(t *testing.T) {
	e := &fakeEngine{res: engine.Result{Status: engine.StatusSuccess, Answer: "ok", SessionID: "s1"}}
	r := NewRouter(e, nil, "")

	for _, path := range []string{"/ask", "/chat", "/api/chat"} {
		rec := do(t, r, http.MethodPost, path, `{"question":"Show total sales in June","session_id":"s1"}`)
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.JSONEq(t, `{"status":"success","answer":"ok","chartSuggestion":null,"sessionId":"s1"}`, rec.Body.String())
	}
	require.Len(t, e.got, 3)
	for _, req := range e.got {
		require.Equal(t, engine.Request{Question: "Show total sales in June", SessionID: "s1"}, req)
	}

	rec := do(t, r, http.MethodGet, "/examples", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, r, http.MethodPost, "/feedback", `{"question":"q","rating":4}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "askdata.log")
	var b strings.Builder
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, `{"msg":"line %d"}`+"\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	r := NewRouter(&fakeEngine{}, nil, path)

	rec := do(t, r, http.MethodGet, "/logs?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, `{"msg":"line 4"}`+"\n"+`{"msg":"line 5"}`+"\n", rec.Body.String())

	rec = do(t, r, http.MethodGet, "/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, b.String(), rec.Body.String())

	rec = do(t, r, http.MethodGet, "/logs?limit=zero", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogs_Unavailable(t *testing.T) {
	rec := do(t, NewRouter(&fakeEngine{}, nil, ""), http.MethodGet, "/logs", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	dir := t.TempDir()
	rec = do(t, NewRouter(&fakeEngine{}, nil, filepath.Join(dir, "missing.log")), http.MethodGet, "/logs", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	empty := filepath.Join(dir, "empty.log")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	rec = do(t, NewRouter(&fakeEngine{}, nil, empty), http.MethodGet, "/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Log file is empty.", rec.Body.String())
}
