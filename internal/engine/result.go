package engine

import (
	"encoding/json"

	"github.com/comigor/askdata-go/internal/finalize"
)

// Status is the top-level result status.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Request is one question from a user. An empty SessionID starts a new conversation.
type Request struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
}

// Result is what RunQuery hands back. Success results carry Answer, Chart and SessionID;
// error results carry only a user-facing Message.
type Result struct {
	Status    Status
	Answer    string
	Chart     finalize.Chart
	SessionID string
	Message   string
}

// OK reports whether the result is a success.
func (r Result) OK() bool { return r.Status == StatusSuccess }

type successJSON struct {
	Status          Status  `json:"status"`
	Answer          string  `json:"answer"`
	ChartSuggestion *string `json:"chartSuggestion"`
	SessionID       string  `json:"sessionId"`
}

type errorJSON struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// MarshalJSON renders the two wire shapes; a missing chart is encoded as null.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Status != StatusSuccess {
		return json.Marshal(errorJSON{Status: StatusError, Message: r.Message})
	}
	out := successJSON{Status: r.Status, Answer: r.Answer, SessionID: r.SessionID}
	if r.Chart != finalize.ChartNone {
		c := string(r.Chart)
		out.ChartSuggestion = &c
	}
	return json.Marshal(out)
}

func success(answer string, chart finalize.Chart, sessionID string) Result {
	return Result{Status: StatusSuccess, Answer: answer, Chart: chart, SessionID: sessionID}
}

func failure(message string) Result {
	return Result{Status: StatusError, Message: message}
}
