package tools

import (
	"context"
	"encoding/json"
)

// Tool is the interface for all tools the planner can call.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON schema of the arguments object.
	Parameters() json.RawMessage
	// Run executes the tool with raw JSON arguments. Errors wrapping
	// datastore.ErrUnavailable abort planning; other errors are reported back to the model.
	Run(ctx context.Context, args string) (string, error)
}
