// Package prompt assembles the reasoning context handed to the planner: static business
// rules, the static schema description and the conversation so far.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/askdata-go/internal/session"
)

//go:embed defaults/business_rules.txt
var defaultRules string

//go:embed defaults/schema.txt
var defaultSchema string

// Texts holds the static prompt material, loaded once at startup.
type Texts struct {
	Rules  string
	Schema string
}

// Defaults returns the embedded business rules and schema description.
func Defaults() Texts {
	return Texts{Rules: defaultRules, Schema: defaultSchema}
}

// Load reads override files; an empty path keeps the embedded default.
func Load(rulesPath, schemaPath string) (Texts, error) {
	t := Defaults()
	if rulesPath != "" {
		b, err := os.ReadFile(rulesPath)
		if err != nil {
			return Texts{}, fmt.Errorf("read business rules: %w", err)
		}
		t.Rules = string(b)
	}
	if schemaPath != "" {
		b, err := os.ReadFile(schemaPath)
		if err != nil {
			return Texts{}, fmt.Errorf("read schema description: %w", err)
		}
		t.Schema = string(b)
	}
	return t, nil
}

// Context is the per-call reasoning context. It is never persisted.
type Context struct {
	System  string
	History []session.Turn
}

// Build is a pure function of its inputs.
func Build(schemaText, businessRules string, history []session.Turn) Context {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(businessRules))
	if schema := strings.TrimSpace(schemaText); schema != "" {
		b.WriteString("\n\nDatabase schema:\n")
		b.WriteString(schema)
	}

	h := make([]session.Turn, len(history))
	copy(h, history)
	return Context{System: b.String(), History: h}
}

// Messages renders the context and the current question as a chat transcript:
// system prompt, prior turns in order, then the question.
func (c Context) Messages(question string) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(c.History)+2)
	if c.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.System})
	}
	for _, t := range c.History {
		role := openai.ChatMessageRoleUser
		if t.Role == session.RoleAnswer {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: question})
}
