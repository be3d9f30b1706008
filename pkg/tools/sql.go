package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/comigor/askdata-go/internal/datastore"
)

// SQLQueryTool runs one read-only query and returns the rows as text.
type SQLQueryTool struct {
	db      datastore.Querier
	maxRows int
}

// NewSQLQueryTool creates the sql_db_query tool. maxRows caps the rows shown to the model.
func NewSQLQueryTool(db datastore.Querier, maxRows int) *SQLQueryTool {
	return &SQLQueryTool{db: db, maxRows: maxRows}
}

// Name returns the name of the tool
func (t *SQLQueryTool) Name() string { return "sql_db_query" }

// Description returns the description of the tool
func (t *SQLQueryTool) Description() string {
	return "Runs a single read-only SQL SELECT statement against the database and returns the result rows. " +
		"If the query fails, the error is returned; rewrite the query and try again. " +
		"Use sql_db_schema first if unsure about column names."
}

// Parameters returns the argument schema
func (t *SQLQueryTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"A single SELECT statement."}},"required":["query"]}`)
}

// Run runs the tool
func (t *SQLQueryTool) Run(ctx context.Context, args string) (string, error) {
	var toolArgs struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(args), &toolArgs); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(toolArgs.Query) == "" {
		return "", errors.New("query is required")
	}
	rows, err := t.db.Query(ctx, toolArgs.Query)
	if err != nil {
		return "", err
	}
	return datastore.Format(rows, t.maxRows), nil
}

// ListTablesTool lists the tables the model may query.
type ListTablesTool struct {
	db datastore.Querier
}

// NewListTablesTool creates the sql_db_list_tables tool.
func NewListTablesTool(db datastore.Querier) *ListTablesTool {
	return &ListTablesTool{db: db}
}

// Name returns the name of the tool
func (t *ListTablesTool) Name() string { return "sql_db_list_tables" }

// Description returns the description of the tool
func (t *ListTablesTool) Description() string {
	return "Lists the tables in the database as a comma-separated string."
}

// Parameters returns the argument schema
func (t *ListTablesTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

// Run runs the tool
func (t *ListTablesTool) Run(ctx context.Context, _ string) (string, error) {
	tables, err := t.db.ListTables(ctx)
	if err != nil {
		return "", err
	}
	return strings.Join(tables, ", "), nil
}

// SchemaTool describes the columns of given tables.
type SchemaTool struct {
	db datastore.Querier
}

// NewSchemaTool creates the sql_db_schema tool.
func NewSchemaTool(db datastore.Querier) *SchemaTool {
	return &SchemaTool{db: db}
}

// Name returns the name of the tool
func (t *SchemaTool) Name() string { return "sql_db_schema" }

// Description returns the description of the tool
func (t *SchemaTool) Description() string {
	return "Returns the columns and types of the given tables. Input is a comma-separated list of table names."
}

// Parameters returns the argument schema
func (t *SchemaTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"tables":{"type":"string","description":"Comma-separated table names, e.g. orders, users"}},"required":["tables"]}`)
}

// Run runs the tool
func (t *SchemaTool) Run(ctx context.Context, args string) (string, error) {
	var toolArgs struct {
		Tables string `json:"tables"`
	}
	if err := json.Unmarshal([]byte(args), &toolArgs); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	var names []string
	for _, n := range strings.Split(toolArgs.Tables, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "", errors.New("tables is required")
	}
	cols, err := t.db.DescribeTables(ctx, names)
	if err != nil {
		return "", err
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("no such tables: %s", strings.Join(names, ", "))
	}

	var b strings.Builder
	current := ""
	for _, c := range cols {
		if c.Table != current {
			if current != "" {
				b.WriteString("\n")
			}
			current = c.Table
			fmt.Fprintf(&b, "Table %s:", c.Table)
		}
		fmt.Fprintf(&b, "\n  %s %s", c.Name, c.Type)
	}
	return b.String(), nil
}

// SQLTools returns the standard read-only toolset over db.
func SQLTools(db datastore.Querier, maxRows int) []Tool {
	return []Tool{NewSQLQueryTool(db, maxRows), NewListTablesTool(db), NewSchemaTool(db)}
}
