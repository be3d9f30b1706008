package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/glebarez/go-sqlite"
)

// SQLite serves local demos and tests. The connection is opened with query_only so the
// planner cannot write even if a statement slips past CheckReadOnly.
type SQLite struct {
	db    *sql.DB
	names []NameSource
}

// OpenSQLite opens the database file at path in query-only mode.
func OpenSQLite(ctx context.Context, path string, names []NameSource) (*SQLite, error) {
	path = strings.TrimPrefix(path, "file:")
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=query_only(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping sqlite: %v", ErrUnavailable, err)
	}
	return &SQLite{db: db, names: names}, nil
}

// Query implements Querier.
func (s *SQLite) Query(ctx context.Context, query string) (*Rows, error) {
	q, err := CheckReadOnly(query)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	out := &Rows{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, s.classify(ctx, err)
		}
		out.Values = append(out.Values, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(ctx, err)
	}
	return out, nil
}

// ListTables implements Querier.
func (s *SQLite) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// DescribeTables implements Querier.
func (s *SQLite) DescribeTables(ctx context.Context, tables []string) ([]Column, error) {
	var out []Column
	for _, t := range tables {
		rows, err := s.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, t)
		if err != nil {
			return nil, s.classify(ctx, err)
		}
		for rows.Next() {
			c := Column{Table: t}
			if err := rows.Scan(&c.Name, &c.Type); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, c)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, s.classify(ctx, err)
		}
	}
	return out, nil
}

// LookupNames implements NameDirectory with one UNION ALL statement over every name source.
func (s *SQLite) LookupNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 || len(s.names) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	parts := make([]string, 0, len(s.names))
	args := make([]any, 0, len(ids)*len(s.names))
	for _, n := range s.names {
		parts = append(parts, fmt.Sprintf("SELECT CAST(%s AS TEXT), CAST(%s AS TEXT) FROM %s WHERE CAST(%s AS TEXT) IN (%s)",
			quoteIdent(n.IDColumn), quoteIdent(n.NameColumn), quoteIdent(n.Table), quoteIdent(n.IDColumn), placeholders))
		for _, id := range ids {
			args = append(args, id)
		}
	}
	rows, err := s.db.QueryContext(ctx, strings.Join(parts, " UNION ALL "), args...)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		if _, seen := out[id]; !seen {
			out[id] = name
		}
	}
	return out, rows.Err()
}

// Ping implements Store.
func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if pingErr := s.Ping(ctx); pingErr != nil {
		return pingErr
	}
	return fmt.Errorf("query failed: %v", err)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
