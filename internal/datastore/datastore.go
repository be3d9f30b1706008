// Package datastore is the engine's read-only window onto the relational data: the query
// capability the planner's tools use and the name directory the finalizer uses to turn
// opaque ids into display names.
package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/comigor/askdata-go/internal/config"
)

var (
	// ErrUnavailable marks failures to reach the data store at all, as opposed to a bad query.
	ErrUnavailable = errors.New("data store unavailable")
	// ErrNotReadOnly is returned for statements other than a single SELECT/WITH query.
	ErrNotReadOnly = errors.New("only a single read-only SELECT statement is allowed")
)

// Rows is a fully materialised query result.
type Rows struct {
	Columns []string
	Values  [][]any
}

// Column describes one column of a table.
type Column struct {
	Table string
	Name  string
	Type  string
}

// NameSource is a table holding display names for ids.
type NameSource struct {
	Table      string
	IDColumn   string
	NameColumn string
}

// Querier is the read-only query capability handed to the planner.
type Querier interface {
	Query(ctx context.Context, query string) (*Rows, error)
	ListTables(ctx context.Context) ([]string, error)
	DescribeTables(ctx context.Context, tables []string) ([]Column, error)
}

// NameDirectory resolves ids to display names in one batched lookup.
// Ids without a name are simply absent from the result.
type NameDirectory interface {
	LookupNames(ctx context.Context, ids []string) (map[string]string, error)
}

// Store is implemented by every backend.
type Store interface {
	Querier
	NameDirectory
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	names := make([]NameSource, 0, len(cfg.Names))
	for _, n := range cfg.Names {
		names = append(names, NameSource{Table: n.Table, IDColumn: n.IDColumn, NameColumn: n.NameColumn})
	}
	switch cfg.Driver {
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.URL, cfg.MaxConns, names)
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.URL, names)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
