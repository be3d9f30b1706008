package datastore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comigor/askdata-go/internal/logger"
)

// Postgres is the production backend. Planner queries run inside READ ONLY transactions.
type Postgres struct {
	pool  *pgxpool.Pool
	names []NameSource
}

// OpenPostgres creates a pool and pings it.
func OpenPostgres(ctx context.Context, url string, maxConns int32, names []NameSource) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: create pool: %v", ErrUnavailable, err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	logger.L.Info("postgres pool ready", "max_conns", poolConfig.MaxConns)
	return &Postgres{pool: pool, names: names}, nil
}

// Query implements Querier.
func (p *Postgres) Query(ctx context.Context, query string) (*Rows, error) {
	q, err := CheckReadOnly(query)
	if err != nil {
		return nil, err
	}
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, p.classify(ctx, err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, q)
	if err != nil {
		return nil, p.classify(ctx, err)
	}
	defer rows.Close()

	out := &Rows{}
	for _, fd := range rows.FieldDescriptions() {
		out.Columns = append(out.Columns, fd.Name)
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, p.classify(ctx, err)
		}
		out.Values = append(out.Values, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, p.classify(ctx, err)
	}
	return out, nil
}

// ListTables implements Querier.
func (p *Postgres) ListTables(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name`)
	if err != nil {
		return nil, p.classify(ctx, err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, p.classify(ctx, err)
	}
	return tables, nil
}

// DescribeTables implements Querier.
func (p *Postgres) DescribeTables(ctx context.Context, tables []string) ([]Column, error) {
	rows, err := p.pool.Query(ctx, `SELECT table_name, column_name, data_type
        FROM information_schema.columns
        WHERE table_schema = current_schema() AND table_name = ANY($1)
        ORDER BY table_name, ordinal_position`, tables)
	if err != nil {
		return nil, p.classify(ctx, err)
	}
	cols, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Column, error) {
		var c Column
		err := row.Scan(&c.Table, &c.Name, &c.Type)
		return c, err
	})
	if err != nil {
		return nil, p.classify(ctx, err)
	}
	return cols, nil
}

// LookupNames implements NameDirectory with one UNION ALL statement over every name source.
func (p *Postgres) LookupNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 || len(p.names) == 0 {
		return out, nil
	}
	parts := make([]string, 0, len(p.names))
	for _, n := range p.names {
		id := pgx.Identifier{n.IDColumn}.Sanitize()
		parts = append(parts, fmt.Sprintf("SELECT CAST(%s AS text), CAST(%s AS text) FROM %s WHERE CAST(%s AS text) = ANY($1)",
			id, pgx.Identifier{n.NameColumn}.Sanitize(), pgx.Identifier{n.Table}.Sanitize(), id))
	}
	rows, err := p.pool.Query(ctx, strings.Join(parts, " UNION ALL "), ids)
	if err != nil {
		return nil, p.classify(ctx, err)
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
	if err := rows.Err(); err != nil {
		return nil, p.classify(ctx, err)
	}
	return out, nil
}

// Ping implements Store.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close implements Store.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// classify separates server-reported query errors, which the planner can learn from, from
// connectivity failures.
func (p *Postgres) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Hint != "" {
			return fmt.Errorf("query failed: %s (hint: %s)", pgErr.Message, pgErr.Hint)
		}
		return fmt.Errorf("query failed: %s", pgErr.Message)
	}
	if pingErr := p.Ping(ctx); pingErr != nil {
		return pingErr
	}
	return err
}
