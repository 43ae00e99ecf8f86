// Package postgres implements the PostgreSQL driver for the DB Capability,
// backed by github.com/lib/pq and github.com/jmoiron/sqlx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/hayride-dev/hayride/db"
	"github.com/hayride-dev/hayride/db/sqlshim"
	"github.com/hayride-dev/hayride/db/value"
	"github.com/hayride-dev/hayride/herr"
)

// Open opens a PostgreSQL connection from a DSN already classified as
// Postgres (either a postgres:// URL or a libpq keyword string).
func Open(ctx context.Context, rawDSN string) (db.Connection, error) {
	sqlxDB, err := sqlx.Open("postgres", rawDSN)
	if err != nil {
		return nil, herr.NewWithCause(herr.CapDB, herr.KindOpenFailed, "", "postgres open failed", err)
	}
	if err := sqlxDB.PingContext(ctx); err != nil {
		_ = sqlxDB.Close()
		return nil, herr.NewWithCause(herr.CapDB, herr.KindOpenFailed, "", "postgres ping failed", err)
	}
	return &conn{inner: sqlshim.NewConn(sqlxDB.DB, decode)}, nil
}

type conn struct{ inner *sqlshim.Conn }

func (c *conn) Prepare(ctx context.Context, query string) (db.Statement, error) {
	s, err := c.inner.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	return &stmt{inner: s}, nil
}

func (c *conn) BeginTx(ctx context.Context, isolation db.Isolation, readOnly bool) (db.Transaction, error) {
	tx, err := c.inner.BeginTx(ctx, sqlshim.Isolation(string(isolation)), readOnly)
	if err != nil {
		return nil, err
	}
	return &transaction{inner: tx}, nil
}

func (c *conn) Close(ctx context.Context) error { return c.inner.Close(ctx) }

type stmt struct{ inner *sqlshim.Stmt }

func (s *stmt) Query(ctx context.Context, args ...value.Value) (db.Rows, error) {
	return s.inner.Query(ctx, args...)
}
func (s *stmt) Exec(ctx context.Context, args ...value.Value) (int64, error) {
	return s.inner.Exec(ctx, args...)
}
func (s *stmt) Close() error { return s.inner.Close() }

type transaction struct{ inner *sqlshim.Tx }

func (t *transaction) Prepare(ctx context.Context, query string) (db.Statement, error) {
	s, err := t.inner.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	return &stmt{inner: s}, nil
}
func (t *transaction) Commit(ctx context.Context) error   { return t.inner.Commit(ctx) }
func (t *transaction) Rollback(ctx context.Context) error { return t.inner.Rollback(ctx) }

// decode maps lib/pq's reported column type name onto the shared value
// taxonomy, per the documented PostgreSQL type table.
func decode(columnType string, raw any) value.Value {
	switch columnType {
	case "INT2", "INT4", "INT8":
		if v, ok := raw.(int64); ok {
			return value.Int64(v)
		}
	case "FLOAT4", "FLOAT8":
		if v, ok := raw.(float64); ok {
			return value.Float64(v)
		}
	case "BOOL":
		if v, ok := raw.(bool); ok {
			return value.Boolean(v)
		}
	case "BYTEA":
		if v, ok := raw.([]byte); ok {
			return value.Bytes(v)
		}
	case "NUMERIC":
		return value.Numeric(textOf(raw))
	case "TEXT", "VARCHAR", "CHAR", "NAME", "DATE", "TIME", "TIMESTAMP", "TIMESTAMPTZ", "UUID", "JSON", "JSONB":
		return value.Text(textOf(raw))
	}
	// Unknown or mismatched column type: fall back to a string rendering.
	return value.Text(textOf(raw))
}

func textOf(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
