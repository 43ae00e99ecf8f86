// Package sqlite implements the SQLite driver for the DB Capability, backed
// by modernc.org/sqlite, a pure-Go, cgo-free driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/hayride-dev/hayride/db"
	"github.com/hayride-dev/hayride/db/sqlshim"
	"github.com/hayride-dev/hayride/db/value"
	"github.com/hayride-dev/hayride/herr"
)

// Open opens a SQLite connection from a DSN already classified as SQLite.
// rawDSN is passed through to modernc.org/sqlite largely unmodified; the
// "sqlite::memory:" and "file::memory:" forms are normalized to the
// driver's own in-memory DSN ("file::memory:?cache=shared").
func Open(ctx context.Context, rawDSN string) (db.Connection, error) {
	sqlDB, err := sql.Open("sqlite", normalize(rawDSN))
	if err != nil {
		return nil, herr.NewWithCause(herr.CapDB, herr.KindOpenFailed, "", "sqlite open failed", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, herr.NewWithCause(herr.CapDB, herr.KindOpenFailed, "", "sqlite ping failed", err)
	}
	return &conn{inner: sqlshim.NewConn(sqlDB, decode)}, nil
}

func normalize(rawDSN string) string {
	switch rawDSN {
	case "sqlite::memory:", "file::memory:":
		return "file::memory:?cache=shared"
	default:
		return rawDSN
	}
}

type conn struct {
	inner *sqlshim.Conn
}

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
	r, err := s.inner.Query(ctx, args...)
	if err != nil {
		return nil, err
	}
	return r, nil
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

// decode maps SQLite's loose column typing onto the shared value taxonomy.
// SQLite reports dynamic per-value types via Go's database/sql scan rather
// than fixed per-column types, so columnType is often empty; decoding
// dispatches on raw's Go type, and columnType only decides whether a
// []byte value is Text or Bytes. Any other Go type becomes a Custom value
// carrying its printed form.
func decode(columnType string, raw any) value.Value {
	switch v := raw.(type) {
	case int64:
		return value.Int64(v)
	case float64:
		return value.Float64(v)
	case []byte:
		if columnType == "TEXT" {
			return value.Text(string(v))
		}
		return value.Bytes(v)
	case string:
		return value.Text(v)
	case bool:
		return value.Boolean(v)
	default:
		return value.Custom(fmt.Sprint(v))
	}
}
