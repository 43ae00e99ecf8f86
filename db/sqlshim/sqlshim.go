// Package sqlshim adapts Go's database/sql to the db package's
// Connection/Statement/Rows/Transaction interfaces. It is shared by
// db/postgres and db/sqlite, which differ only in driver name, DSN
// preparation, and column-type-to-value.Value decoding.
//
// Conn, Stmt, Rows and Tx wrap *sql.DB, *sql.Stmt, *sql.Rows and *sql.Tx
// directly; no narrower interface sits between them and the driver types.
package sqlshim

import (
	"context"
	"database/sql"

	"github.com/hayride-dev/hayride/db"
	"github.com/hayride-dev/hayride/db/value"
	"github.com/hayride-dev/hayride/herr"
)

// Decoder converts one driver-reported column type name to a value.Value,
// given the column's raw driver value. Postgres and SQLite each supply
// their own Decoder reflecting their type systems.
type Decoder func(columnType string, raw any) value.Value

// Conn wraps a *sql.DB as a db.Connection.
type Conn struct {
	db     *sql.DB
	decode Decoder
}

// NewConn wraps db with decode as its column decoder.
func NewConn(db *sql.DB, decode Decoder) *Conn {
	return &Conn{db: db, decode: decode}
}

func (c *Conn) Prepare(ctx context.Context, query string) (*Stmt, error) {
	stmt, err := c.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, herr.NewWithCause(herr.CapDB, herr.KindPrepareFailed, "", "prepare failed", err)
	}
	return &Stmt{stmt: stmt, decode: c.decode}, nil
}

func (c *Conn) BeginTx(ctx context.Context, isolation sql.IsolationLevel, readOnly bool) (*Tx, error) {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{Isolation: isolation, ReadOnly: readOnly})
	if err != nil {
		return nil, herr.NewWithCause(herr.CapDB, herr.KindBeginTransactionFailed, "", "begin transaction failed", err)
	}
	return &Tx{tx: tx, decode: c.decode}, nil
}

func (c *Conn) Close(context.Context) error {
	if err := c.db.Close(); err != nil {
		return herr.NewWithCause(herr.CapDB, herr.KindCloseFailed, "", "close failed", err)
	}
	return nil
}

// Stmt wraps a *sql.Stmt as a db.Statement.
type Stmt struct {
	stmt   *sql.Stmt
	decode Decoder
}

func (s *Stmt) Query(ctx context.Context, args ...value.Value) (*Rows, error) {
	rows, err := s.stmt.QueryContext(ctx, toDriverArgs(args)...)
	if err != nil {
		return nil, herr.NewWithCause(herr.CapDB, herr.KindQueryFailed, "", "query failed", err)
	}
	return newRows(rows, s.decode)
}

func (s *Stmt) Exec(ctx context.Context, args ...value.Value) (int64, error) {
	res, err := s.stmt.ExecContext(ctx, toDriverArgs(args)...)
	if err != nil {
		return 0, herr.NewWithCause(herr.CapDB, herr.KindExecuteFailed, "", "exec failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, herr.NewWithCause(herr.CapDB, herr.KindExecuteFailed, "", "rows affected unavailable", err)
	}
	return n, nil
}

func (s *Stmt) Close() error {
	if err := s.stmt.Close(); err != nil {
		return herr.NewWithCause(herr.CapDB, herr.KindCloseFailed, "", "statement close failed", err)
	}
	return nil
}

// Rows wraps a *sql.Rows as a db.Rows.
type Rows struct {
	rows    *sql.Rows
	columns []string
	types   []string
	decode  Decoder
}

func newRows(rows *sql.Rows, decode Decoder) (*Rows, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, herr.NewWithCause(herr.CapDB, herr.KindQueryFailed, "", "columns unavailable", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, herr.NewWithCause(herr.CapDB, herr.KindQueryFailed, "", "column types unavailable", err)
	}
	typeNames := make([]string, len(colTypes))
	for i, ct := range colTypes {
		typeNames[i] = ct.DatabaseTypeName()
	}
	return &Rows{rows: rows, columns: cols, types: typeNames, decode: decode}, nil
}

func (r *Rows) Columns() []string { return r.columns }

func (r *Rows) Next(ctx context.Context) ([]value.Value, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, herr.NewWithCause(herr.CapDB, herr.KindNextFailed, "", "row iteration failed", err)
		}
		return nil, db.EndOfRows
	}

	raw := make([]any, len(r.columns))
	ptrs := make([]any, len(r.columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, herr.NewWithCause(herr.CapDB, herr.KindNextFailed, "", "scan failed", err)
	}

	out := make([]value.Value, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = value.Null()
			continue
		}
		out[i] = r.decode(r.types[i], v)
	}
	return out, nil
}

func (r *Rows) Close() error {
	if err := r.rows.Close(); err != nil {
		return herr.NewWithCause(herr.CapDB, herr.KindCloseFailed, "", "rows close failed", err)
	}
	return nil
}

// Tx wraps a *sql.Tx as a db.Transaction.
type Tx struct {
	tx     *sql.Tx
	decode Decoder
}

func (t *Tx) Prepare(ctx context.Context, query string) (*Stmt, error) {
	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, herr.NewWithCause(herr.CapDB, herr.KindPrepareFailed, "", "prepare failed", err)
	}
	return &Stmt{stmt: stmt, decode: t.decode}, nil
}

func (t *Tx) Commit(context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return herr.NewWithCause(herr.CapDB, herr.KindCommitFailed, "", "commit failed", err)
	}
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil {
		return herr.NewWithCause(herr.CapDB, herr.KindRollbackFailed, "", "rollback failed", err)
	}
	return nil
}

func toDriverArgs(args []value.Value) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch a.Kind {
		case value.KindNull:
			out[i] = nil
		case value.KindBoolean:
			out[i] = a.Bool
		case value.KindInt16, value.KindInt32, value.KindInt64:
			out[i] = a.Int
		case value.KindFloat32, value.KindFloat64:
			out[i] = a.Float
		case value.KindBytes:
			out[i] = a.Bytes
		default:
			out[i] = a.Text
		}
	}
	return out
}

// Isolation maps db.Isolation onto database/sql's isolation constants. The
// stdlib has no WriteCommitted/Linearizable equivalent; those degrade to
// the nearest stronger level the driver actually supports.
func Isolation(level string) sql.IsolationLevel {
	switch level {
	case "read_uncommitted":
		return sql.LevelReadUncommitted
	case "read_committed", "write_committed":
		return sql.LevelReadCommitted
	case "repeatable_read":
		return sql.LevelRepeatableRead
	case "snapshot":
		return sql.LevelSnapshot
	case "serializable", "linearizable":
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}
