// Package dbmock provides a hand-written in-memory implementation of the db
// package's interfaces so consumers of the DB Capability can be unit
// tested without a real driver.
package dbmock

import (
	"context"
	"sync"

	"github.com/hayride-dev/hayride/db"
	"github.com/hayride-dev/hayride/db/value"
)

// Table is a fixed, pre-seeded result set returned verbatim by every Query
// against a statement built with that SQL text.
type Table struct {
	Columns []string
	Rows    [][]value.Value
}

// Connection is an in-memory db.Connection. Queries are matched by exact
// SQL text against a caller-registered table; anything unregistered
// returns an empty result set rather than an error, matching a permissive
// test double.
type Connection struct {
	mu     sync.Mutex
	tables map[string]Table
	closed bool
}

// New constructs an empty mock Connection.
func New() *Connection {
	return &Connection{tables: map[string]Table{}}
}

// Seed registers the rows returned when sql is queried verbatim.
func (c *Connection) Seed(sql string, table Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[sql] = table
}

func (c *Connection) Prepare(_ context.Context, sql string) (db.Statement, error) {
	c.mu.Lock()
	table := c.tables[sql]
	c.mu.Unlock()
	return &statement{table: table}, nil
}

func (c *Connection) BeginTx(context.Context, db.Isolation, bool) (db.Transaction, error) {
	return &transaction{conn: c}, nil
}

func (c *Connection) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close has been called, for test assertions.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type statement struct {
	table Table
}

func (s *statement) Query(context.Context, ...value.Value) (db.Rows, error) {
	return &rows{table: s.table}, nil
}

func (s *statement) Exec(context.Context, ...value.Value) (int64, error) {
	return int64(len(s.table.Rows)), nil
}

func (s *statement) Close() error { return nil }

type rows struct {
	table Table
	idx   int
}

func (r *rows) Columns() []string { return r.table.Columns }

func (r *rows) Next(context.Context) ([]value.Value, error) {
	if r.idx >= len(r.table.Rows) {
		return nil, db.EndOfRows
	}
	row := r.table.Rows[r.idx]
	r.idx++
	return row, nil
}

func (r *rows) Close() error { return nil }

type transaction struct {
	conn *Connection
}

func (t *transaction) Prepare(ctx context.Context, sql string) (db.Statement, error) {
	return t.conn.Prepare(ctx, sql)
}
func (t *transaction) Commit(context.Context) error   { return nil }
func (t *transaction) Rollback(context.Context) error { return nil }
