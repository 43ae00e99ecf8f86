// Package db implements the DB Capability: connection opening dispatched
// on a classified DSN, prepared statements, cursor-based row streaming,
// and transactions, independent of the underlying driver.
package db

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hayride-dev/hayride/db/dsn"
	"github.com/hayride-dev/hayride/db/value"
	"github.com/hayride-dev/hayride/herr"
)

// openRetries bounds how many times a transient connection failure is
// retried before Open gives up and surfaces the error. The reconnection
// policy is otherwise unspecified; a small bounded exponential backoff
// avoids hammering a database that is still starting up.
const openRetries = 3

// Isolation enumerates the supported transaction isolation levels.
type Isolation string

const (
	IsolationReadUncommitted Isolation = "read_uncommitted"
	IsolationReadCommitted   Isolation = "read_committed"
	IsolationWriteCommitted  Isolation = "write_committed"
	IsolationRepeatableRead  Isolation = "repeatable_read"
	IsolationSnapshot        Isolation = "snapshot"
	IsolationSerializable    Isolation = "serializable"
	IsolationLinearizable    Isolation = "linearizable"
)

// EndOfRows is returned by Rows.Next once the cursor is exhausted.
var EndOfRows = herr.DB(herr.KindEndOfRows, "", "no more rows")

// Connection wraps a driver-specific client plus its cancellation token.
type Connection interface {
	Prepare(ctx context.Context, sql string) (Statement, error)
	BeginTx(ctx context.Context, isolation Isolation, readOnly bool) (Transaction, error)
	Close(ctx context.Context) error
}

// Statement is a prepared statement bindable to positional parameters.
type Statement interface {
	Query(ctx context.Context, args ...value.Value) (Rows, error)
	Exec(ctx context.Context, args ...value.Value) (int64, error)
	Close() error
}

// Rows supports pull-based iteration over a query's result cursor.
type Rows interface {
	// Next pulls one row. It returns EndOfRows once exhausted.
	Next(ctx context.Context) ([]value.Value, error)
	Columns() []string
	Close() error
}

// Transaction is a Connection-scoped unit of work. Statements prepared on a
// Transaction are invalidated once it is committed or rolled back.
type Transaction interface {
	Prepare(ctx context.Context, sql string) (Statement, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Opener constructs a driver-specific Connection from a DSN whose scheme it
// already owns (e.g. the sqlite Opener is only ever invoked for DSNs
// classified dsn.KindSQLite).
type Opener func(ctx context.Context, rawDSN string) (Connection, error)

// Dispatcher routes Open calls to the Opener registered for a dsn.Kind.
type Dispatcher struct {
	openers map[dsn.Kind]Opener
}

// NewDispatcher builds a Dispatcher from per-kind openers. A nil entry for
// a kind means that kind is not enabled in this engine instance.
func NewDispatcher(postgres, sqlite Opener) *Dispatcher {
	return &Dispatcher{openers: map[dsn.Kind]Opener{
		dsn.KindPostgres: postgres,
		dsn.KindSQLite:   sqlite,
	}}
}

// Open classifies rawDSN and dispatches to the matching driver.
func (d *Dispatcher) Open(ctx context.Context, rawDSN string) (Connection, error) {
	kind := dsn.Classify(rawDSN)

	switch kind {
	case dsn.KindMySQL:
		return nil, herr.New(herr.CapDB, herr.KindUnsupportedOperation, "", "mysql DSNs are recognized but not enabled")
	case dsn.KindPostgres, dsn.KindSQLite:
		opener := d.openers[kind]
		if opener == nil {
			return nil, herr.New(herr.CapDB, herr.KindCapabilityDisabled, string(kind), "driver not wired for this engine")
		}
		conn, err := openWithRetry(ctx, opener, rawDSN)
		if err != nil {
			return nil, herr.NewWithCause(herr.CapDB, herr.KindOpenFailed, "", "failed to open connection", err)
		}
		return conn, nil
	default:
		return nil, herr.New(herr.CapDB, herr.KindOpenFailed, "", "could not classify DSN")
	}
}

// openWithRetry retries a transient Open failure with bounded exponential
// backoff, stopping as soon as opener succeeds, ctx is cancelled, or
// openRetries retries have followed the first attempt.
func openWithRetry(ctx context.Context, opener Opener, rawDSN string) (Connection, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 25 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond

	var conn Connection
	op := func() error {
		c, err := opener(ctx, rawDSN)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, openRetries), ctx))
	return conn, err
}
