package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hayride-dev/hayride/db"
	"github.com/hayride-dev/hayride/herr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRoutesByClassifiedDSN(t *testing.T) {
	var sqliteCalled, pgCalled bool

	dispatcher := db.NewDispatcher(
		func(ctx context.Context, dsn string) (db.Connection, error) {
			pgCalled = true
			return nil, nil
		},
		func(ctx context.Context, dsn string) (db.Connection, error) {
			sqliteCalled = true
			return nil, nil
		},
	)

	_, err := dispatcher.Open(context.Background(), "./x.db")
	require.NoError(t, err)
	assert.True(t, sqliteCalled)
	assert.False(t, pgCalled)
}

func TestDispatcherMySQLIsNotEnabled(t *testing.T) {
	dispatcher := db.NewDispatcher(nil, nil)

	_, err := dispatcher.Open(context.Background(), "mysql://u@h/d")
	require.Error(t, err)

	he, ok := herr.As(err)
	require.True(t, ok)
	assert.Equal(t, herr.KindUnsupportedOperation, he.Kind())
}

func TestDispatcherUnwiredDriverIsDisabled(t *testing.T) {
	dispatcher := db.NewDispatcher(nil, nil)

	_, err := dispatcher.Open(context.Background(), "./x.db")
	require.Error(t, err)

	he, ok := herr.As(err)
	require.True(t, ok)
	assert.Equal(t, herr.KindCapabilityDisabled, he.Kind())
}

func TestDispatcherOpenRetriesTransientFailure(t *testing.T) {
	attempts := 0
	dispatcher := db.NewDispatcher(nil,
		func(ctx context.Context, dsn string) (db.Connection, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("connection refused")
			}
			return nil, nil
		},
	)

	_, err := dispatcher.Open(context.Background(), "./x.db")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDispatcherOpenGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	dispatcher := db.NewDispatcher(nil,
		func(ctx context.Context, dsn string) (db.Connection, error) {
			attempts++
			return nil, errors.New("connection refused")
		},
	)

	_, err := dispatcher.Open(context.Background(), "./x.db")
	require.Error(t, err)

	he, ok := herr.As(err)
	require.True(t, ok)
	assert.Equal(t, herr.KindOpenFailed, he.Kind())
	assert.Greater(t, attempts, 1)
}
