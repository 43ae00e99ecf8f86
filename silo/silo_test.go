package silo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/hayride-dev/hayride/herr"
	"github.com/hayride-dev/hayride/silo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain verifies every goroutine Spawn starts in these tests has exited
// by the time the package's tests finish, catching a
// leaked goroutine the way a leaked in-process thread would show up in
// production.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSpawnWaitReturnsResult(t *testing.T) {
	reg := silo.NewRegistry()
	id := reg.Spawn(context.Background(), func(ctx context.Context) ([]byte, error) {
		return []byte("done"), nil
	})

	out, err := reg.Wait(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("done"), out)

	// Wait consumes the thread record: it is no longer tracked afterward.
	_, err = reg.Status(id)
	assert.Error(t, err)
}

func TestWaitConsumesThreadOnSecondCall(t *testing.T) {
	reg := silo.NewRegistry()
	id := reg.Spawn(context.Background(), func(ctx context.Context) ([]byte, error) {
		return []byte("done"), nil
	})

	_, err := reg.Wait(context.Background(), id)
	require.NoError(t, err)

	_, err = reg.Wait(context.Background(), id)
	require.Error(t, err)
	assert.True(t, herr.Is(err, herr.KindThreadNotFound))
}

func TestSpawnWaitPropagatesTaskError(t *testing.T) {
	reg := silo.NewRegistry()
	id := reg.Spawn(context.Background(), func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("boom")
	})

	_, err := reg.Wait(context.Background(), id)
	assert.Error(t, err)

	// Wait consumes the thread record even when the task itself failed.
	_, err = reg.Status(id)
	assert.Error(t, err)
}

func TestKillCancelsRunningTask(t *testing.T) {
	reg := silo.NewRegistry()
	started := make(chan struct{})
	id := reg.Spawn(context.Background(), func(ctx context.Context) ([]byte, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	<-started
	require.NoError(t, reg.Kill(id))

	_, err := reg.Wait(context.Background(), id)
	assert.Error(t, err)
}

func TestGroupListsAllSpawnedThreads(t *testing.T) {
	reg := silo.NewRegistry()
	id1 := reg.Spawn(context.Background(), func(ctx context.Context) ([]byte, error) { return nil, nil })
	id2 := reg.Spawn(context.Background(), func(ctx context.Context) ([]byte, error) { return nil, nil })

	group := reg.Group()
	assert.ElementsMatch(t, []silo.ThreadID{id1, id2}, group)
}

func TestStatusOfUnknownThreadFails(t *testing.T) {
	reg := silo.NewRegistry()
	_, err := reg.Status(silo.ThreadID{})
	assert.Error(t, err)
}

func TestWaitRespectsCallerContext(t *testing.T) {
	reg := silo.NewRegistry()
	id := reg.Spawn(context.Background(), func(ctx context.Context) ([]byte, error) {
		time.Sleep(200 * time.Millisecond)
		return []byte("late"), nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := reg.Wait(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
