// Package silo implements the Thread Registry: an in-process registry of
// spawned child components ("threads"), each tracked as a cancellable
// task with status/kill/wait/group operations. ThreadRecord's status
// machine is a rename of an in-memory workflow engine's workflow/handle/
// status bookkeeping (a map guarded by sync.RWMutex, one per-entry mutex
// for status transitions, a done channel signaling completion) from
// durable-workflow vocabulary to Hayride's "thread" vocabulary; go.temporal.
// io/sdk itself is not wired (see DESIGN.md).
package silo

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hayride-dev/hayride/herr"
)

// ThreadID uniquely identifies one spawned child within a Registry.
type ThreadID uuid.UUID

func (id ThreadID) String() string { return uuid.UUID(id).String() }

// Status is a thread's lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusKilled    Status = "killed"
)

// Task is the work a spawned thread runs: the engine supplies a closure that
// instantiates the target morph and invokes its entry function, returning
// the raw result bytes wait(...) promises.
type Task func(ctx context.Context) ([]byte, error)

// record is one thread's mutable state.
type record struct {
	mu     sync.Mutex
	status Status
	result []byte
	err    error
	done   chan struct{}
	cancel context.CancelFunc
}

// Registry is the concurrent, process-wide thread table: a concurrent map
// keyed by invocation id, with each entry individually locked on mutation
// of status or handle.
type Registry struct {
	mu      sync.RWMutex
	threads map[ThreadID]*record
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{threads: map[ThreadID]*record{}}
}

// Spawn starts task as a tracked goroutine and returns its ThreadID
// immediately; the task continues running after Spawn returns.
func (r *Registry) Spawn(ctx context.Context, task Task) ThreadID {
	return r.SpawnWithID(ctx, ThreadID(uuid.New()), task)
}

// NewThreadID reserves a ThreadID a caller can embed in a Task closure
// (e.g. a per-thread output directory name) before the task actually
// starts running, then pass to SpawnWithID.
func (r *Registry) NewThreadID() ThreadID {
	return ThreadID(uuid.New())
}

// SpawnWithID is Spawn, but the caller supplies the ThreadID instead of
// letting one be generated, so a task built ahead of time can reference its
// own id (the silo spawn task needs its id to name its session directory
// before the task body runs).
func (r *Registry) SpawnWithID(ctx context.Context, id ThreadID, task Task) ThreadID {
	taskCtx, cancel := context.WithCancel(ctx)
	rec := &record{status: StatusRunning, done: make(chan struct{}), cancel: cancel}

	r.mu.Lock()
	r.threads[id] = rec
	r.mu.Unlock()

	go func() {
		result, err := task(taskCtx)
		rec.mu.Lock()
		defer rec.mu.Unlock()
		if rec.status == StatusKilled {
			// Kill already finalized this record; preserve that outcome.
			close(rec.done)
			return
		}
		rec.result = result
		rec.err = err
		if err != nil {
			rec.status = StatusFailed
		} else {
			rec.status = StatusCompleted
		}
		close(rec.done)
	}()

	return id
}

// Status reports a thread's current lifecycle state.
func (r *Registry) Status(id ThreadID) (Status, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.status, nil
}

// Group lists every thread currently tracked by the registry, in no
// particular order.
func (r *Registry) Group() []ThreadID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ThreadID, 0, len(r.threads))
	for id := range r.threads {
		ids = append(ids, id)
	}
	return ids
}

// Kill requests cancellation of a running thread. The thread's task
// observes cancellation at its next suspension point; Kill itself
// returns immediately and marks the thread Killed without waiting for
// the task to actually stop.
func (r *Registry) Kill(id ThreadID) error {
	rec, err := r.lookup(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.status != StatusRunning {
		return nil
	}
	rec.status = StatusKilled
	rec.cancel()
	return nil
}

// Wait blocks until the thread completes (or ctx is cancelled), returning
// its result bytes or its failure. The wait handle is consumed once the
// thread is observed complete: a second Wait (or Status) on the same id
// then fails with KindThreadNotFound. A Wait that instead returns because
// ctx was cancelled has not observed completion, so it leaves the record in
// place for a later Wait to consume.
func (r *Registry) Wait(ctx context.Context, id ThreadID) ([]byte, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-rec.done:
		rec.mu.Lock()
		killed := rec.status == StatusKilled
		result, taskErr := rec.result, rec.err
		rec.mu.Unlock()
		r.consume(id)
		if killed {
			return nil, herr.Silo(herr.KindThreadFailed, "", "thread was killed")
		}
		return result, taskErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// consume removes id's record, the same way Delete makes a ResourceTable
// handle never dereferenceable again.
func (r *Registry) consume(id ThreadID) {
	r.mu.Lock()
	delete(r.threads, id)
	r.mu.Unlock()
}

func (r *Registry) lookup(id ThreadID) (*record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.threads[id]
	if !ok {
		return nil, herr.Silo(herr.KindThreadNotFound, "", "thread not found: "+id.String())
	}
	return rec, nil
}
