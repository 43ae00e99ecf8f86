// Package procs implements the Silo's auxiliary external-process API:
// spawn/wait/status/kill for OS processes, the same four-operation shape
// as silo.Registry but over *os/exec.Cmd instead of an in-process
// goroutine.
package procs

import (
	"context"
	"os/exec"
	"sync"

	"github.com/google/uuid"

	"github.com/hayride-dev/hayride/herr"
)

// ProcessID uniquely identifies one spawned OS process within a Registry.
type ProcessID uuid.UUID

func (id ProcessID) String() string { return uuid.UUID(id).String() }

// Status mirrors silo.Status for OS processes.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusKilled    Status = "killed"
)

type process struct {
	mu     sync.Mutex
	status Status
	cmd    *exec.Cmd
	done   chan struct{}
	err    error
}

// Registry tracks spawned OS processes the same way silo.Registry tracks
// in-process threads.
type Registry struct {
	mu        sync.RWMutex
	processes map[ProcessID]*process
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{processes: map[ProcessID]*process{}}
}

// Spawn starts name with args as a child OS process and returns its
// ProcessID immediately.
func (r *Registry) Spawn(ctx context.Context, name string, args ...string) (ProcessID, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return ProcessID{}, herr.NewWithCause(herr.CapSilo, herr.KindFailedToSpawn, "", "failed to start process", err)
	}

	id := ProcessID(uuid.New())
	p := &process{status: StatusRunning, cmd: cmd, done: make(chan struct{})}

	r.mu.Lock()
	r.processes[id] = p
	r.mu.Unlock()

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.status == StatusKilled {
			close(p.done)
			return
		}
		p.err = err
		if err != nil {
			p.status = StatusFailed
		} else {
			p.status = StatusCompleted
		}
		close(p.done)
	}()

	return id, nil
}

// Status reports a process's current lifecycle state.
func (r *Registry) Status(id ProcessID) (Status, error) {
	p, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, nil
}

// Kill sends the process's termination signal and marks it Killed.
func (r *Registry) Kill(id ProcessID) error {
	p, err := r.lookup(id)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusRunning {
		return nil
	}
	p.status = StatusKilled
	if p.cmd.Process != nil {
		if killErr := p.cmd.Process.Kill(); killErr != nil {
			return herr.NewWithCause(herr.CapSilo, herr.KindThreadFailed, "", "failed to kill process", killErr)
		}
	}
	return nil
}

// Wait blocks until the process exits (or ctx is cancelled).
func (r *Registry) Wait(ctx context.Context, id ProcessID) error {
	p, err := r.lookup(id)
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.status == StatusKilled {
			return herr.Silo(herr.KindThreadFailed, "", "process was killed")
		}
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) lookup(id ProcessID) (*process, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processes[id]
	if !ok {
		return nil, herr.Silo(herr.KindThreadNotFound, "", "process not found: "+id.String())
	}
	return p, nil
}
