package hoststore

import (
	"sync"

	"github.com/hayride-dev/hayride/herr"
)

// Handle is an opaque, per-Store integer identifying a value pushed into a
// ResourceTable. Handles are not forgeable: the only way to obtain one is
// Push, and a deleted handle is never reused.
type Handle uint64

// ResourceTable is a handle-indexed, heterogeneous owning table, scoped to
// exactly one Store: never shared across Stores, and requiring no locking
// at the cross-Store level; a mutex still guards concurrent access from
// within one Store's own capability calls.
type ResourceTable struct {
	mu     sync.Mutex
	next   Handle
	values map[Handle]any
}

// NewResourceTable constructs an empty table.
func NewResourceTable() *ResourceTable {
	return &ResourceTable{values: map[Handle]any{}}
}

// Push stores v and returns its handle.
func (t *ResourceTable) Push(v any) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	h := t.next
	t.values[h] = v
	return h
}

// Get returns the value at h without removing it.
func (t *ResourceTable) Get(h Handle) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.values[h]
	if !ok {
		return nil, herr.Core(herr.KindNotFound, "", "resource handle not found")
	}
	return v, nil
}

// Delete removes and returns the value at h. A second Delete of the same
// handle fails: deleted handles are never reused or dereferenceable again.
func (t *ResourceTable) Delete(h Handle) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.values[h]
	if !ok {
		return nil, herr.Core(herr.KindNotFound, "", "resource handle not found")
	}
	delete(t.values, h)
	return v, nil
}

// Len reports the number of live handles, for diagnostics and tests.
func (t *ResourceTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.values)
}
