// Package refs holds the per-run shared state of an assembly resolution:
// the declared-id registry and the queue of cross-references awaiting the
// finalize pass. Both are constructed per run, threaded explicitly, and
// discarded at run end.
package refs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bonzini/db4sphinx/internal/docmodel"
)

// DuplicateIDError reports a second declaration of an id within one
// assembly. It is recoverable: the first declaration stays authoritative.
type DuplicateIDError struct {
	ID        string
	FirstFile string
	File      string
	Line      int
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate id %q in %s (first declared in %s)", e.ID, e.File, e.FirstFile)
}

// Entry records where a declared id lives.
type Entry struct {
	ID   string
	File string
	Node *docmodel.Node
}

// IDRegistry maps declared ids to their owning nodes. It is safe for
// concurrent registration during the parallel per-file build phase.
type IDRegistry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// NewIDRegistry creates an empty registry for one run.
func NewIDRegistry() *IDRegistry {
	return &IDRegistry{entries: make(map[string]Entry)}
}

// Register records id as owned by node in file. A second registration of
// the same id returns DuplicateIDError and leaves the first entry intact.
func (r *IDRegistry) Register(id, file string, node *docmodel.Node, line int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if first, ok := r.entries[id]; ok {
		return &DuplicateIDError{ID: id, FirstFile: first.File, File: file, Line: line}
	}
	r.entries[id] = Entry{ID: id, File: file, Node: node}
	r.order = append(r.order, id)
	return nil
}

// Merge folds every entry of other into r in other's registration order.
// Conflicting ids keep r's entry authoritative; onConflict (if non-nil)
// receives the losing entry so the caller can annotate and report it.
func (r *IDRegistry) Merge(other *IDRegistry, onConflict func(Entry, *DuplicateIDError)) {
	if other == nil {
		return
	}
	other.mu.RLock()
	defer other.mu.RUnlock()
	for _, id := range other.order {
		e := other.entries[id]
		if err := r.Register(e.ID, e.File, e.Node, 0); err != nil {
			var dup *DuplicateIDError
			if errors.As(err, &dup) && onConflict != nil {
				onConflict(e, dup)
			}
		}
	}
}

// Lookup reports the entry for id, if registered.
func (r *IDRegistry) Lookup(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Len returns the number of registered ids.
func (r *IDRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Each calls fn for every entry in registration order.
func (r *IDRegistry) Each(fn func(Entry)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		fn(r.entries[id])
	}
}

// Pending is one cross-reference waiting for the finalize pass.
type Pending struct {
	Node     *docmodel.Node
	TargetID string
	File     string
	Line     int
}

// XrefQueue accumulates unresolved cross-references in encounter order.
// The queue is consumed exactly once, by the finalize pass.
type XrefQueue struct {
	mu       sync.Mutex
	items    []Pending
	consumed bool
}

// NewXrefQueue creates an empty queue for one run.
func NewXrefQueue() *XrefQueue {
	return &XrefQueue{}
}

// Add appends a pending reference. Adding after the queue was drained is a
// programming error.
func (q *XrefQueue) Add(p Pending) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.consumed {
		panic("refs: append to drained xref queue")
	}
	q.items = append(q.items, p)
}

// Len returns the number of queued references.
func (q *XrefQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain returns all queued references in order and empties the queue.
// A second drain returns nil.
func (q *XrefQueue) Drain() []Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.consumed {
		return nil
	}
	q.consumed = true
	items := q.items
	q.items = nil
	return items
}
