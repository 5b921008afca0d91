// ABOUTME: WorkingMemory holds the live facts of one session behind stable handles
// ABOUTME: Enforces at most one live fact per (kind, key) and iterates in assertion order
package engine

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/harper/dermacheck/internal/models"
)

// Handle identifies an asserted fact. Handles are never reused within a memory.
type Handle int64

// Entry pairs a fact with its handle
type Entry struct {
	Handle Handle
	Fact   models.Fact
}

var (
	ErrNilFact       = errors.New("cannot assert nil fact")
	ErrUnknownHandle = errors.New("unknown fact handle")
)

// InvariantError reports a second live fact for an occupied (kind, key) slot
type InvariantError struct {
	Kind     models.FactKind
	Key      string
	Existing Handle
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated: %s %q already live as handle %d", e.Kind, e.Key, e.Existing)
}

type slot struct {
	kind models.FactKind
	key  string
}

// WorkingMemory is not safe for concurrent use
type WorkingMemory struct {
	next  Handle
	facts map[Handle]models.Fact
	order []Handle
	index map[slot]Handle
}

// NewWorkingMemory creates an empty memory
func NewWorkingMemory() *WorkingMemory {
	return &WorkingMemory{
		next:  1,
		facts: make(map[Handle]models.Fact),
		index: make(map[slot]Handle),
	}
}

// Assert adds a fact. Re-asserting an identical live fact returns its existing
// handle; asserting a different fact into an occupied slot is an InvariantError.
func (wm *WorkingMemory) Assert(f models.Fact) (Handle, error) {
	if f == nil {
		return 0, ErrNilFact
	}
	s := slot{kind: f.Kind(), key: f.Key()}
	if h, ok := wm.index[s]; ok {
		if reflect.DeepEqual(wm.facts[h], f) {
			return h, nil
		}
		return 0, &InvariantError{Kind: s.kind, Key: s.key, Existing: h}
	}

	h := wm.next
	wm.next++
	wm.facts[h] = f
	wm.index[s] = h
	wm.order = append(wm.order, h)
	return h, nil
}

// Retract removes a fact. The handle is invalid afterwards.
func (wm *WorkingMemory) Retract(h Handle) error {
	f, ok := wm.facts[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	delete(wm.facts, h)
	delete(wm.index, slot{kind: f.Kind(), key: f.Key()})
	for i, oh := range wm.order {
		if oh == h {
			wm.order = append(wm.order[:i:i], wm.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the fact for a handle
func (wm *WorkingMemory) Get(h Handle) (models.Fact, bool) {
	f, ok := wm.facts[h]
	return f, ok
}

// Lookup finds the live fact in a (kind, key) slot
func (wm *WorkingMemory) Lookup(kind models.FactKind, key string) (Entry, bool) {
	h, ok := wm.index[slot{kind: kind, key: key}]
	if !ok {
		return Entry{}, false
	}
	return Entry{Handle: h, Fact: wm.facts[h]}, true
}

// Facts returns a snapshot of live facts in assertion order, optionally filtered
// by kind. Mutating the memory while ranging over the result is safe.
func (wm *WorkingMemory) Facts(kinds ...models.FactKind) []Entry {
	out := make([]Entry, 0, len(wm.order))
	for _, h := range wm.order {
		f := wm.facts[h]
		if len(kinds) > 0 && !hasKind(kinds, f.Kind()) {
			continue
		}
		out = append(out, Entry{Handle: h, Fact: f})
	}
	return out
}

// Exists reports whether any live fact satisfies pred
func (wm *WorkingMemory) Exists(pred func(models.Fact) bool) bool {
	for _, h := range wm.order {
		if pred(wm.facts[h]) {
			return true
		}
	}
	return false
}

// Len returns the number of live facts
func (wm *WorkingMemory) Len() int {
	return len(wm.order)
}

// Verify rescans the memory for duplicate (kind, key) slots
func (wm *WorkingMemory) Verify() error {
	seen := make(map[slot]Handle, len(wm.order))
	for _, h := range wm.order {
		f := wm.facts[h]
		s := slot{kind: f.Kind(), key: f.Key()}
		if prev, ok := seen[s]; ok {
			return &InvariantError{Kind: s.kind, Key: s.key, Existing: prev}
		}
		seen[s] = h
	}
	return nil
}

func hasKind(kinds []models.FactKind, k models.FactKind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}
