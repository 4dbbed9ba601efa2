// Package extensions provides a type-keyed heterogeneous map used to carry
// optional, middleware-produced data alongside a request, response, context
// or stream. At most one value is stored per concrete type: inserting a
// second value of the same type replaces the first.
package extensions

import (
	"fmt"
	"reflect"
	"sync"
)

// Extensions is a mapping from type identity to a value of that type. It is
// owned by whatever holds it (a Context, a Request, a Response, a Stream)
// and is safe for concurrent use.
type Extensions struct {
	mu   sync.RWMutex
	vals map[reflect.Type]any
}

// New returns an empty Extensions map.
func New() *Extensions {
	return &Extensions{}
}

// Set inserts v, keyed by its own type, replacing any previous value of the
// same type.
func Set[T any](e *Extensions, v T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vals == nil {
		e.vals = make(map[reflect.Type]any)
	}
	e.vals[typeOf[T]()] = v
}

// Get retrieves the value stored for type T, if any.
func Get[T any](e *Extensions) (T, bool) {
	var zero T
	if e == nil {
		return zero, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vals[typeOf[T]()]
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// MustGet retrieves the value stored for type T, panicking if absent. It is
// reserved for call sites that have already established the invariant that
// the value is present (e.g. a layer that always seeds it upstream).
func MustGet[T any](e *Extensions) T {
	v, ok := Get[T](e)
	if !ok {
		var zero T
		panic(fmt.Sprintf("extensions: no value of type %T present", zero))
	}
	return v
}

// Remove deletes the value stored for type T, if any, and reports whether
// one was present.
func Remove[T any](e *Extensions) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vals == nil {
		return false
	}
	t := typeOf[T]()
	if _, ok := e.vals[t]; !ok {
		return false
	}
	delete(e.vals, t)
	return true
}

// Len reports the number of distinct types currently stored.
func (e *Extensions) Len() int {
	if e == nil {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.vals)
}

// Clear removes every stored value.
func (e *Extensions) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vals = nil
}

// Clone returns a shallow value-copy of e: the two Extensions no longer
// share storage, but stored values themselves are not deep-copied.
func (e *Extensions) Clone() *Extensions {
	if e == nil {
		return New()
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	clone := &Extensions{vals: make(map[reflect.Type]any, len(e.vals))}
	for k, v := range e.vals {
		clone.vals[k] = v
	}
	return clone
}

// Extend merges other into e, with other's values winning on type conflict.
// It is used when a Matcher's capture scratchpad is committed into the live
// context after a successful match.
func (e *Extensions) Extend(other *Extensions) {
	if other == nil {
		return
	}
	other.mu.RLock()
	defer other.mu.RUnlock()
	if len(other.vals) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vals == nil {
		e.vals = make(map[reflect.Type]any, len(other.vals))
	}
	for k, v := range other.vals {
		e.vals[k] = v
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
