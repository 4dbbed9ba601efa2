// Package racontext implements the per-request Context carrier described in
// the kernel specification: typed, process-wide state, a per-request
// Extensions scratchpad, an executor handle for spawning cooperating tasks,
// and an optional shutdown subscription. It embeds the standard library's
// context.Context rather than reinventing cancellation and deadlines — the
// spec's Context<S> is a generalization of exactly that idiom over a typed
// state S.
package racontext

import (
	"context"
	"time"

	"github.com/plabayo/rama-go/extensions"
)

// Executor spawns a function as a task bound to the same shutdown scope as
// the spawning Context. Implementations (see package shutdown) register the
// spawned task as a participant in the graceful-shutdown barrier.
type Executor interface {
	Spawn(fn func(ctx context.Context))
}

// Guard is the minimal cancellation-subscription contract a Context needs
// from a shutdown coordinator. It is satisfied structurally by
// *shutdown.Guard so that this package never has to import shutdown.
type Guard interface {
	// Cancelled reports when graceful shutdown has been triggered.
	Cancelled() <-chan struct{}
	// Done marks this guard's task as finished, releasing it from the
	// shutdown barrier. Safe to call more than once.
	Done()
}

// noopExecutor spawns directly onto a new goroutine, outside any shutdown
// scope. It is the default for contexts built without an explicit executor
// (tests, one-off scripts).
type noopExecutor struct{}

func (noopExecutor) Spawn(fn func(ctx context.Context)) {
	go fn(context.Background())
}

// Context is the per-request carrier threaded through every Service call.
// It is cheap to clone: State is shared by reference (callers are expected
// to provide a reference-counted or otherwise clone-cheap S), Extensions
// are value-copied on Clone, and Executor is a handle.
type Context[S any] struct {
	context.Context

	state      S
	ext        *extensions.Extensions
	executor   Executor
	guard      Guard
}

// New builds a root Context from a parent context.Context and a
// process-wide state value. State is fixed for the lifetime of this
// pipeline; changing it requires StateTransform.
func New[S any](parent context.Context, state S) *Context[S] {
	if parent == nil {
		parent = context.Background()
	}
	return &Context[S]{
		Context:  parent,
		state:    state,
		ext:      extensions.New(),
		executor: noopExecutor{},
	}
}

// State returns the process-wide state carried by this context.
func (c *Context[S]) State() S {
	return c.state
}

// Extensions returns the per-request extensions scratchpad. It is never
// nil.
func (c *Context[S]) Extensions() *extensions.Extensions {
	return c.ext
}

// Executor returns the handle used to spawn cooperating tasks bound to the
// same shutdown scope as this context.
func (c *Context[S]) Executor() Executor {
	return c.executor
}

// WithExecutor returns a copy of c using the given executor for subsequent
// spawns.
func (c *Context[S]) WithExecutor(ex Executor) *Context[S] {
	clone := c.shallowClone()
	clone.executor = ex
	return clone
}

// WithGuard returns a copy of c carrying the given shutdown guard
// subscription.
func (c *Context[S]) WithGuard(g Guard) *Context[S] {
	clone := c.shallowClone()
	clone.guard = g
	return clone
}

// Guard returns the shutdown-cancellation subscription for this context, or
// nil if none was attached (the context is then not part of any shutdown
// barrier).
func (c *Context[S]) Guard() Guard {
	return c.guard
}

// Cancelled returns a channel that closes when graceful shutdown has been
// triggered, or a nil (never-ready) channel if no guard is attached.
func (c *Context[S]) Cancelled() <-chan struct{} {
	if c.guard == nil {
		return nil
	}
	return c.guard.Cancelled()
}

// Clone returns a copy of c suitable for handing to a spawned sub-task: it
// shares the same state (by reference/value per S's own semantics) but has
// independently value-copied extensions, so mutations in the clone are not
// visible to the parent and vice versa.
func (c *Context[S]) Clone() *Context[S] {
	clone := c.shallowClone()
	clone.ext = c.ext.Clone()
	return clone
}

func (c *Context[S]) shallowClone() *Context[S] {
	return &Context[S]{
		Context:  c.Context,
		state:    c.state,
		ext:      c.ext,
		executor: c.executor,
		guard:    c.guard,
	}
}

// WithTimeout returns a derived Context whose embedded context.Context
// carries the given timeout, alongside a cancel func the caller must invoke
// to release resources.
func WithTimeout[S any](c *Context[S], d time.Duration) (*Context[S], context.CancelFunc) {
	inner, cancel := context.WithTimeout(c.Context, d)
	clone := c.shallowClone()
	clone.Context = inner
	return clone, cancel
}

// WithCancel returns a derived Context with its own cancellation, alongside
// the cancel func.
func WithCancel[S any](c *Context[S]) (*Context[S], context.CancelFunc) {
	inner, cancel := context.WithCancel(c.Context)
	clone := c.shallowClone()
	clone.Context = inner
	return clone, cancel
}

// StateTransform returns a new Context parameterized by a different state
// type S2, computed from the current state by fn. It fails if fn does, and
// otherwise carries over Extensions, Executor and Guard unchanged — only
// State and its type change.
func StateTransform[S, S2 any](c *Context[S], fn func(S) (S2, error)) (*Context[S2], error) {
	s2, err := fn(c.state)
	if err != nil {
		return nil, err
	}
	return &Context[S2]{
		Context:  c.Context,
		state:    s2,
		ext:      c.ext,
		executor: c.executor,
		guard:    c.guard,
	}, nil
}

// Spawn runs fn as a task bound to c's executor (and thus to c's shutdown
// scope, if any). The spawned context inherits c's state and a fresh,
// value-copied set of extensions.
func Spawn[S any](c *Context[S], fn func(ctx *Context[S])) {
	child := c.Clone()
	c.executor.Spawn(func(goCtx context.Context) {
		child.Context = goCtx
		fn(child)
	})
}
