// Package listener implements the accept kernel: it drives a bound
// endpoint, and for every accepted transport builds a fresh Context and
// invokes the configured root Service. The accept loop and every
// per-connection handler are supervised suture.Service instances registered
// with a shutdown.Tree, not bare goroutines: a panic or crash in one
// connection's handling is isolated and logged by the tree rather than
// taking down the listener or its siblings.
package listener

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/plabayo/rama-go/metrics"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/rerror"
	"github.com/plabayo/rama-go/service"
	"github.com/plabayo/rama-go/shutdown"
)

// executor adapts a *shutdown.Shutdown into a racontext.Executor: every
// spawned task is registered with its own guard, released from the barrier
// on exit. This is for ad hoc background work a Service implementation
// spawns mid-request (a speculative prefetch, a best-effort cache
// refresh) — the connection's own top-level supervision runs through the
// shutdown.Tree instead, see handle.
type executor struct {
	sd *shutdown.Shutdown
}

func (e executor) Spawn(fn func(ctx context.Context)) {
	g := e.sd.Guard()
	go func() {
		defer g.Done()
		fn(context.Background())
	}()
}

// ctxGuard adapts a context.Context's own cancellation into a
// racontext.Guard, so a per-connection suture service's ctx (derived from
// the shutdown.Tree) drives the request Context's Cancelled signal.
type ctxGuard struct {
	ctx context.Context
}

func (g ctxGuard) Cancelled() <-chan struct{} {
	return g.ctx.Done()
}

// Done is a no-op: the owning suture service leaves the tree by returning.
func (g ctxGuard) Done() {}

// Config configures a Listener's accept loop.
type Config struct {
	// AcceptErrorBackoff is how long to sleep after a non-fatal accept
	// error before retrying, avoiding a hot loop under resource exhaustion
	// (e.g. EMFILE).
	AcceptErrorBackoff time.Duration
	Logger             *slog.Logger
	// Metrics, if set, is fed accept/connection counters. Nil disables
	// instrumentation.
	Metrics *metrics.Registry
	// Name labels this listener's metrics series (e.g. "public", "admin").
	Name string
}

func (c Config) withDefaults() Config {
	if c.AcceptErrorBackoff <= 0 {
		c.AcceptErrorBackoff = 5 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Name == "" {
		c.Name = "default"
	}
	return c
}

// Listener drives net.Listener.Accept, constructing a fresh Context[S] per
// connection and invoking root for each. Listener implements suture.Service
// so it can be registered directly with a shutdown.Tree's transport branch
// via AddTransport.
type Listener[S any] struct {
	ln     net.Listener
	state  S
	root   service.Service[S, net.Conn, struct{}]
	sd     *shutdown.Shutdown
	tree   *shutdown.Tree
	config Config
}

// New builds a Listener bound to ln, serving root for every accepted
// connection with a Context carrying state. The caller must register the
// result with tree.AddTransport for the accept loop to actually run; tree
// is also where every accepted connection's handler task is registered
// (on the protocol branch), since a single Listener may in principle be
// reused by more than one root composition.
func New[S any](ln net.Listener, state S, root service.Service[S, net.Conn, struct{}], sd *shutdown.Shutdown, tree *shutdown.Tree, cfg Config) *Listener[S] {
	return &Listener[S]{
		ln:     ln,
		state:  state,
		root:   root,
		sd:     sd,
		tree:   tree,
		config: cfg.withDefaults(),
	}
}

// Serve implements suture.Service: it runs the accept loop until ctx is
// cancelled by the owning shutdown.Tree, or a fatal accept error occurs,
// registering every accepted connection as its own supervised task on the
// tree's protocol branch. It always closes the bound net.Listener before
// returning.
func (l *Listener[S]) Serve(ctx context.Context) error {
	defer l.ln.Close()

	ex := executor{sd: l.sd}

	for {
		type acceptResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan acceptResult, 1)
		go func() {
			conn, err := l.ln.Accept()
			resultCh <- acceptResult{conn, err}
		}()

		select {
		case <-ctx.Done():
			return nil
		case res := <-resultCh:
			if res.err != nil {
				if errors.Is(res.err, net.ErrClosed) {
					return suture.ErrDoNotRestart
				}
				if isFatalAcceptError(res.err) {
					return rerror.Wrap(rerror.KindTransport, res.err, "listener accept failed fatally")
				}
				if l.config.Metrics != nil {
					l.config.Metrics.AcceptErrorsTotal.Inc()
				}
				l.config.Logger.Warn("accept error, continuing", "error", res.err)
				time.Sleep(l.config.AcceptErrorBackoff)
				continue
			}
			if l.config.Metrics != nil {
				l.config.Metrics.AcceptsTotal.WithLabelValues(l.config.Name).Inc()
			}
			l.handle(ex, res.conn)
		}
	}
}

// String implements fmt.Stringer so suture/sutureslog can identify this
// service in log and event output.
func (l *Listener[S]) String() string {
	return "listener:" + l.config.Name
}

// handle registers conn's handling as its own supervised suture.Service on
// the tree's protocol branch, rather than a bare goroutine: a panic inside
// root.Serve is isolated and reported through the tree's event hook instead
// of crashing the accept loop.
func (l *Listener[S]) handle(ex executor, conn net.Conn) {
	if l.config.Metrics != nil {
		l.config.Metrics.ConnectionsActive.Inc()
	}
	name := "conn:" + conn.RemoteAddr().String()
	l.tree.AddProtocol(shutdown.Func(name, func(ctx context.Context) error {
		defer conn.Close()
		if l.config.Metrics != nil {
			defer l.config.Metrics.ConnectionsActive.Dec()
		}

		child := racontext.New(context.Background(), l.state).
			WithExecutor(ex).
			WithGuard(ctxGuard{ctx})

		if _, err := l.root.Serve(child, conn); err != nil {
			l.config.Logger.Warn("connection handler returned error", "error", err)
		}
		return suture.ErrDoNotRestart
	}))
}

// isFatalAcceptError classifies an Accept error as fatal (listener socket
// revoked, address unavailable) vs retryable (transient resource
// exhaustion: EMFILE, ENFILE). A closed-listener error is not fatal: Serve
// treats it as the normal shutdown path and returns without a restart.
func isFatalAcceptError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return false
	}
	if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return !netErr.Timeout()
	}
	return true
}

var _ suture.Service = (*Listener[struct{}])(nil)
