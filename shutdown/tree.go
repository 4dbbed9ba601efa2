package shutdown

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig configures the supervision tree's failure-backoff behaviour.
// Mirrors suture's own Spec fields so defaults stay obvious at call sites.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	Timeout          time.Duration
}

// DefaultTreeConfig returns suture's documented defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	}
}

// Tree is a thin, three-layer suture supervision tree — transport, protocol
// and application services each get their own branch so a crash in one
// layer doesn't take down the others. It is the fault-isolation mechanism
// the Listener/Accept kernel runs its per-connection tasks under.
type Tree struct {
	root      *suture.Supervisor
	transport *suture.Supervisor
	protocol  *suture.Supervisor
	app       *suture.Supervisor
}

// NewTree builds a supervision tree logging events through logger.
func NewTree(logger *slog.Logger, cfg TreeConfig) *Tree {
	if cfg.FailureThreshold == 0 {
		cfg = DefaultTreeConfig()
	}
	hook := (&sutureslog.Handler{Logger: logger}).MustHook()

	rootSpec := suture.Spec{
		EventHook:        hook,
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.Timeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.Timeout,
	}

	root := suture.New("rama", rootSpec)
	transport := suture.New("transport", childSpec)
	protocol := suture.New("protocol", childSpec)
	app := suture.New("application", childSpec)

	root.Add(transport)
	root.Add(protocol)
	root.Add(app)

	return &Tree{root: root, transport: transport, protocol: protocol, app: app}
}

// AddTransport registers svc (e.g. a Listener's accept loop) under the
// transport branch.
func (t *Tree) AddTransport(svc suture.Service) suture.ServiceToken {
	return t.transport.Add(svc)
}

// AddProtocol registers svc (e.g. a per-connection protocol handler) under
// the protocol branch.
func (t *Tree) AddProtocol(svc suture.Service) suture.ServiceToken {
	return t.protocol.Add(svc)
}

// AddApplication registers svc (e.g. a long-lived application service, a
// connection pool reaper) under the application branch.
func (t *Tree) AddApplication(svc suture.Service) suture.ServiceToken {
	return t.app.Add(svc)
}

// Serve starts the tree and blocks until ctx is cancelled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree in a background goroutine, returning a
// channel that receives the terminal error (or nil) once it stops.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// funcService adapts a plain function into a suture.Service, for tasks that
// don't otherwise need a named type.
type funcService struct {
	name string
	fn   func(ctx context.Context) error
}

func (f funcService) Serve(ctx context.Context) error {
	return f.fn(ctx)
}

func (f funcService) String() string {
	return f.name
}

// Func builds a suture.Service from a plain function, suitable for passing
// to AddTransport/AddProtocol/AddApplication.
func Func(name string, fn func(ctx context.Context) error) suture.Service {
	return funcService{name: name, fn: fn}
}
