// Command ramad wires the kernel into a single runnable process: it loads
// configuration, builds the ambient logging/metrics stack, binds a
// listener, and serves a small HTTP application stack demonstrating the
// standard middleware (Timeout, Limit, RequestInspector) over the
// httpkit application adapter. It is a demo harness, not a product
// surface — it does not implement the echo/ip/serve/fs/stunnel/resolve/
// send CLI commands of the original tool.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/plabayo/rama-go/config"
	"github.com/plabayo/rama-go/httpkit"
	"github.com/plabayo/rama-go/layer"
	"github.com/plabayo/rama-go/listener"
	"github.com/plabayo/rama-go/logging"
	"github.com/plabayo/rama-go/metrics"
	"github.com/plabayo/rama-go/middleware"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/service"
	"github.com/plabayo/rama-go/shutdown"
	"github.com/plabayo/rama-go/transport/tcp"
)

type appState struct {
	metrics *metrics.Registry
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath, "RAMAD_")
	if err != nil {
		panic(err)
	}

	logger := logging.Default(cfg.LogLevel)
	reg := metrics.New("ramad")

	ln, err := tcp.Listen(cfg.Listen)
	if err != nil {
		logger.Fatal().Err(err).Str("listen", cfg.Listen).Msg("bind listener")
	}
	logger.Info().Str("listen", cfg.Listen).Msg("ramad listening")

	sd := shutdown.New(context.Background())
	treeCfg := shutdown.DefaultTreeConfig()
	if d, err := time.ParseDuration(cfg.ShutdownTimeout); err == nil {
		treeCfg.Timeout = d
	}
	tree := shutdown.NewTree(slog.Default(), treeCfg)
	state := appState{metrics: reg}

	root := buildRootService(state, logger)
	l := listener.New[appState](ln, state, root, sd, tree, listener.Config{
		Metrics: reg,
		Name:    "public",
	})
	tree.AddTransport(l)

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Listen, reg, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil {
		logger.Error().Err(err).Msg("supervision tree exited")
	}
}

func serveMetrics(addr string, reg *metrics.Registry, logger zerolog.Logger) {
	if err := http.ListenAndServe(addr, reg.Handler()); err != nil {
		logger.Error().Err(err).Msg("metrics server exited")
	}
}

// buildRootService assembles the demo application: RequestInspector,
// Timeout and Limit, in that order (outermost first), wrapped around an
// httpkit.ConnService serving a single handler.
func buildRootService(state appState, logger zerolog.Logger) service.Service[appState, net.Conn, struct{}] {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ramad\n"))
	})

	router := httpkit.NewRouter(httpkit.RouterConfig{})
	router.Get("/inspect", httpkit.InspectHandler())
	router.Post("/echo", httpkit.EchoHandler())
	router.Get("/*", handler.ServeHTTP)

	inner := httpkit.ConnService[appState](router)

	stack := layer.NewStack[appState, net.Conn, struct{}](
		middleware.RequestInspector[appState, net.Conn, struct{}](func(_ *racontext.Context[appState], conn net.Conn) {
			logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")
		}),
		middleware.Timeout[appState, net.Conn, struct{}](30*time.Second),
		middleware.Limit[appState, net.Conn, struct{}](middleware.NewMaxPolicy(1024),
			middleware.WithLimitMetrics(state.metrics, "public")),
	)
	return stack.Layer(inner)
}
