// Package httpkit is the HTTP/1.1 application adapter: it turns an
// established connection into something net/http can drive, and supplies
// the standard chi-based router, CORS, and rate-limiting middleware plus a
// family of domain Matchers (path, method, header, socket address, HTTP
// version) used by routers/firewalls/hijackers built on top of it.
package httpkit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/service"
)

// ConnService adapts an http.Handler into a service.Service[S, net.Conn,
// struct{}] suitable for a listener.Listener's root Service: it drives
// exactly one connection through net/http's HTTP/1.1 server loop (which
// may itself serve multiple keep-alive requests on that connection) and
// returns once the connection is closed.
func ConnService[S any](handler http.Handler) service.Service[S, net.Conn, struct{}] {
	return service.ServiceFunc[S, net.Conn, struct{}](func(ctx *racontext.Context[S], conn net.Conn) (struct{}, error) {
		ln := &singleConnListener{conn: conn, done: make(chan struct{})}
		server := &http.Server{
			Handler:           withTransportContext(ctx, handler),
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			BaseContext: func(net.Listener) context.Context {
				return ctx
			},
			ConnState: func(_ net.Conn, state http.ConnState) {
				if state == http.StateClosed || state == http.StateHijacked {
					ln.Close()
				}
			},
		}
		err := server.Serve(ln)
		if err == http.ErrServerClosed || errors.Is(err, net.ErrClosed) {
			err = nil
		}
		return struct{}{}, err
	})
}

// withTransportContext makes the racontext.Context[S] that produced this
// connection reachable from inside ordinary http.Handlers via the
// request's own context.Context, so handlers can type-assert it back to
// *racontext.Context[S] to recover extensions without a second parallel
// context tree.
func withTransportContext[S any](parent *racontext.Context[S], handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r.WithContext(parent))
	})
}

// singleConnListener implements net.Listener over a single, already
// established net.Conn, so net/http's Serve loop (built around Accept) can
// drive it. Accept is called exactly once; every subsequent call blocks
// until Close, returning net.ErrClosed — matching how http.Server behaves
// once it has consumed the one connection it will ever see.
type singleConnListener struct {
	conn net.Conn
	once sync.Once
	done chan struct{}
}

func (l *singleConnListener) Accept() (net.Conn, error) {
	var conn net.Conn
	l.once.Do(func() { conn = l.conn })
	if conn != nil {
		return conn, nil
	}
	<-l.done
	return nil, net.ErrClosed
}

func (l *singleConnListener) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}

func (l *singleConnListener) Addr() net.Addr { return l.conn.LocalAddr() }

// DefaultReadHeaderTimeout is the http.Server.ReadHeaderTimeout applied by
// ConnService, guarding against slow-header-write resource exhaustion.
const DefaultReadHeaderTimeout = 10 * time.Second

// InspectBody is the JSON shape InspectHandler reports for a request.
type InspectBody struct {
	Method        string              `json:"method"`
	Path          string              `json:"path"`
	RemoteAddr    string              `json:"remote_addr"`
	Proto         string              `json:"proto"`
	Header        map[string][]string `json:"header"`
	ContentLength int64               `json:"content_length"`
}

// InspectHandler reports the inbound request's own shape back to the
// caller as JSON, encoded with goccy/go-json rather than encoding/json —
// a debugging aid mirroring rama's own echo/inspect commands.
func InspectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := InspectBody{
			Method:        r.Method,
			Path:          r.URL.Path,
			RemoteAddr:    r.RemoteAddr,
			Proto:         r.Proto,
			Header:        map[string][]string(r.Header),
			ContentLength: r.ContentLength,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// EchoHandler reads r's JSON body into an arbitrary value and writes it
// back unchanged, encoded with goccy/go-json. A malformed body yields a
// 400 with the decode error as its JSON-encoded message.
func EchoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}
}
