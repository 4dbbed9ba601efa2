// Package connector implements the Connector sub-kernel: a Connector is a
// Service whose response is an EstablishedClientConnection, produced by
// composing a transport dialer with optional proxy, security, and
// application-adapter stages in the fixed conceptual order the kernel
// requires (transport, proxy wrappers, TLS, application adapter).
package connector

import (
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/service"
)

// EstablishedClientConnection pairs the (possibly request-adapting-mutated)
// request with the freshly acquired connection C. C is typically a
// net.Conn, *tls.Conn, or an application-level Service wrapping one.
type EstablishedClientConnection[C, Req any] struct {
	Conn C
	Req  Req
}

// TryRefIntoTransportContext produces the canonical, authoritative target
// description for req. Connector stages must derive their dial target from
// this rather than re-deriving it from the request's own shape.
type TryRefIntoTransportContext[S, Req any] interface {
	TryRefIntoTransportContext(ctx *racontext.Context[S], req Req) (racontext.TransportContext, error)
}

// TryRefIntoTransportContextFunc adapts a function to the interface.
type TryRefIntoTransportContextFunc[S, Req any] func(ctx *racontext.Context[S], req Req) (racontext.TransportContext, error)

func (f TryRefIntoTransportContextFunc[S, Req]) TryRefIntoTransportContext(ctx *racontext.Context[S], req Req) (racontext.TransportContext, error) {
	return f(ctx, req)
}

// Connector is a Service specialisation whose response establishes an
// outbound connection rather than completing the request in place.
type Connector[S, Req, C any] = service.Service[S, Req, EstablishedClientConnection[C, Req]]

// Stage adapts a connector producing connections of type In into one
// producing connections of type Out, by wrapping the inner connection (a
// TLS handshake over a raw net.Conn, a proxy CONNECT exchange before a raw
// dial, an HTTP/1.1 adapter over a secured stream). Stages compose with
// Chain in the fixed transport → proxy → security → application order.
type Stage[S, Req, In, Out any] interface {
	Establish(ctx *racontext.Context[S], prev EstablishedClientConnection[In, Req]) (EstablishedClientConnection[Out, Req], error)
}

// StageFunc adapts a function to Stage.
type StageFunc[S, Req, In, Out any] func(ctx *racontext.Context[S], prev EstablishedClientConnection[In, Req]) (EstablishedClientConnection[Out, Req], error)

func (f StageFunc[S, Req, In, Out]) Establish(ctx *racontext.Context[S], prev EstablishedClientConnection[In, Req]) (EstablishedClientConnection[Out, Req], error) {
	return f(ctx, prev)
}

// Chain composes a base Connector[S,Req,In] with a Stage[S,Req,In,Out] into
// a Connector[S,Req,Out], applying the stage to whatever the base
// establishes. This is how the kernel's transport/proxy/security/
// application layers are conceptually nested: Chain(Chain(Chain(tcp,
// socks5), tls), http1).
func Chain[S, Req, In, Out any](base Connector[S, Req, In], stage Stage[S, Req, In, Out]) Connector[S, Req, Out] {
	return service.ServiceFunc[S, Req, EstablishedClientConnection[Out, Req]](func(ctx *racontext.Context[S], req Req) (EstablishedClientConnection[Out, Req], error) {
		var zero EstablishedClientConnection[Out, Req]
		established, err := base.Serve(ctx, req)
		if err != nil {
			return zero, err
		}
		return stage.Establish(ctx, established)
	})
}
