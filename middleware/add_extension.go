package middleware

import (
	"github.com/plabayo/rama-go/extensions"
	"github.com/plabayo/rama-go/layer"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/service"
)

// AddExtension deposits a fixed value of type T into the request's
// Context.Extensions before invoking inner, e.g. to pin a UserId looked up
// once at the edge of a stack so every downstream service can read it
// without re-deriving it.
func AddExtension[S, Req, Resp, T any](value T) layer.Layer[S, Req, Resp] {
	return layer.LayerFunc[S, Req, Resp](func(inner service.Service[S, Req, Resp]) service.Service[S, Req, Resp] {
		return service.ServiceFunc[S, Req, Resp](func(ctx *racontext.Context[S], req Req) (Resp, error) {
			extensions.Set(ctx.Extensions(), value)
			return inner.Serve(ctx, req)
		})
	})
}

// AddExtensionFunc is like AddExtension but derives the value from the
// request at call time, e.g. to tag the Context with a per-request
// correlation id computed from req.
func AddExtensionFunc[S, Req, Resp, T any](fn func(ctx *racontext.Context[S], req Req) T) layer.Layer[S, Req, Resp] {
	return layer.LayerFunc[S, Req, Resp](func(inner service.Service[S, Req, Resp]) service.Service[S, Req, Resp] {
		return service.ServiceFunc[S, Req, Resp](func(ctx *racontext.Context[S], req Req) (Resp, error) {
			extensions.Set(ctx.Extensions(), fn(ctx, req))
			return inner.Serve(ctx, req)
		})
	})
}
