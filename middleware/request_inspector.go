package middleware

import (
	"github.com/plabayo/rama-go/layer"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/service"
)

// RequestInspector runs fn for its side effects (logging, metrics,
// tracing) before delegating to inner unchanged. Unlike MapResult it
// cannot alter the request or the eventual response.
func RequestInspector[S, Req, Resp any](fn func(ctx *racontext.Context[S], req Req)) layer.Layer[S, Req, Resp] {
	return layer.LayerFunc[S, Req, Resp](func(inner service.Service[S, Req, Resp]) service.Service[S, Req, Resp] {
		return service.ServiceFunc[S, Req, Resp](func(ctx *racontext.Context[S], req Req) (Resp, error) {
			fn(ctx, req)
			return inner.Serve(ctx, req)
		})
	})
}
