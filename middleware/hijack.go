package middleware

import (
	"github.com/plabayo/rama-go/extensions"
	"github.com/plabayo/rama-go/layer"
	"github.com/plabayo/rama-go/matcher"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/service"
)

// HijackLayer routes a request to alt instead of the wrapped inner service
// whenever m matches. Any captures the matcher deposits are merged into the
// request's Context.Extensions before alt is invoked, mirroring how a
// matched route's captured groups (a path parameter, a SNI host) become
// visible to the service that ends up handling it.
func HijackLayer[S, Req, Resp any](m matcher.Matcher[S, Req], alt service.Service[S, Req, Resp]) layer.Layer[S, Req, Resp] {
	return layer.LayerFunc[S, Req, Resp](func(inner service.Service[S, Req, Resp]) service.Service[S, Req, Resp] {
		return service.ServiceFunc[S, Req, Resp](func(ctx *racontext.Context[S], req Req) (Resp, error) {
			capture := extensions.New()
			if m.Matches(capture, ctx, req) {
				ctx.Extensions().Extend(capture)
				return alt.Serve(ctx, req)
			}
			return inner.Serve(ctx, req)
		})
	})
}
