package middleware

import (
	"github.com/plabayo/rama-go/layer"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/service"
)

// MapResult transforms the (Resp, error) pair returned by inner through fn,
// e.g. to normalize upstream errors into the kernel's error taxonomy or to
// redact a response body before it propagates further up the stack.
func MapResult[S, Req, Resp any](fn func(Resp, error) (Resp, error)) layer.Layer[S, Req, Resp] {
	return layer.LayerFunc[S, Req, Resp](func(inner service.Service[S, Req, Resp]) service.Service[S, Req, Resp] {
		return service.ServiceFunc[S, Req, Resp](func(ctx *racontext.Context[S], req Req) (Resp, error) {
			resp, err := inner.Serve(ctx, req)
			return fn(resp, err)
		})
	})
}
