// Package middleware implements the standard concurrency and control-flow
// primitives every protocol handler in the kernel is built from: Timeout,
// Limit, HijackLayer, MapResult, AddExtension, RequestInspector, Retry (with
// Budget), and FollowRedirect.
package middleware

import (
	"time"

	"github.com/plabayo/rama-go/layer"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/rerror"
	"github.com/plabayo/rama-go/service"
)

// Timeout races an inner Service against a timer. On expiry it returns a
// KindTimeout *rerror.Error rather than waiting for the inner call to ever
// return. A zero or negative duration degenerates to pass-through: inner
// is returned unwrapped.
func Timeout[S, Req, Resp any](d time.Duration) layer.Layer[S, Req, Resp] {
	return layer.LayerFunc[S, Req, Resp](func(inner service.Service[S, Req, Resp]) service.Service[S, Req, Resp] {
		if d <= 0 {
			return inner
		}
		return service.ServiceFunc[S, Req, Resp](func(ctx *racontext.Context[S], req Req) (Resp, error) {
			return runWithTimeout(ctx, inner, req, d)
		})
	})
}

func runWithTimeout[S, Req, Resp any](ctx *racontext.Context[S], inner service.Service[S, Req, Resp], req Req, d time.Duration) (Resp, error) {
	timedCtx, cancel := racontext.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		resp Resp
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		resp, err := inner.Serve(timedCtx, req)
		resultCh <- result{resp, err}
	}()

	select {
	case r := <-resultCh:
		return r.resp, r.err
	case <-timedCtx.Done():
		var zero Resp
		return zero, rerror.New(rerror.KindTimeout, "deadline elapsed").WithField("timeout", d)
	}
}
