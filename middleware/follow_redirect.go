package middleware

import (
	"github.com/plabayo/rama-go/layer"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/rerror"
	"github.com/plabayo/rama-go/service"
)

// Redirect describes a single response-driven redirection: whether resp is
// a redirect at all, and if so, how to derive the next request from it.
type Redirect[Req, Resp any] interface {
	// IsRedirect inspects resp and reports whether it demands a follow-up
	// request, returning the request to issue next.
	IsRedirect(resp Resp) (next Req, ok bool)
}

// RedirectFunc adapts a function to Redirect.
type RedirectFunc[Req, Resp any] func(resp Resp) (Req, bool)

func (f RedirectFunc[Req, Resp]) IsRedirect(resp Resp) (Req, bool) {
	return f(resp)
}

// FollowRedirect re-issues the request through inner whenever the response
// is classified as a redirect by r, up to max hops, returning a Protocol
// error if the chain runs past the limit (mirroring a browser's "too many
// redirects" failure).
func FollowRedirect[S, Req, Resp any](r Redirect[Req, Resp], max int) layer.Layer[S, Req, Resp] {
	return layer.LayerFunc[S, Req, Resp](func(inner service.Service[S, Req, Resp]) service.Service[S, Req, Resp] {
		return service.ServiceFunc[S, Req, Resp](func(ctx *racontext.Context[S], req Req) (Resp, error) {
			current := req
			for hops := 0; ; hops++ {
				resp, err := inner.Serve(ctx, current)
				if err != nil {
					return resp, err
				}
				next, ok := r.IsRedirect(resp)
				if !ok {
					return resp, nil
				}
				if hops >= max {
					return resp, rerror.New(rerror.KindProtocol, "too many redirects").WithField("max", max)
				}
				current = next
			}
		})
	})
}
