// Package service defines the universal request/response contract every
// leaf component in the kernel implements. A Service is shared by
// reference and invoked without mutable exclusion: any state it needs
// across calls must be interior-mutable or externally synchronised, since
// one Service instance serves many concurrent requests.
package service

import (
	"github.com/plabayo/rama-go/racontext"
)

// Service is the universal async request/response contract. Implementations
// must be safe for concurrent use: Serve may be called from many goroutines
// at once for the same Service value.
type Service[S, Req, Resp any] interface {
	Serve(ctx *racontext.Context[S], req Req) (Resp, error)
}

// ServiceFunc adapts an ordinary function of the full (ctx, req) arity to
// the Service interface.
type ServiceFunc[S, Req, Resp any] func(ctx *racontext.Context[S], req Req) (Resp, error)

func (f ServiceFunc[S, Req, Resp]) Serve(ctx *racontext.Context[S], req Req) (Resp, error) {
	return f(ctx, req)
}

// ServiceFuncNoCtx adapts a function that ignores the context.
type ServiceFuncNoCtx[S, Req, Resp any] func(req Req) (Resp, error)

func (f ServiceFuncNoCtx[S, Req, Resp]) Serve(_ *racontext.Context[S], req Req) (Resp, error) {
	return f(req)
}

// ServiceFuncNoReq adapts a function that ignores the request, useful for
// leaf services whose Req type is struct{} or similar.
type ServiceFuncNoReq[S, Req, Resp any] func(ctx *racontext.Context[S]) (Resp, error)

func (f ServiceFuncNoReq[S, Req, Resp]) Serve(ctx *racontext.Context[S], _ Req) (Resp, error) {
	return f(ctx)
}

// ServiceFuncBare adapts a function that ignores both context and request.
type ServiceFuncBare[S, Req, Resp any] func() (Resp, error)

func (f ServiceFuncBare[S, Req, Resp]) Serve(_ *racontext.Context[S], _ Req) (Resp, error) {
	return f()
}
