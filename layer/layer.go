// Package layer defines the Service -> Service transformer contract
// (middleware) and the composition rules for stacking layers.
//
// Layers compose left-to-right: the outermost declared layer is the
// outermost wrapper — it sees the request first and the response last.
// NewStack([a, b, c]).Layer(leaf) is observably equivalent to
// a.Layer(b.Layer(c.Layer(leaf))).
package layer

import (
	"github.com/plabayo/rama-go/service"
)

// Layer transforms an inner Service into a new Service that wraps it. A
// Layer must not retain a reference to inner beyond the returned Service.
type Layer[S, Req, Resp any] interface {
	Layer(inner service.Service[S, Req, Resp]) service.Service[S, Req, Resp]
}

// LayerFunc adapts an ordinary function to the Layer interface.
type LayerFunc[S, Req, Resp any] func(inner service.Service[S, Req, Resp]) service.Service[S, Req, Resp]

func (f LayerFunc[S, Req, Resp]) Layer(inner service.Service[S, Req, Resp]) service.Service[S, Req, Resp] {
	return f(inner)
}

// Identity is the identity Layer: Identity[S,Req,Resp]{}.Layer(s) == s.
type Identity[S, Req, Resp any] struct{}

func (Identity[S, Req, Resp]) Layer(inner service.Service[S, Req, Resp]) service.Service[S, Req, Resp] {
	return inner
}

// Stack is an ordered list of layers that is itself a Layer. An empty Stack
// is the identity layer. Layers are applied in declaration order so that
// Stack{a, b, c}.Layer(leaf) == a.Layer(b.Layer(c.Layer(leaf))): a is
// outermost.
type Stack[S, Req, Resp any] []Layer[S, Req, Resp]

// NewStack constructs a Stack from the given layers, outermost first.
func NewStack[S, Req, Resp any](layers ...Layer[S, Req, Resp]) Stack[S, Req, Resp] {
	return Stack[S, Req, Resp](layers)
}

func (st Stack[S, Req, Resp]) Layer(inner service.Service[S, Req, Resp]) service.Service[S, Req, Resp] {
	svc := inner
	for i := len(st) - 1; i >= 0; i-- {
		svc = st[i].Layer(svc)
	}
	return svc
}

// Chain composes two layers into one: Chain(a, b).Layer(s) ==
// a.Layer(b.Layer(s)), i.e. a is outermost.
func Chain[S, Req, Resp any](outer, inner Layer[S, Req, Resp]) Layer[S, Req, Resp] {
	return NewStack[S, Req, Resp](outer, inner)
}
