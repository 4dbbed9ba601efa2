package connector

import (
	"context"
	"net"
	"time"

	"github.com/plabayo/rama-go/metrics"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/rerror"
	"github.com/plabayo/rama-go/service"
	"github.com/plabayo/rama-go/transport/tcp"
)

// TCPConnector dials the authority named by target(ctx, req), the
// kernel's canonical TryRefIntoTransportContext lookup, returning a raw
// net.Conn as the bottom of every connector chain.
type TCPConnector[S, Req any] struct {
	target  TryRefIntoTransportContext[S, Req]
	dialer  *tcp.Dialer
	metrics *metrics.Registry
}

// NewTCPConnector builds the transport stage of a connector chain, dialing
// TCP to whatever authority target resolves for the request.
func NewTCPConnector[S, Req any](target TryRefIntoTransportContext[S, Req]) *TCPConnector[S, Req] {
	return &TCPConnector[S, Req]{target: target, dialer: tcp.NewDialer()}
}

// WithMetrics feeds dial counts and latency into reg's DialsTotal/
// DialDuration series. Nil (the default) leaves the connector
// uninstrumented.
func (c *TCPConnector[S, Req]) WithMetrics(reg *metrics.Registry) *TCPConnector[S, Req] {
	c.metrics = reg
	return c
}

func (c *TCPConnector[S, Req]) Serve(ctx *racontext.Context[S], req Req) (EstablishedClientConnection[net.Conn, Req], error) {
	var zero EstablishedClientConnection[net.Conn, Req]

	tc, err := c.target.TryRefIntoTransportContext(ctx, req)
	if err != nil {
		return zero, rerror.Wrap(rerror.KindProtocol, err, "resolve transport target")
	}
	if tc.Protocol != racontext.TransportTCP {
		return zero, rerror.New(rerror.KindProtocol, "TCPConnector requires a TCP TransportContext").WithField("protocol", tc.Protocol)
	}

	dialCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-ctx.Cancelled():
			cancel()
		case <-dialCtx.Done():
		}
	}()

	start := time.Now()
	conn, err := c.dialer.DialContext(dialCtx, tc.Authority)
	if c.metrics != nil {
		c.metrics.DialDuration.WithLabelValues("tcp").Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		c.metrics.DialsTotal.WithLabelValues(outcome).Inc()
	}
	if err != nil {
		return zero, err
	}
	return EstablishedClientConnection[net.Conn, Req]{Conn: conn, Req: req}, nil
}

var _ service.Service[struct{}, struct{}, EstablishedClientConnection[net.Conn, struct{}]] = (*TCPConnector[struct{}, struct{}])(nil)
