// Package tcp wraps the stdlib's net.Dial/net.Listen with the error
// taxonomy the rest of the kernel expects: every failure surfaces as an
// *rerror.Error of rerror.KindTransport rather than a bare *net.OpError.
package tcp

import (
	"context"
	"net"

	"github.com/plabayo/rama-go/rerror"
)

// Dialer dials TCP, wrapping dial failures into the kernel's error
// taxonomy. The zero value is ready to use.
type Dialer struct {
	inner net.Dialer
}

// NewDialer returns a Dialer with the stdlib's default net.Dialer
// settings (no explicit timeout; callers drive cancellation via ctx).
func NewDialer() *Dialer {
	return &Dialer{}
}

// DialContext dials authority ("host:port"), honoring ctx cancellation.
func (d *Dialer) DialContext(ctx context.Context, authority string) (net.Conn, error) {
	conn, err := d.inner.DialContext(ctx, "tcp", authority)
	if err != nil {
		return nil, rerror.Wrap(rerror.KindTransport, err, "dial tcp").WithField("authority", authority)
	}
	return conn, nil
}

// Listen binds a TCP listener at addr ("host:port" or ":port").
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, rerror.Wrap(rerror.KindTransport, err, "listen tcp").WithField("addr", addr)
	}
	return ln, nil
}
