// Package socks5 implements the client half of SOCKS5 (RFC 1928/1929): the
// CONNECT handshake a connector chain performs against an upstream proxy
// named by a racontext.ProxyAddress, before handing the resulting stream up
// to the security/application stages.
package socks5

import (
	"fmt"
	"io"
	"net"

	"github.com/plabayo/rama-go/connector"
	"github.com/plabayo/rama-go/extensions"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/rerror"
)

const (
	version5        = 0x05
	authNone        = 0x00
	authUserPass    = 0x02
	authNoAcceptable = 0xff
	cmdConnect      = 0x01
	atypIPv4        = 0x01
	atypDomain      = 0x03
	atypIPv6        = 0x04
	repSucceeded    = 0x00
)

// Target resolves the ultimate authority (independent of the proxy's own
// address) the CONNECT request should name.
type Target[S, Req any] func(ctx *racontext.Context[S], req Req) (host string, port uint16, err error)

// Stage performs a CONNECT handshake over an already-established TCP
// connection to the proxy, then exposes the same net.Conn as the tunnel to
// target. It reads the ProxyAddress extension (if present) for Basic
// credentials to offer during the auth negotiation.
func Stage[S, Req any](target Target[S, Req]) connector.Stage[S, Req, net.Conn, net.Conn] {
	return connector.StageFunc[S, Req, net.Conn, net.Conn](func(ctx *racontext.Context[S], prev connector.EstablishedClientConnection[net.Conn, Req]) (connector.EstablishedClientConnection[net.Conn, Req], error) {
		var zero connector.EstablishedClientConnection[net.Conn, Req]
		conn := prev.Conn

		host, port, err := target(ctx, prev.Req)
		if err != nil {
			return zero, rerror.Wrap(rerror.KindProtocol, err, "resolve socks5 target")
		}

		cred := proxyCredential(ctx)
		if err := handshake(conn, cred); err != nil {
			return zero, err
		}
		if err := connect(conn, host, port); err != nil {
			return zero, err
		}
		return connector.EstablishedClientConnection[net.Conn, Req]{Conn: conn, Req: prev.Req}, nil
	})
}

func proxyCredential[S any](ctx *racontext.Context[S]) *racontext.BasicCredential {
	pa, ok := extensions.Get[racontext.ProxyAddress](ctx.Extensions())
	if !ok || pa.Credential == nil {
		return nil
	}
	return pa.Credential.Basic
}

func handshake(conn net.Conn, cred *racontext.BasicCredential) error {
	methods := []byte{authNone}
	if cred != nil {
		methods = []byte{authUserPass, authNone}
	}
	greeting := append([]byte{version5, byte(len(methods))}, methods...)
	if _, err := conn.Write(greeting); err != nil {
		return rerror.Wrap(rerror.KindTransport, err, "write socks5 greeting")
	}

	reply := make([]byte, 2)
	if _, err := readFull(conn, reply); err != nil {
		return rerror.Wrap(rerror.KindTransport, err, "read socks5 method selection")
	}
	if reply[0] != version5 {
		return rerror.New(rerror.KindProtocol, "unexpected socks5 version in method selection")
	}
	switch reply[1] {
	case authNone:
		return nil
	case authUserPass:
		if cred == nil {
			return rerror.New(rerror.KindPolicy, "socks5 proxy requires credentials but none were provided")
		}
		return authenticate(conn, cred)
	case authNoAcceptable:
		return rerror.New(rerror.KindPolicy, "socks5 proxy rejected all offered auth methods")
	default:
		return rerror.New(rerror.KindProtocol, "unsupported socks5 auth method selected").WithField("method", reply[1])
	}
}

func authenticate(conn net.Conn, cred *racontext.BasicCredential) error {
	if len(cred.Username) > 255 || len(cred.Password) > 255 {
		return rerror.New(rerror.KindProtocol, "socks5 username/password must each be <= 255 bytes")
	}
	buf := []byte{0x01, byte(len(cred.Username))}
	buf = append(buf, cred.Username...)
	buf = append(buf, byte(len(cred.Password)))
	buf = append(buf, cred.Password...)
	if _, err := conn.Write(buf); err != nil {
		return rerror.Wrap(rerror.KindTransport, err, "write socks5 auth")
	}

	reply := make([]byte, 2)
	if _, err := readFull(conn, reply); err != nil {
		return rerror.Wrap(rerror.KindTransport, err, "read socks5 auth reply")
	}
	if reply[1] != 0x00 {
		return rerror.New(rerror.KindPolicy, "socks5 credentials rejected")
	}
	return nil
}

func connect(conn net.Conn, host string, port uint16) error {
	req := []byte{version5, cmdConnect, 0x00}
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			req = append(req, atypIPv4)
			req = append(req, ip4...)
		} else {
			req = append(req, atypIPv6)
			req = append(req, ip.To16()...)
		}
	} else {
		if len(host) > 255 {
			return rerror.New(rerror.KindProtocol, "socks5 domain name too long")
		}
		req = append(req, atypDomain, byte(len(host)))
		req = append(req, host...)
	}
	req = append(req, byte(port>>8), byte(port))

	if _, err := conn.Write(req); err != nil {
		return rerror.Wrap(rerror.KindTransport, err, "write socks5 connect request")
	}

	header := make([]byte, 4)
	if _, err := readFull(conn, header); err != nil {
		return rerror.Wrap(rerror.KindTransport, err, "read socks5 connect reply header")
	}
	if header[0] != version5 {
		return rerror.New(rerror.KindProtocol, "unexpected socks5 version in connect reply")
	}
	if header[1] != repSucceeded {
		return rerror.New(rerror.KindUpstream, fmt.Sprintf("socks5 connect failed with reply code 0x%02x", header[1]))
	}

	var addrLen int
	switch header[3] {
	case atypIPv4:
		addrLen = net.IPv4len
	case atypIPv6:
		addrLen = net.IPv6len
	case atypDomain:
		lenByte := make([]byte, 1)
		if _, err := readFull(conn, lenByte); err != nil {
			return rerror.Wrap(rerror.KindTransport, err, "read socks5 bound domain length")
		}
		addrLen = int(lenByte[0])
	default:
		return rerror.New(rerror.KindProtocol, "unsupported socks5 bound address type")
	}
	// bound address + port, discarded: the kernel already knows the target.
	discard := make([]byte, addrLen+2)
	if _, err := readFull(conn, discard); err != nil {
		return rerror.Wrap(rerror.KindTransport, err, "read socks5 bound address")
	}
	return nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	return io.ReadFull(conn, buf)
}
