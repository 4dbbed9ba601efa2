// Package tlskit implements the Security layer of the Connector kernel: a
// client-side TLS handshake stage, and a server-side autocert-backed
// tls.Config for the Listener side of an endpoint that terminates TLS.
package tlskit

import (
	"crypto/tls"
	"net"

	"github.com/plabayo/rama-go/connector"
	"github.com/plabayo/rama-go/extensions"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/rerror"
)

// ServerName derives the SNI/server name TLS should present for req,
// typically the authority recovered by TryRefIntoTransportContext.
type ServerName[S, Req any] func(ctx *racontext.Context[S], req Req) string

// ClientStage performs a TLS client handshake over the previous stage's
// net.Conn, recording the negotiated ALPN protocol and peer certificate
// chain into the request Context as a racontext.TLSInfo extension, and
// exposing the resulting *tls.Conn to the application adapter stage above
// it.
func ClientStage[S, Req any](base *tls.Config, serverName ServerName[S, Req]) connector.Stage[S, Req, net.Conn, *tls.Conn] {
	return connector.StageFunc[S, Req, net.Conn, *tls.Conn](func(ctx *racontext.Context[S], prev connector.EstablishedClientConnection[net.Conn, Req]) (connector.EstablishedClientConnection[*tls.Conn, Req], error) {
		var zero connector.EstablishedClientConnection[*tls.Conn, Req]

		cfg := base.Clone()
		cfg.ServerName = serverName(ctx, prev.Req)

		tlsConn := tls.Client(prev.Conn, cfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return zero, rerror.Wrap(rerror.KindTransport, err, "tls client handshake").WithField("server_name", cfg.ServerName)
		}

		state := tlsConn.ConnectionState()
		info := racontext.TLSInfo{NegotiatedALPN: state.NegotiatedProtocol, ServerName: cfg.ServerName}
		for _, cert := range state.PeerCertificates {
			info.PeerCertificates = append(info.PeerCertificates, cert.Raw)
		}
		extensions.Set(ctx.Extensions(), info)

		return connector.EstablishedClientConnection[*tls.Conn, Req]{Conn: tlsConn, Req: prev.Req}, nil
	})
}
