package racontext

import (
	"net"
	"net/netip"
)

// ProxyProtocol identifies the kind of outbound proxy a ProxyAddress
// describes.
type ProxyProtocol string

const (
	ProxyProtocolSOCKS5      ProxyProtocol = "socks5"
	ProxyProtocolHTTPConnect ProxyProtocol = "http-connect"
	ProxyProtocolHAProxy     ProxyProtocol = "haproxy"
)

// Credential is a proxy/upstream authentication credential. Exactly one of
// Basic or Bearer is populated.
type Credential struct {
	Basic  *BasicCredential
	Bearer string // raw token (e.g. a JWT), empty if unused
}

// BasicCredential is a username/password pair.
type BasicCredential struct {
	Username string
	Password string
}

// ProxyAddress is an Extensions entry describing an upstream proxy a
// Connector chain should traverse before reaching the ultimate authority.
type ProxyAddress struct {
	Protocol   ProxyProtocol
	Authority  string // host:port
	Credential *Credential
}

// SocketInfo records the local and peer socket addresses observed at
// accept/dial time.
type SocketInfo struct {
	Local netip.AddrPort
	Peer  netip.AddrPort
}

// Forwarded carries client-address information recovered from a
// PROXY-protocol header or Forwarded/X-Forwarded-* headers.
type Forwarded struct {
	ClientAddr netip.AddrPort
	ProxyAddr  netip.AddrPort
}

// AppProtocol identifies an application-level protocol negotiated or
// requested for a connection.
type AppProtocol string

const (
	AppProtocolHTTP1     AppProtocol = "http/1.1"
	AppProtocolHTTP2     AppProtocol = "h2"
	AppProtocolWebSocket AppProtocol = "websocket"
)

// TransportContext is the canonical, authoritative description of a
// connection's target, produced by TryRefIntoTransportContext. Layers must
// not reinvent target extraction; they consume this.
type TransportContext struct {
	Protocol    TransportProtocol
	AppProtocol AppProtocol
	HTTPVersion string // e.g. "HTTP/1.1", empty if not yet known
	Authority   string // host:port
}

// TransportProtocol is the network-layer transport in use.
type TransportProtocol string

const (
	TransportTCP TransportProtocol = "tcp"
	TransportUDP TransportProtocol = "udp"
)

// TargetHttpVersion (sic, matches the spec's normative name) requests a
// specific HTTP version for an outbound connection, overriding negotiation.
type TargetHttpVersion string

// OriginalRequestVersion records the HTTP version of the inbound request
// that produced this outbound connection, for protocol-adaptation layers.
type OriginalRequestVersion string

// DefaultTargetHttpVersion is the fallback HTTP version used when neither
// TargetHttpVersion nor ALPN negotiation determines one.
type DefaultTargetHttpVersion string

// UserId identifies the authenticated principal for this request, as
// resolved by a credential layer (e.g. JWT verification).
type UserId string

// UsernameLabels carries free-form labels associated with an authenticated
// username (roles, tenant, etc.), as produced by a credential layer.
type UsernameLabels map[string]string

// DnsResolveModeKind selects eager vs lazy DNS resolution for a connector
// chain.
type DnsResolveModeKind int

const (
	DnsResolveEager DnsResolveModeKind = iota
	DnsResolveLazy
)

// DnsResolveMode is the Extensions entry carrying a DnsResolveModeKind.
type DnsResolveMode struct {
	Mode DnsResolveModeKind
}

// TLSInfo records TLS handshake results attached by the security layer.
type TLSInfo struct {
	PeerCertificates [][]byte // DER-encoded peer certificate chain, leaf first
	NegotiatedALPN   string
	ServerName       string
}

// HostPort splits an authority of the form "host:port" using net.SplitHostPort,
// returning ("", "") if it cannot be parsed.
func HostPort(authority string) (host, port string) {
	h, p, err := net.SplitHostPort(authority)
	if err != nil {
		return "", ""
	}
	return h, p
}
