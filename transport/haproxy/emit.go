// Package haproxy implements the PROXY protocol (v1 text, v2 binary
// header parsing) used to carry a connection's original client address
// across an intermediate proxy hop.
package haproxy

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"

	"github.com/plabayo/rama-go/connector"
	"github.com/plabayo/rama-go/extensions"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/rerror"
)

// EmitStage writes a PROXY protocol v1 text header to the freshly dialed
// upstream connection, carrying the original client address recorded in
// the racontext.Forwarded extension (or SocketInfo, if Forwarded is
// absent), before handing the same net.Conn up the chain.
func EmitStage[S, Req any]() connector.Stage[S, Req, net.Conn, net.Conn] {
	return connector.StageFunc[S, Req, net.Conn, net.Conn](func(ctx *racontext.Context[S], prev connector.EstablishedClientConnection[net.Conn, Req]) (connector.EstablishedClientConnection[net.Conn, Req], error) {
		var zero connector.EstablishedClientConnection[net.Conn, Req]

		client, proxy, ok := originAddrs(ctx)
		if !ok {
			return zero, rerror.New(rerror.KindProtocol, "no Forwarded or SocketInfo extension available to emit a PROXY header")
		}

		header := formatV1(client, proxy)
		if _, err := prev.Conn.Write([]byte(header)); err != nil {
			return zero, rerror.Wrap(rerror.KindTransport, err, "write PROXY v1 header")
		}
		return connector.EstablishedClientConnection[net.Conn, Req]{Conn: prev.Conn, Req: prev.Req}, nil
	})
}

func originAddrs[S any](ctx *racontext.Context[S]) (client, proxy netip.AddrPort, ok bool) {
	if fw, found := extensions.Get[racontext.Forwarded](ctx.Extensions()); found {
		return fw.ClientAddr, fw.ProxyAddr, true
	}
	if si, found := extensions.Get[racontext.SocketInfo](ctx.Extensions()); found {
		return si.Peer, si.Local, true
	}
	return netip.AddrPort{}, netip.AddrPort{}, false
}

// formatV1 renders the PROXY protocol v1 text header per spec:
// "PROXY <INET> <src> <dst> <srcport> <dstport>\r\n".
func formatV1(client, proxy netip.AddrPort) string {
	family := "TCP4"
	if client.Addr().Is6() {
		family = "TCP6"
	}
	return fmt.Sprintf("PROXY %s %s %s %d %d\r\n",
		family, client.Addr().String(), proxy.Addr().String(), client.Port(), proxy.Port())
}

// header2Signature is the fixed 12-byte signature prefixing every PROXY
// protocol v2 binary header.
var header2Signature = [12]byte{0x0D, 0x0A, 0x0D, 0x0A, 0x00, 0x0D, 0x0A, 0x51, 0x55, 0x49, 0x54, 0x0A}

// ParseV2 parses a PROXY protocol v2 binary header from the front of buf,
// returning the recovered client/proxy addresses and the number of bytes
// consumed. It supports the PROXY command with TCP over IPv4/IPv6; a LOCAL
// command (health-check probe) is reported via ok=false, n>0 so callers can
// skip the header without extracting an address.
func ParseV2(buf []byte) (client, proxy netip.AddrPort, n int, ok bool, err error) {
	const fixedLen = 16
	if len(buf) < fixedLen {
		return netip.AddrPort{}, netip.AddrPort{}, 0, false, rerror.New(rerror.KindProtocol, "buffer too short for PROXY v2 fixed header")
	}
	if [12]byte(buf[:12]) != header2Signature {
		return netip.AddrPort{}, netip.AddrPort{}, 0, false, rerror.New(rerror.KindProtocol, "bad PROXY v2 signature")
	}
	verCmd := buf[12]
	if verCmd>>4 != 0x02 {
		return netip.AddrPort{}, netip.AddrPort{}, 0, false, rerror.New(rerror.KindProtocol, "unsupported PROXY header version")
	}
	cmd := verCmd & 0x0F
	famProto := buf[13]
	addrLen := int(binary.BigEndian.Uint16(buf[14:16]))
	total := fixedLen + addrLen
	if len(buf) < total {
		return netip.AddrPort{}, netip.AddrPort{}, 0, false, rerror.New(rerror.KindProtocol, "buffer too short for PROXY v2 address block")
	}
	if cmd == 0x00 { // LOCAL
		return netip.AddrPort{}, netip.AddrPort{}, total, false, nil
	}
	body := buf[fixedLen:total]
	switch famProto >> 4 {
	case 0x01: // AF_INET
		if len(body) < 12 {
			return netip.AddrPort{}, netip.AddrPort{}, 0, false, rerror.New(rerror.KindProtocol, "short PROXY v2 IPv4 address block")
		}
		srcIP := net.IP(body[0:4])
		dstIP := net.IP(body[4:8])
		srcPort := binary.BigEndian.Uint16(body[8:10])
		dstPort := binary.BigEndian.Uint16(body[10:12])
		srcAddr, _ := netip.AddrFromSlice(srcIP.To4())
		dstAddr, _ := netip.AddrFromSlice(dstIP.To4())
		return netip.AddrPortFrom(srcAddr, srcPort), netip.AddrPortFrom(dstAddr, dstPort), total, true, nil
	case 0x02: // AF_INET6
		if len(body) < 36 {
			return netip.AddrPort{}, netip.AddrPort{}, 0, false, rerror.New(rerror.KindProtocol, "short PROXY v2 IPv6 address block")
		}
		srcIP := net.IP(body[0:16])
		dstIP := net.IP(body[16:32])
		srcPort := binary.BigEndian.Uint16(body[32:34])
		dstPort := binary.BigEndian.Uint16(body[34:36])
		srcAddr, _ := netip.AddrFromSlice(srcIP.To16())
		dstAddr, _ := netip.AddrFromSlice(dstIP.To16())
		return netip.AddrPortFrom(srcAddr, srcPort), netip.AddrPortFrom(dstAddr, dstPort), total, true, nil
	default:
		return netip.AddrPort{}, netip.AddrPort{}, total, false, nil
	}
}
