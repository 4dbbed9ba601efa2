package socks5_test

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plabayo/rama-go/connector"
	"github.com/plabayo/rama-go/extensions"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/transport/socks5"
)

type noState struct{}
type req struct{}

// fakeSocks5Server accepts one connection, performs a minimal no-auth
// SOCKS5 greeting + CONNECT handshake, records the requested host:port,
// and replies success so the test can assert on what the client asked for.
func fakeSocks5Server(t *testing.T, ln net.Listener, requested chan<- string) {
	conn, err := ln.Accept()
	require.NoError(t, err)
	defer conn.Close()

	greeting := make([]byte, 2)
	_, err = io.ReadFull(conn, greeting)
	require.NoError(t, err)
	methods := make([]byte, greeting[1])
	_, err = io.ReadFull(conn, methods)
	require.NoError(t, err)
	_, err = conn.Write([]byte{0x05, 0x00})
	require.NoError(t, err)

	header := make([]byte, 4)
	_, err = io.ReadFull(conn, header)
	require.NoError(t, err)
	var host string
	switch header[3] {
	case 0x03:
		lenByte := make([]byte, 1)
		_, err = io.ReadFull(conn, lenByte)
		require.NoError(t, err)
		domain := make([]byte, lenByte[0])
		_, err = io.ReadFull(conn, domain)
		require.NoError(t, err)
		host = string(domain)
	case 0x01:
		ip := make([]byte, net.IPv4len)
		_, err = io.ReadFull(conn, ip)
		require.NoError(t, err)
		host = net.IP(ip).String()
	}
	portBuf := make([]byte, 2)
	_, err = io.ReadFull(conn, portBuf)
	require.NoError(t, err)

	requested <- host

	reply := []byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}
	_, err = conn.Write(reply)
	require.NoError(t, err)
}

func TestSOCKS5StageConnectsToTarget(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	requested := make(chan string, 1)
	go fakeSocks5Server(t, ln, requested)

	proxyConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer proxyConn.Close()

	ctx := racontext.New[noState](context.Background(), noState{})
	extensions.Set(ctx.Extensions(), racontext.ProxyAddress{
		Protocol: racontext.ProxyProtocolSOCKS5,
	})

	target := socks5.Target[noState, req](func(_ *racontext.Context[noState], _ req) (string, uint16, error) {
		return "example.test", 443, nil
	})
	stage := socks5.Stage[noState, req](target)

	established, err := stage.Establish(ctx, connector.EstablishedClientConnection[net.Conn, req]{Conn: proxyConn, Req: req{}})
	require.NoError(t, err)
	assert.Equal(t, proxyConn, established.Conn)
	assert.Equal(t, "example.test", <-requested)
}
