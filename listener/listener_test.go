package listener_test

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plabayo/rama-go/listener"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/service"
	"github.com/plabayo/rama-go/shutdown"
)

type noState struct{}

func echoOnceService() service.Service[noState, net.Conn, struct{}] {
	return service.ServiceFunc[noState, net.Conn, struct{}](func(_ *racontext.Context[noState], conn net.Conn) (struct{}, error) {
		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			return struct{}{}, err
		}
		_, err = conn.Write([]byte(line))
		return struct{}{}, err
	})
}

func newTestTree() *shutdown.Tree {
	return shutdown.NewTree(slog.Default(), shutdown.DefaultTreeConfig())
}

func TestListenerAcceptsAndServes(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	sd := shutdown.New(context.Background())
	tree := newTestTree()
	l := listener.New[noState](ln, noState{}, echoOnceService(), sd, tree, listener.Config{})
	tree.AddTransport(l)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- tree.Serve(ctx) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "hello\n", reply)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop after context cancellation")
	}
}

func TestListenerStopsOnShutdownWithNoConnections(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	sd := shutdown.New(context.Background())
	tree := newTestTree()
	l := listener.New[noState](ln, noState{}, echoOnceService(), sd, tree, listener.Config{})
	tree.AddTransport(l)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- tree.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop")
	}
}
