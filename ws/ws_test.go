package ws_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/service"
	"github.com/plabayo/rama-go/ws"
)

type noState struct{}

func echoHandler() ws.Handler[noState] {
	return service.ServiceFunc[noState, *ws.MessageConn, struct{}](func(_ *racontext.Context[noState], conn *ws.MessageConn) (struct{}, error) {
		msg, err := conn.ReadMessage()
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, conn.WriteMessage(msg)
	})
}

func TestUpgradeHandlerEchoes(t *testing.T) {
	t.Parallel()
	parent := racontext.New[noState](context.Background(), noState{})
	handler := ws.UpgradeHandler[noState](parent, ws.UpgraderConfig{}, echoHandler())

	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, "ping", string(data))
}
