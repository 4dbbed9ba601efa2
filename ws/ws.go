// Package ws implements the WebSocket application-adapter stage: upgrading
// an established HTTP/1.1 connection to a WebSocket, and exposing the
// result as an ordinary Service over framed messages.
package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/rerror"
	"github.com/plabayo/rama-go/service"
)

// Message is a single WebSocket frame exchanged with a handler Service.
type Message struct {
	Type int // websocket.TextMessage / websocket.BinaryMessage
	Data []byte
}

// Handler is the Service invoked once per upgraded connection; it receives
// the *websocket.Conn wrapped as a MessageConn and runs until the
// connection closes or the handler returns.
type Handler[S any] = service.Service[S, *MessageConn, struct{}]

// MessageConn is a thin, Service-shaped wrapper over *websocket.Conn.
type MessageConn struct {
	*websocket.Conn
}

// ReadMessage blocks for the next frame.
func (c *MessageConn) ReadMessage() (Message, error) {
	mt, data, err := c.Conn.ReadMessage()
	if err != nil {
		return Message{}, rerror.Wrap(rerror.KindTransport, err, "read websocket frame")
	}
	return Message{Type: mt, Data: data}, nil
}

// WriteMessage sends a single frame.
func (c *MessageConn) WriteMessage(m Message) error {
	if err := c.Conn.WriteMessage(m.Type, m.Data); err != nil {
		return rerror.Wrap(rerror.KindTransport, err, "write websocket frame")
	}
	return nil
}

// UpgraderConfig configures the upgrade handshake.
type UpgraderConfig struct {
	HandshakeTimeout time.Duration
	ReadBufferSize   int
	WriteBufferSize  int
	CheckOrigin      func(r *http.Request) bool
}

func (c UpgraderConfig) withDefaults() UpgraderConfig {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
	return c
}

// UpgradeHandler adapts an upgraded WebSocket connection into an
// http.HandlerFunc suitable for mounting on an httpkit.NewRouter route: it
// performs the HTTP upgrade, builds a fresh racontext.Context carrying the
// same state and extensions as parent, and invokes handler for the
// lifetime of the connection.
func UpgradeHandler[S any](parent *racontext.Context[S], cfg UpgraderConfig, handler Handler[S]) http.HandlerFunc {
	cfg = cfg.withDefaults()
	upgrader := websocket.Upgrader{
		HandshakeTimeout: cfg.HandshakeTimeout,
		ReadBufferSize:   cfg.ReadBufferSize,
		WriteBufferSize:  cfg.WriteBufferSize,
		CheckOrigin:      cfg.CheckOrigin,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		child := parent.Clone()
		if _, err := handler.Serve(child, &MessageConn{Conn: conn}); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()),
				time.Now().Add(time.Second))
		}
	}
}
