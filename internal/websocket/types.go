package websocket

import "github.com/coder/websocket"

// Subprotocol is the websocket subprotocol the browser runtime requests.
const Subprotocol = "modserve-hmr"

// PingMessage is the keep-alive text frame sent by browsers. It is ignored.
const PingMessage = "ping"

// Client represents one connected browser.
type Client struct {
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

// ConnectedMessage is sent once to every new connection.
type ConnectedMessage struct {
	Type string `json:"type"`
}

// ClientObserver is notified when the number of connected clients changes.
type ClientObserver interface {
	ClientsChanged(count int)
}
