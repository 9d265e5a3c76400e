// Package websocket is the HMR transport: a hub of browser connections on a
// dedicated port that pushes JSON messages to every client.
package websocket

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/modserve/internal/errors"
	"github.com/conneroisu/modserve/internal/logging"
)

const (
	sendBufferSize = 64
	readTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second
)

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithObserver registers an observer for client count changes.
func WithObserver(o ClientObserver) HubOption {
	return func(h *Hub) {
		h.observer = o
	}
}

// Hub tracks live browser connections and broadcasts to them.
//
// A single hub goroutine owns registration, unregistration and fan-out;
// clients map reads from other goroutines go through clientsMu.
type Hub struct {
	clients   map[*websocket.Conn]*Client
	clientsMu sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn

	logger   logging.Logger
	observer ClientObserver

	server   *http.Server
	listener net.Listener

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	isShutdown   atomic.Bool
}

// NewHub creates a hub and starts its management goroutine.
func NewHub(logger logging.Logger, opts ...HubOption) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client, 32),
		unregister: make(chan *websocket.Conn, 32),
		logger:     logger.WithComponent("hmr-transport"),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.run()
	return h
}

// Listen binds addr and serves websocket upgrades on it in the background.
// A bind failure is returned as a TransportBind error and leaves the hub
// usable for in-process broadcasts.
func (h *Hub) Listen(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.NewTransportBindError(addr, err)
	}

	h.listener = ln
	h.server = &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Error(h.ctx, err, "HMR transport stopped", "addr", addr)
		}
	}()

	h.logger.Info(ctx, "HMR transport listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen succeeds.
func (h *Hub) Addr() net.Addr {
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isShutdown.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{Subprotocol},
		// Pages are served from the dev server's own port, which is
		// always a different origin from the transport port.
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "websocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		remoteAddr: r.RemoteAddr,
	}

	hello, _ := json.Marshal(ConnectedMessage{Type: "connected"})
	client.send <- hello

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go h.handleClient(client)
}

// Broadcast encodes msg as JSON and queues it for every connected client.
// Delivery is fire-and-forget.
func (h *Hub) Broadcast(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(h.ctx, err, "failed to marshal broadcast message")
		return
	}
	if h.isShutdown.Load() {
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	default:
		h.logger.Warn(h.ctx, nil, "broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection and stops the listener if one is bound.
func (h *Hub) Shutdown(ctx context.Context) error {
	var err error
	h.shutdownOnce.Do(func() {
		h.isShutdown.Store(true)
		h.cancel()

		if h.server != nil {
			err = h.server.Shutdown(ctx)
		}

		h.clientsMu.Lock()
		for conn, client := range h.clients {
			close(client.send)
			_ = conn.Close(websocket.StatusGoingAway, "server shutdown")
		}
		h.clients = make(map[*websocket.Conn]*Client)
		h.clientsMu.Unlock()
		h.notify(0)
	})
	return err
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.clientsMu.Unlock()
			h.notify(count)
			h.logger.Debug(h.ctx, "client connected", "remote", client.remoteAddr, "clients", count)

		case conn := <-h.unregister:
			h.clientsMu.Lock()
			client, ok := h.clients[conn]
			if ok {
				delete(h.clients, conn)
				close(client.send)
			}
			count := len(h.clients)
			h.clientsMu.Unlock()
			if ok {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				h.notify(count)
				h.logger.Debug(h.ctx, "client disconnected", "remote", client.remoteAddr, "clients", count)
			}

		case message := <-h.broadcast:
			h.clientsMu.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client; drop it rather than block the hub.
					go func(c *websocket.Conn) {
						select {
						case h.unregister <- c:
						case <-h.ctx.Done():
						}
					}(client.conn)
				}
			}
			h.clientsMu.RUnlock()

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) notify(count int) {
	if h.observer != nil {
		h.observer.ClientsChanged(count)
	}
}

func (h *Hub) handleClient(client *Client) {
	defer func() {
		select {
		case h.unregister <- client.conn:
		case <-h.ctx.Done():
		}
	}()

	go h.writePump(client)
	h.readPump(client)
}

func (h *Hub) readPump(client *Client) {
	for {
		ctx, cancel := context.WithTimeout(h.ctx, readTimeout)
		_, message, err := client.conn.Read(ctx)
		cancel()
		if err != nil {
			if websocket.CloseStatus(err) == -1 && h.ctx.Err() == nil {
				h.logger.Debug(h.ctx, "websocket read ended", "remote", client.remoteAddr, "error", err.Error())
			}
			return
		}

		if string(message) == PingMessage {
			continue
		}
		h.logger.Debug(h.ctx, "ignoring client message", "remote", client.remoteAddr, "bytes", len(message))
	}
}

func (h *Hub) writePump(client *Client) {
	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				h.logger.Debug(h.ctx, "websocket write failed", "remote", client.remoteAddr, "error", err.Error())
				return
			}
		case <-h.ctx.Done():
			return
		}
	}
}
