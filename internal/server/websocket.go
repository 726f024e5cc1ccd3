package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// WebSocketHub manages WebSocket connections and broadcasts events to them.
type WebSocketHub struct {
	clients    map[*wsClient]bool
	broadcast  chan interface{}
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
}

type wsClient struct {
	hub  *WebSocketHub
	conn *websocket.Conn
	send chan []byte
}

// NewWebSocketHub creates a new hub. Call Run in a goroutine to start it.
func NewWebSocketHub() *WebSocketHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan interface{}, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's message processing loop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("server: websocket client connected (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("server: websocket client disconnected (total: %d)", count)

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("server: websocket marshal failed: %v", err)
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow client, drop it.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop shuts down the hub and disconnects every client.
func (h *WebSocketHub) Stop() {
	h.cancel()
	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		_ = client.conn.Close(websocket.StatusNormalClosure, "")
	}
	h.clients = make(map[*wsClient]bool)
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients. Non-blocking; the
// message is dropped when the hub is saturated.
func (h *WebSocketHub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		log.Println("server: websocket broadcast channel full, dropping message")
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *wsClient) writePump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			return
		}
	}
}

// readPump drains client messages to detect disconnections.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}
