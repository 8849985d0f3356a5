package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 25 * time.Second
	wsSendBuffer   = 256
)

// MealIngestedEvent is pushed to the uploading user's open sockets once a
// meal and its children are persisted.
type MealIngestedEvent struct {
	Kind              string   `json:"kind"`
	MealID            uint     `json:"meal_id"`
	FoodItems         int      `json:"food_items"`
	ResolutionSources []string `json:"resolution_sources,omitempty"`
}

// WSClient owns one websocket connection. Every frame (events and keepalive
// pings) goes out through a single writer goroutine; gorilla/websocket
// allows at most one concurrent writer per connection.
type WSClient struct {
	UserID uint
	conn   *websocket.Conn
	send   chan []byte
}

func NewWSClient(userID uint, conn *websocket.Conn) *WSClient {
	return &WSClient{UserID: userID, conn: conn, send: make(chan []byte, wsSendBuffer)}
}

// ReadLoop blocks until the peer closes or errors. Inbound frames are
// discarded; the channel is push-only.
func (c *WSClient) ReadLoop() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the connection's only writer. It drains the send queue,
// keeps the connection alive through proxies with periodic pings, and
// closes the connection when the send channel closes or a write fails.
func (c *WSClient) writeLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// EventHub fans meal-processing events out to a user's open sockets.
type EventHub struct {
	mu      sync.RWMutex
	clients map[uint]map[*WSClient]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[uint]map[*WSClient]struct{})}
}

// Register adds the client to the user's set and starts its writer.
func (h *EventHub) Register(c *WSClient) {
	h.mu.Lock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*WSClient]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	h.mu.Unlock()
	go c.writeLoop()
}

// Unregister removes the client and closes its send channel, which stops
// the writer and closes the connection. The channel is only ever closed
// here, under the write lock, so it cannot race a Publish; repeat calls
// for the same client are no-ops.
func (h *EventHub) Unregister(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.UserID]
	if set == nil {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
	close(c.send)
}

// Publish queues the event on every open socket of the user. A slow client
// whose buffer is full misses the event rather than blocking ingestion.
func (h *EventHub) Publish(userID uint, ev MealIngestedEvent) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Printf("could not encode meal event: %v", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- msg:
		default:
		}
	}
}
