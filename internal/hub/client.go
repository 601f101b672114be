package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"NetProfiler/internal/store"

	"github.com/gorilla/websocket"
)

const maxRequestSize = 512

// Client is one live subscriber: a websocket connection with a bounded
// outbound queue. The queue is written by the hub loop and by request
// replies, and drained by the write pump.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	closeMu sync.Mutex
	closed  bool
}

// enqueue offers data to the outbound queue without blocking. Returns
// false when the queue is full or already closed.
func (c *Client) enqueue(data []byte) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound queue exactly once, which makes the
// write pump send a close frame and tear the connection down.
func (c *Client) closeSend() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump consumes subscriber requests until the connection errors or
// the idle/backpressure window expires. Malformed requests get an error
// message back without terminating the connection.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxRequestSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.pongTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("Subscriber %s read error: %v", c.id, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.hub.pongTimeout))

		var req clientRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(serverMessage{Type: msgError, Message: "malformed request"})
			continue
		}
		c.handleRequest(req)
	}
}

func (c *Client) handleRequest(req clientRequest) {
	switch req.Type {
	case reqGetStats:
		stats := c.hub.ctrl.Stats()
		c.reply(serverMessage{Type: msgStats, Stats: &stats})
	case reqGetProfiles:
		c.reply(serverMessage{Type: msgProfiles, Profiles: c.hub.ctrl.Profiles(store.Filter{})})
	case reqClearProfiles:
		// The controller republishes the clear to every subscriber,
		// including this one, in commit order.
		c.hub.ctrl.Clear()
	case reqPing:
		c.reply(serverMessage{Type: msgPong})
	default:
		c.reply(serverMessage{Type: msgError, Message: "unknown request type"})
	}
}

// reply enqueues a direct response. A subscriber too slow to accept its
// own replies is treated like any other backpressure case and
// disconnected.
func (c *Client) reply(msg serverMessage) {
	data := c.hub.marshal(msg)
	if data == nil {
		return
	}
	if !c.enqueue(data) {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}
}

// writePump drains the outbound queue onto the wire and keeps the
// connection alive with pings. When the queue closes it sends a close
// frame rather than dropping the connection abruptly.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
