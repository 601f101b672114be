package hub

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"NetProfiler/internal/config"
	"NetProfiler/internal/model"
	"NetProfiler/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultQueueSize    = 256
	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 60 * time.Second
	broadcastBuffer     = 512
)

// Controller is the hub's view of the profile table: snapshot reads for
// new subscribers and on-demand requests, plus the clear operation a
// subscriber may request. Implemented by the assembler.
type Controller interface {
	Profiles(f store.Filter) []*model.Profile
	Stats() model.Stats
	Clear() int
}

// Hub maintains the set of live subscribers and fans profile table
// deltas out to them. Each subscriber has its own bounded outbound
// queue; a subscriber whose queue is full is disconnected so its
// slowness never stalls ingestion or delivery to others.
type Hub struct {
	ctrl Controller

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	stopped    sync.WaitGroup

	queueSize    int
	pingInterval time.Duration
	pongTimeout  time.Duration
	upgrader     websocket.Upgrader
	mu           sync.RWMutex
}

// New creates a hub over the given controller.
func New(ctrl Controller, cfg config.HubConfig) *Hub {
	queueSize := cfg.ClientQueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	pingInterval := defaultPingInterval
	if d, err := time.ParseDuration(cfg.PingInterval); err == nil && d > 0 {
		pingInterval = d
	}
	pongTimeout := defaultPongTimeout
	if d, err := time.ParseDuration(cfg.PongTimeout); err == nil && d > 0 {
		pongTimeout = d
	}

	return &Hub{
		ctrl:         ctrl,
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan []byte, broadcastBuffer),
		done:         make(chan struct{}),
		queueSize:    queueSize,
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run processes registration and broadcast traffic until Stop is
// called. Registration and fan-out share one loop, so a subscriber's
// initial snapshot and all later deltas arrive in a single order.
func (h *Hub) Run() {
	h.stopped.Add(1)
	defer h.stopped.Done()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("Subscriber %s connected. Total subscribers: %d", client.id, count)

			// The snapshot is built inside this loop: any delta committed
			// before this point is already in it, any delta after it will
			// be delivered behind it.
			h.deliver(client, h.marshal(h.snapshotMessage()))

		case client := <-h.unregister:
			h.drop(client)

		case data := <-h.broadcast:
			h.mu.RLock()
			targets := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				targets = append(targets, client)
			}
			h.mu.RUnlock()

			for _, client := range targets {
				h.deliver(client, data)
			}

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.closeSend()
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop shuts the hub down. Subscriber queues are closed, which makes
// each write pump send a close frame before dropping the connection.
func (h *Hub) Stop() {
	close(h.done)
	h.stopped.Wait()
}

// ClientCount returns the number of live subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades an HTTP request into a live subscription.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.queueSize),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// PublishUpsert broadcasts a created or updated profile. Called by the
// assembler in commit order; the broadcast channel preserves it.
func (h *Hub) PublishUpsert(key string, p *model.Profile, stats model.Stats) {
	h.send(serverMessage{
		Type:   msgProfileUpdate,
		Update: &profileUpdate{Key: key, Profile: p},
		Stats:  &stats,
	})
}

// PublishRemove broadcasts a profile removal.
func (h *Hub) PublishRemove(key string, stats model.Stats) {
	h.send(serverMessage{
		Type:   msgProfileUpdate,
		Update: &profileUpdate{Key: key, UpdateType: updateTypeRemoved},
		Stats:  &stats,
	})
}

// PublishCleared broadcasts a bulk clear to every subscriber, the
// requester included.
func (h *Hub) PublishCleared(stats model.Stats) {
	h.send(serverMessage{Type: msgProfilesCleared, Stats: &stats})
}

func (h *Hub) send(msg serverMessage) {
	select {
	case h.broadcast <- h.marshal(msg):
	case <-h.done:
	}
}

func (h *Hub) marshal(msg serverMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal %s message: %v", msg.Type, err)
		return nil
	}
	return data
}

func (h *Hub) snapshotMessage() serverMessage {
	stats := h.ctrl.Stats()
	return serverMessage{
		Type:     msgInitialData,
		Profiles: h.ctrl.Profiles(store.Filter{}),
		Stats:    &stats,
	}
}

// deliver enqueues data on one subscriber's outbound queue. A full
// queue disconnects that subscriber only; delivery to slow subscribers
// is best-effort.
func (h *Hub) deliver(client *Client, data []byte) {
	if data == nil {
		return
	}
	if !client.enqueue(data) {
		log.Printf("Subscriber %s queue full, disconnecting", client.id)
		h.drop(client)
	}
}

// drop removes a subscriber and closes its queue. Safe to call twice
// for the same client.
func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.closeSend()
	log.Printf("Subscriber %s disconnected. Total subscribers: %d", client.id, len(h.clients))
}
