// Package hub pushes perception outputs to browser renderers over
// websockets. Hub implements pipeline.Sink; every output is wrapped in a
// Message envelope and broadcast to all connected clients. New clients get
// the committed pose and obstacle list as soon as they connect.
package hub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/cybot.radar/internal/monitoring"
	"github.com/banshee-data/cybot.radar/internal/perception/events"
	"github.com/banshee-data/cybot.radar/internal/perception/pipeline"
	"github.com/banshee-data/cybot.radar/internal/perception/pose"
)

const broadcastBuffer = 256

// Snapshotter supplies the committed state sent to new clients.
type Snapshotter interface {
	Pose() pose.Pose
	Obstacles() pipeline.ObstacleList
}

// Commander relays robot commands received from clients.
type Commander interface {
	SendCommand(string) error
}

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	snap      Snapshotter
	commander Commander

	clients    map[*Client]bool
	mu         sync.RWMutex
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once

	upgrader websocket.Upgrader
	origins  map[string]bool

	sent    atomic.Int64
	dropped atomic.Int64
}

// New creates a hub. snap and commander may be nil.
func New(snap Snapshotter, commander Commander) *Hub {
	h := &Hub{
		snap:       snap,
		commander:  commander,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
		origins:    make(map[string]bool),
	}
	h.upgrader = h.newUpgrader()
	return h
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	defer h.stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return ctx.Err()

		case c := <-h.register:
			h.add(c)

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// add flushes queued broadcasts to the existing clients, then registers c
// with the current snapshot. Anything queued before the snapshot was taken
// is older than it and must not reach c.
func (h *Hub) add(c *Client) {
	for pending := true; pending; {
		select {
		case msg := <-h.broadcast:
			h.deliver(msg)
		default:
			pending = false
		}
	}
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	monitoring.Logf("hub: client %s connected from %s (%d total)", c.id, c.remote, n)
	h.sendInitial(c)
}

func (h *Hub) deliver(msg []byte) {
	h.sent.Add(1)
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// slow client; drop it rather than stall everyone else
			delete(h.clients, c)
			close(c.send)
			monitoring.Logf("hub: client %s too slow, disconnecting", c.id)
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		monitoring.Logf("hub: client %s disconnected (%d total)", c.id, len(h.clients))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// sendInitial queues the welcome and committed state for a new client. It
// runs on the hub goroutine before any later broadcast can reach the client.
func (h *Hub) sendInitial(c *Client) {
	queue := func(typ string, payload any) {
		msg, err := encode(typ, payload)
		if err != nil {
			monitoring.Logf("hub: encode %s: %v", typ, err)
			return
		}
		select {
		case c.send <- msg:
		default:
		}
	}
	queue(TypeWelcome, map[string]string{"client_id": c.id})
	if h.snap != nil {
		queue(TypePose, h.snap.Pose())
		queue(TypeObstacles, h.snap.Obstacles())
	}
}

func (h *Hub) publish(typ string, payload any) {
	msg, err := encode(typ, payload)
	if err != nil {
		monitoring.Logf("hub: encode %s: %v", typ, err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
	}
}

// PublishObstacles implements pipeline.Sink.
func (h *Hub) PublishObstacles(l pipeline.ObstacleList) { h.publish(TypeObstacles, l) }

// PublishPose implements pipeline.Sink.
func (h *Hub) PublishPose(p pose.Pose) { h.publish(TypePose, p) }

// PublishTrail implements pipeline.Sink.
func (h *Hub) PublishTrail(t pose.TrailSegment) { h.publish(TypeTrail, t) }

// PublishBump implements pipeline.Sink.
func (h *Hub) PublishBump(b pipeline.BumpMarker) { h.publish(TypeBump, b) }

// PublishStatus implements pipeline.Sink.
func (h *Hub) PublishStatus(st events.Status) { h.publish(TypeStatus, st) }

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats reports broadcast and drop counters.
func (h *Hub) Stats() (sent, dropped int64) {
	return h.sent.Load(), h.dropped.Load()
}
