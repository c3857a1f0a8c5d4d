package hub

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/banshee-data/cybot.radar/internal/monitoring"
	"github.com/banshee-data/cybot.radar/internal/serialmux"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Client messages are tiny; anything larger is abuse.
	maxMessageSize = 4 * 1024

	sendBufferSize = 256
)

// Client is one websocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	id     string
	remote string
}

func newClient(h *Hub, conn *websocket.Conn, remote string) *Client {
	return &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		id:     uuid.NewString(),
		remote: remote,
	}
}

// readPump handles client messages until the connection fails.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				monitoring.Logf("hub: read from %s: %v", c.id, err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(TypeError, errorPayload{Code: "invalid_format", Message: "message is not valid JSON"})
		return
	}

	switch msg.Type {
	case "ping":
		c.reply(TypePong, pongPayload{Time: msg.Time, ServerTime: time.Now().UnixMilli()})
	case "command":
		cmd, err := serialmux.ParseCommand(msg.Command)
		if err != nil {
			c.reply(TypeError, errorPayload{Code: "unknown_command", Message: err.Error()})
			return
		}
		if c.hub.commander == nil {
			c.reply(TypeError, errorPayload{Code: "no_robot", Message: "no robot link"})
			return
		}
		if err := c.hub.commander.SendCommand(string(cmd)); err != nil {
			c.reply(TypeError, errorPayload{Code: "send_failed", Message: err.Error()})
			return
		}
		c.reply(TypeAck, map[string]string{"command": string(cmd)})
	default:
		c.reply(TypeError, errorPayload{Code: "unknown_type", Message: "unsupported message type " + msg.Type})
	}
}

// reply queues a message for this client only. The hub may already have
// closed send, so the write is guarded.
func (c *Client) reply(typ string, payload any) {
	msg, err := encode(typ, payload)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// writePump writes queued messages, one JSON document per frame, and pings
// the peer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
