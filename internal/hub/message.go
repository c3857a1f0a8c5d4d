package hub

import (
	"encoding/json"
	"time"
)

// Message types pushed to renderers.
const (
	TypeWelcome   = "welcome"
	TypeObstacles = "obstacles"
	TypePose      = "pose"
	TypeTrail     = "trail"
	TypeBump      = "bump"
	TypeStatus    = "status"
	TypePong      = "pong"
	TypeAck       = "ack"
	TypeError     = "error"
)

// Message is the envelope for everything sent to a client.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// ClientMessage is what a client may send: a ping or a robot command.
type ClientMessage struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	Time    int64  `json:"time,omitempty"`
}

type pongPayload struct {
	Time       int64 `json:"time"`
	ServerTime int64 `json:"server_time"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encode(typ string, payload any) ([]byte, error) {
	return json.Marshal(Message{Type: typ, Timestamp: time.Now().UTC(), Payload: payload})
}
