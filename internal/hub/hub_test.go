package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cybot.radar/internal/perception/events"
	"github.com/banshee-data/cybot.radar/internal/perception/geometry"
	"github.com/banshee-data/cybot.radar/internal/perception/pipeline"
	"github.com/banshee-data/cybot.radar/internal/perception/pose"
)

type fakeSnapshot struct {
	pose      pose.Pose
	obstacles pipeline.ObstacleList
}

func (f fakeSnapshot) Pose() pose.Pose                  { return f.pose }
func (f fakeSnapshot) Obstacles() pipeline.ObstacleList { return f.obstacles }

type fakeCommander struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeCommander) SendCommand(cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeCommander) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeCommander) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func startHub(t *testing.T, snap Snapshotter, cmd Commander) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	h := New(snap, cmd)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
	}()
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return h, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readInitial consumes the welcome, pose and obstacles messages.
func readInitial(t *testing.T, conn *websocket.Conn) []received {
	t.Helper()
	return []received{readMsg(t, conn), readMsg(t, conn), readMsg(t, conn)}
}

func TestHub_InitialStateOnConnect(t *testing.T) {
	snap := fakeSnapshot{
		pose: pose.Pose{X: 10, Y: -20, HeadingDeg: 45},
		obstacles: pipeline.ObstacleList{
			SweepID:   "sweep-1",
			Obstacles: []geometry.Obstacle{{BearingCenterDeg: 90, ClosestRangeCM: 40, ChordWidthCM: 12}},
		},
	}
	_, srv, _ := startHub(t, snap, nil)
	conn := dial(t, srv)

	initial := readInitial(t, conn)
	assert.Equal(t, TypeWelcome, initial[0].Type)
	assert.Equal(t, TypePose, initial[1].Type)
	assert.Equal(t, TypeObstacles, initial[2].Type)

	var p pose.Pose
	require.NoError(t, json.Unmarshal(initial[1].Payload, &p))
	assert.Equal(t, snap.pose, p)

	var list pipeline.ObstacleList
	require.NoError(t, json.Unmarshal(initial[2].Payload, &list))
	assert.Equal(t, "sweep-1", list.SweepID)
	require.Len(t, list.Obstacles, 1)
	assert.Equal(t, 40.0, list.Obstacles[0].ClosestRangeCM)
}

func TestHub_WelcomeOnlyWithoutSnapshot(t *testing.T) {
	h, srv, _ := startHub(t, nil, nil)
	conn := dial(t, srv)

	msg := readMsg(t, conn)
	assert.Equal(t, TypeWelcome, msg.Type)

	// The next message must be a broadcast, not initial state.
	h.PublishStatus(events.Status{BumpLeft: true})
	msg = readMsg(t, conn)
	assert.Equal(t, TypeStatus, msg.Type)
}

func TestHub_BroadcastsSinkOutputs(t *testing.T) {
	h, srv, _ := startHub(t, fakeSnapshot{}, nil)
	a := dial(t, srv)
	b := dial(t, srv)
	readInitial(t, a)
	readInitial(t, b)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	var sink pipeline.Sink = h
	sink.PublishPose(pose.Pose{X: 1, Y: 2, HeadingDeg: 3})
	sink.PublishTrail(pose.TrailSegment{To: pose.Pose{X: 1}})
	sink.PublishBump(pipeline.BumpMarker{Side: events.BumpLeft, X: 5, Y: 6})
	sink.PublishObstacles(pipeline.ObstacleList{SweepID: "s2", Obstacles: []geometry.Obstacle{}})
	sink.PublishStatus(events.Status{PingCM: 33})

	want := []string{TypePose, TypeTrail, TypeBump, TypeObstacles, TypeStatus}
	for _, conn := range []*websocket.Conn{a, b} {
		var got []string
		for range want {
			got = append(got, readMsg(t, conn).Type)
		}
		assert.Equal(t, want, got)
	}

	sent, dropped := h.Stats()
	assert.Equal(t, int64(5), sent)
	assert.Zero(t, dropped)
}

func TestHub_BumpPayload(t *testing.T) {
	h, srv, _ := startHub(t, nil, nil)
	conn := dial(t, srv)
	readMsg(t, conn)

	h.PublishBump(pipeline.BumpMarker{Side: events.BumpRight, X: 7.5, Y: -2})
	msg := readMsg(t, conn)
	require.Equal(t, TypeBump, msg.Type)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "right", payload["side"])
	assert.Equal(t, 7.5, payload["x"])
}

func TestHub_PingPong(t *testing.T) {
	_, srv, _ := startHub(t, nil, nil)
	conn := dial(t, srv)
	readMsg(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping", Time: 1234}))
	msg := readMsg(t, conn)
	require.Equal(t, TypePong, msg.Type)

	var p pongPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, int64(1234), p.Time)
	assert.NotZero(t, p.ServerTime)
}

func TestHub_Commands(t *testing.T) {
	cmd := &fakeCommander{}
	_, srv, _ := startHub(t, nil, cmd)
	conn := dial(t, srv)
	readMsg(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "command", Command: "scan"}))
	msg := readMsg(t, conn)
	assert.Equal(t, TypeAck, msg.Type)
	assert.Equal(t, []string{"m"}, cmd.Sent())

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "command", Command: "x"}))
	msg = readMsg(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Contains(t, string(msg.Payload), "unknown_command")

	cmd.fail(errors.New("link down"))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "command", Command: "w"}))
	msg = readMsg(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Contains(t, string(msg.Payload), "send_failed")
}

func TestHub_CommandWithoutRobot(t *testing.T) {
	_, srv, _ := startHub(t, nil, nil)
	conn := dial(t, srv)
	readMsg(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "command", Command: "w"}))
	msg := readMsg(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Contains(t, string(msg.Payload), "no_robot")
}

func TestHub_InvalidClientMessages(t *testing.T) {
	_, srv, _ := startHub(t, nil, nil)
	conn := dial(t, srv)
	readMsg(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg := readMsg(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Contains(t, string(msg.Payload), "invalid_format")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe"}))
	msg = readMsg(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Contains(t, string(msg.Payload), "unknown_type")
}

func TestHub_ClientDisconnect(t *testing.T) {
	h, srv, _ := startHub(t, nil, nil)
	conn := dial(t, srv)
	readMsg(t, conn)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CancelClosesClients(t *testing.T) {
	h, srv, cancel := startHub(t, nil, nil)
	conn := dial(t, srv)
	readMsg(t, conn)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_PublishWithoutRunDropsWhenFull(t *testing.T) {
	h := New(nil, nil)
	for i := 0; i < broadcastBuffer+10; i++ {
		h.PublishPose(pose.Pose{X: float64(i)})
	}
	_, dropped := h.Stats()
	assert.Equal(t, int64(10), dropped)
}

func TestHub_NewClientSkipsQueuedOlderSweep(t *testing.T) {
	snap := fakeSnapshot{obstacles: pipeline.ObstacleList{SweepID: "sweep-2"}}
	h := New(snap, nil)
	h.PublishObstacles(pipeline.ObstacleList{SweepID: "sweep-1"})

	existing := &Client{hub: h, send: make(chan []byte, sendBufferSize), id: "existing"}
	h.clients[existing] = true

	c := &Client{hub: h, send: make(chan []byte, sendBufferSize), id: "new"}
	h.add(c)

	assert.Empty(t, h.broadcast)
	require.Len(t, existing.send, 1)
	assert.Contains(t, string(<-existing.send), `"sweep-1"`)

	require.Len(t, c.send, 3)
	var types []string
	for i := 0; i < 3; i++ {
		var msg received
		require.NoError(t, json.Unmarshal(<-c.send, &msg))
		types = append(types, msg.Type)
		if msg.Type == TypeObstacles {
			var list pipeline.ObstacleList
			require.NoError(t, json.Unmarshal(msg.Payload, &list))
			assert.Equal(t, "sweep-2", list.SweepID)
		}
	}
	assert.Equal(t, []string{TypeWelcome, TypePose, TypeObstacles}, types)
}

func TestHub_CheckOrigin(t *testing.T) {
	h := New(nil, nil)
	h.AllowOrigins("localhost:5173", " ")

	cases := []struct {
		name   string
		origin string
		want   bool
	}{
		{"no origin", "", true},
		{"same host", "http://robot.local:8080", true},
		{"same host case", "http://ROBOT.local:8080", true},
		{"allowed dev server", "http://localhost:5173", true},
		{"other port", "http://robot.local:9000", false},
		{"other site", "https://example.com", false},
		{"garbage", "://", false},
		{"null", "null", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "http://robot.local:8080/ws", nil)
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}
			assert.Equal(t, tc.want, h.checkOrigin(r))
		})
	}
}

func TestHub_RejectsCrossOriginUpgrade(t *testing.T) {
	h, srv, _ := startHub(t, nil, &fakeCommander{})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Nil(t, conn)

	same := http.Header{"Origin": {srv.URL}}
	conn, _, err = websocket.DefaultDialer.Dial(url, same)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, TypeWelcome, readMsg(t, conn).Type)
	assert.Equal(t, 1, h.ClientCount())
}
