package hub

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/cybot.radar/internal/monitoring"
)

func (h *Hub) newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

// AllowOrigins permits browser pages served from the given hosts (host or
// host:port, e.g. a local dev server) to connect. Pages from the hub's own
// host are always allowed. Call before serving.
func (h *Hub) AllowOrigins(hosts ...string) {
	for _, host := range hosts {
		if host = strings.TrimSpace(host); host != "" {
			h.origins[strings.ToLower(host)] = true
		}
	}
}

// checkOrigin rejects cross-site pages; clients can drive the robot.
// Requests without an Origin header come from non-browser clients.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return h.origins[strings.ToLower(u.Host)]
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("hub: upgrade from %s: %v", r.RemoteAddr, err)
		return
	}

	c := newClient(h, conn, r.RemoteAddr)
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
