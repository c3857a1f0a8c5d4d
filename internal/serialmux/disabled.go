package serialmux

import (
	"context"
	"net/http"
	"sync"

	"github.com/banshee-data/cybot.radar/internal/httputil"
)

// DisabledSerialMux stands in for the robot link when -transport=none. No
// line ever arrives; subscriber channels only close, on Unsubscribe or Close,
// so a bridge reading from one exits cleanly on shutdown.
type DisabledSerialMux struct {
	mu     sync.Mutex
	subs   map[string]chan string
	closed bool
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{subs: make(map[string]chan string)}
}

func (d *DisabledSerialMux) Subscribe() (string, chan string) {
	id, ch := randomID(), make(chan string)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		close(ch)
	} else {
		d.subs[id] = ch
	}
	return id, ch
}

func (d *DisabledSerialMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drop(id)
}

// SendCommand always fails with ErrNoRobot.
func (d *DisabledSerialMux) SendCommand(string) error { return ErrNoRobot }

// Monitor blocks until ctx is done.
func (d *DisabledSerialMux) Monitor(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (d *DisabledSerialMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for id := range d.subs {
		d.drop(id)
	}
	return nil
}

// drop closes and forgets one subscriber. Caller holds d.mu.
func (d *DisabledSerialMux) drop(id string) {
	if ch, ok := d.subs[id]; ok {
		close(ch)
		delete(d.subs, id)
	}
}

// AttachAdminRoutes reports the link state so operators can tell a missing
// robot from a stalled one.
func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/robot-disabled", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		n := len(d.subs)
		d.mu.Unlock()
		httputil.WriteJSONOK(w, map[string]any{"link": "disabled", "subscribers": n})
	})
}
