package serialmux

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDisabledSerialMux_UnsubscribeClosesChannel(t *testing.T) {
	d := NewDisabledSerialMux()
	id, ch := d.Subscribe()

	done := make(chan struct{})
	go func() {
		_, ok := <-ch
		if ok {
			t.Errorf("expected channel to be closed on unsubscribe")
		}
		close(done)
	}()

	// Give goroutine a moment to start and block on read
	time.Sleep(10 * time.Millisecond)

	d.Unsubscribe(id)

	select {
	case <-done:
		// success
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for subscriber to be unblocked after Unsubscribe")
	}
}

func TestDisabledSerialMux_CloseClosesAllChannels(t *testing.T) {
	d := NewDisabledSerialMux()
	id1, ch1 := d.Subscribe()
	_, ch2 := d.Subscribe()

	done1 := make(chan struct{})
	done2 := make(chan struct{})

	go func() {
		_, ok := <-ch1
		if ok {
			t.Errorf("expected ch1 to be closed on Close")
		}
		close(done1)
	}()

	go func() {
		_, ok := <-ch2
		if ok {
			t.Errorf("expected ch2 to be closed on Close")
		}
		close(done2)
	}()

	// Give goroutines a moment to start and block on read
	time.Sleep(10 * time.Millisecond)

	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	select {
	case <-done1:
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for ch1 to be closed after Close")
	}

	select {
	case <-done2:
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for ch2 to be closed after Close")
	}

	// Ensure unsubscribing a non-existent id is a no-op (should not panic)
	d.Unsubscribe(id1)
}

func TestDisabledSerialMux_SendCommandReportsNoRobot(t *testing.T) {
	d := NewDisabledSerialMux()
	if err := d.SendCommand("m"); err != ErrNoRobot {
		t.Errorf("SendCommand error = %v, want ErrNoRobot", err)
	}
}

func TestDisabledSerialMux_SubscribeAfterClose(t *testing.T) {
	d := NewDisabledSerialMux()
	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
	_, ch := d.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Close")
	}
}

func TestDisabledSerialMux_AdminRoute(t *testing.T) {
	d := NewDisabledSerialMux()
	d.Subscribe()
	mux := http.NewServeMux()
	d.AttachAdminRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/robot-disabled", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Link        string `json:"link"`
		Subscribers int    `json:"subscribers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Link != "disabled" || body.Subscribers != 1 {
		t.Errorf("body = %+v, want disabled with 1 subscriber", body)
	}
}
