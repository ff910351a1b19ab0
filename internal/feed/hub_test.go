package feed

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func TestHubDeliversEvents(t *testing.T) {
	hub := NewHub(zap.NewNop())
	server := httptest.NewServer(hub)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The subscriber registers shortly after the upgrade completes, so
	// keep publishing until a frame lands.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				hub.Publish(EventSessionStarted, map[string]string{"sessionId": "room-1"})
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.Type != EventSessionStarted {
		t.Fatalf("type = %q, want %q", event.Type, EventSessionStarted)
	}
}

func TestHubDropsOnFullBuffer(t *testing.T) {
	hub := NewHub(zap.NewNop())
	sub := &subscriber{send: make(chan []byte, 1)}
	hub.subs[sub] = struct{}{}

	hub.Publish(EventPresence, map[string]bool{"isOnline": true})
	hub.Publish(EventPresence, map[string]bool{"isOnline": false})

	if len(sub.send) != 1 {
		t.Fatalf("buffered = %d, want 1", len(sub.send))
	}
}
