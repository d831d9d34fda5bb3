package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mangoline.dev/internal/protocol"
	"mangoline.dev/internal/sim/belt"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// The hub registers the client before the upgrade handler returns,
	// but give the goroutines a moment on slow machines.
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() == 0 {
		t.Fatalf("client never registered")
	}
	return conn
}

func TestHub_BroadcastsStatusAndStats(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub)

	hub.PublishRobotStatus(3, belt.RobotLabeling, 12)
	hub.PublishStats(belt.StatsDelta{Boxes: 1, Items: 11, Labeled: 9, Missed: 2})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	base, err := protocol.DecodeBase(raw)
	if err != nil || base.Type != protocol.TypeStatus {
		t.Fatalf("first frame = %s (err %v), want %s", raw, err, protocol.TypeStatus)
	}

	_, raw, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read stats: %v", err)
	}
	if base, _ = protocol.DecodeBase(raw); base.Type != protocol.TypeStats {
		t.Fatalf("second frame = %s, want %s", raw, protocol.TypeStats)
	}
}

func TestHub_PublishBoxCarriesItems(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub)

	box := belt.NewBox(5, []belt.Item{{X: 1.5, Y: -2}, {X: 0, Y: 3}})
	hub.PublishBox(box)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), `"box_id":5`) || !strings.Contains(string(raw), `"num_items":2`) {
		t.Fatalf("box frame = %s", raw)
	}
}

func TestSendLatest_DropsStaleFramesInsteadOfBlocking(t *testing.T) {
	ch := make(chan []byte, 1)
	sendLatest(ch, []byte("a"))
	sendLatest(ch, []byte("b")) // full buffer: "a" is dropped

	select {
	case got := <-ch:
		if string(got) != "b" {
			t.Fatalf("got %q, want latest frame", got)
		}
	default:
		t.Fatalf("channel empty")
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := hub.ClientCount(); n != 0 {
		t.Fatalf("clients after disconnect = %d", n)
	}
}
