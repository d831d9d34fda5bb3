// Package ws publishes robot status and counter updates to WebSocket
// observers. It is a StatusSink: the engine never blocks on a slow
// observer, slow clients just drop old frames.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mangoline.dev/internal/protocol"
	"mangoline.dev/internal/sim/belt"
)

const clientBuffer = 64

type Hub struct {
	log      *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	out chan []byte
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		clients: map[*client]struct{}{},
	}
}

func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := &client{out: make(chan []byte, clientBuffer)}
		h.mu.Lock()
		h.clients[c] = struct{}{}
		h.mu.Unlock()

		done := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(done)
			for b := range c.out {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}()

		// Reader loop: observers only listen; any inbound frame keeps the
		// connection alive, errors end it.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		// Unregister before closing the buffer: broadcasts hold the hub
		// mutex while sending, so after this no sender can reach c.out.
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c.out)
		<-done
	}
}

// ClientCount is for handlers and tests.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// PublishBox announces a box entering the belt.
func (h *Hub) PublishBox(b *belt.Box) {
	items := b.Items()
	recs := make([]protocol.ItemRecord, len(items))
	for i, it := range items {
		recs[i] = protocol.ItemRecord{ID: it.ID, X: it.X, Y: it.Y}
	}
	h.broadcastJSON(protocol.BoxMsg{
		Type:            protocol.TypeBox,
		ProtocolVersion: protocol.Version,
		BoxID:           b.ID,
		NumItems:        len(recs),
		Items:           recs,
	})
}

func (h *Hub) PublishRobotStatus(robotID int, state belt.RobotState, labelsPlaced int) {
	h.broadcastJSON(protocol.StatusMsg{
		Type:            protocol.TypeStatus,
		ProtocolVersion: protocol.Version,
		RobotID:         robotID,
		State:           state.String(),
		LabelsPlaced:    labelsPlaced,
	})
}

func (h *Hub) PublishStats(d belt.StatsDelta) {
	h.broadcastJSON(protocol.StatsMsg{
		Type:              protocol.TypeStats,
		ProtocolVersion:   protocol.Version,
		Boxes:             d.Boxes,
		Items:             d.Items,
		Labeled:           d.Labeled,
		Missed:            d.Missed,
		Failures:          d.Failures,
		BackupActivations: d.BackupActivations,
	})
}

func (h *Hub) broadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		if h.log != nil {
			h.log.Printf("ws marshal: %v", err)
		}
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		sendLatest(c.out, b)
	}
}

// sendLatest never blocks: when the client buffer is full it drops one
// stale frame to make room.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
