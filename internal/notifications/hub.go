package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/farmarket/farmarket-backend/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	sendBufferSize = 16
)

// Hub fans notifications out to the websocket connections of each user.
// A user may hold several connections (multiple tabs or devices).
type Hub struct {
	mu       sync.RWMutex
	clients  map[uuid.UUID]map[*hubClient]struct{}
	upgrader websocket.Upgrader
	logg     *logger.Logger
}

type hubClient struct {
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
}

// NewHub builds an empty hub.
func NewHub(logg *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]map[*hubClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logg: logg,
	}
}

// Serve upgrades the request and keeps the connection registered until it
// closes. The caller must have authenticated the user already.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &hubClient{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
	h.register(client)

	go h.writePump(client)
	go h.readPump(r.Context(), client)
	return nil
}

// Push delivers a notification to every live connection of the user.
// Connections with a full send buffer are dropped rather than blocked on.
func (h *Hub) Push(userID uuid.UUID, notification *NotificationDTO) {
	payload, err := json.Marshal(notification)
	if err != nil {
		return
	}

	h.mu.RLock()
	conns := make([]*hubClient, 0, len(h.clients[userID]))
	for client := range h.clients[userID] {
		conns = append(conns, client)
	}
	h.mu.RUnlock()

	for _, client := range conns {
		select {
		case client.send <- payload:
		default:
			h.unregister(client)
		}
	}
}

func (h *Hub) register(client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*hubClient]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
}

func (h *Hub) unregister(client *hubClient) {
	h.mu.Lock()
	set, ok := h.clients[client.userID]
	if ok {
		if _, registered := set[client]; registered {
			delete(set, client)
			close(client.send)
		}
		if len(set) == 0 {
			delete(h.clients, client.userID)
		}
	}
	h.mu.Unlock()
	_ = client.conn.Close()
}

func (h *Hub) writePump(client *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.unregister(client)
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(client)
				return
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed.
func (h *Hub) readPump(ctx context.Context, client *hubClient) {
	defer h.unregister(client)

	client.conn.SetReadLimit(512)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if h.logg != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logg.Warn(ctx, "websocket closed unexpectedly")
			}
			return
		}
	}
}
