package notifications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/farmarket/farmarket-backend/pkg/logger"
)

func dialHub(t *testing.T, hub *Hub, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.Serve(w, r, userID); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubPushReachesConnectedUser(t *testing.T) {
	hub := NewHub(logger.New(logger.Options{ServiceName: "test"}))
	userID := uuid.New()
	conn := dialHub(t, hub, userID)

	notification := &NotificationDTO{ID: uuid.New(), Title: "Order confirmed"}
	// give the server a moment to register the connection
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		registered := len(hub.clients[userID]) > 0
		hub.mu.RUnlock()
		if registered || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	hub.Push(userID, notification)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got NotificationDTO
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != notification.ID || got.Title != notification.Title {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestHubPushToUnknownUserIsNoop(t *testing.T) {
	hub := NewHub(logger.New(logger.Options{ServiceName: "test"}))
	hub.Push(uuid.New(), &NotificationDTO{ID: uuid.New()})
}
