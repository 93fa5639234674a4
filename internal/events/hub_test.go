package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/petermazzocco/photostockage/internal/auth"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, hub *Hub, url string, want int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() < want && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Clients() < want {
		t.Fatalf("listener not registered")
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return msg
}

func TestHub_BroadcastsToEveryListener(t *testing.T) {
	hub, url := startHub(t)
	a := dial(t, hub, url, 1)
	b := dial(t, hub, url, 2)

	hub.Signal()
	for _, conn := range []*websocket.Conn{a, b} {
		if msg := readMessage(t, conn); msg.Type != TypeSessionChanged {
			t.Fatalf("unexpected message %+v", msg)
		}
	}
}

func TestHub_AttachForwardsBrokerSignals(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url, 1)

	broker := auth.NewLocalBroker()
	detach := hub.Attach(broker)
	defer detach()

	session := auth.NewSynchronizer(auth.NewMemoryStore(), broker, zerolog.Nop())
	if err := session.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != TypeSessionChanged {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url, 1)
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Clients() != 0 {
		t.Fatalf("listener still registered")
	}
}

func TestHub_SignalsCoalesce(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Signal()
	hub.Signal()
	hub.Signal()
	if len(hub.signals) != 1 {
		t.Fatalf("expected one pending signal, got %d", len(hub.signals))
	}
}
