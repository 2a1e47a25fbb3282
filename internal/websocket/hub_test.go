package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/tawa/domain/entities"
)

func setupTestHub(t testing.TB) (*Hub, *zap.Logger) {
	logger := zaptest.NewLogger(t)
	hub := NewHub(logger)
	return hub, logger
}

// startHubServer serves /ws with the owner taken from the query string.
func startHubServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub, logger := setupTestHub(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocketWithAuth(hub, c, c.QueryParam("owner"), logger)
	})
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, owner string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?owner=" + owner
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode message %s: %v", data, err)
	}
	return msg
}

func waitForClients(t *testing.T, hub *Hub, owner string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount(owner) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Expected %d clients for %s, got %d", want, owner, hub.ClientCount(owner))
}

func TestHub_NewHub(t *testing.T) {
	hub, _ := setupTestHub(t)

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.clients == nil {
		t.Error("Hub clients map not initialized")
	}
	if hub.register == nil {
		t.Error("Hub register channel not initialized")
	}
	if hub.unregister == nil {
		t.Error("Hub unregister channel not initialized")
	}
}

func TestHub_ConnectedGreeting(t *testing.T) {
	_, server := startHubServer(t)
	conn := dial(t, server, "user-1")

	msg := readJSON(t, conn)
	if msg["type"] != string(MessageTypeConnected) {
		t.Errorf("Expected connected message, got %v", msg["type"])
	}
	if msg["owner_id"] != "user-1" {
		t.Errorf("Expected owner_id user-1, got %v", msg["owner_id"])
	}
}

func TestHub_PublishReachesOnlyOwner(t *testing.T) {
	hub, server := startHubServer(t)

	alice := dial(t, server, "alice")
	bob := dial(t, server, "bob")
	readJSON(t, alice)
	readJSON(t, bob)
	waitForClients(t, hub, "alice", 1)
	waitForClients(t, hub, "bob", 1)

	event := entities.IngestEvent{
		OwnerID:   "alice",
		RecordID:  "rec-1",
		AudioPath: "audio/alice/recording-1.wav",
		Stage:     entities.IngestStageTranscribed,
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := hub.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	msg := readJSON(t, alice)
	if msg["type"] != string(MessageTypeIngestProgress) {
		t.Errorf("Expected ingest_progress, got %v", msg["type"])
	}
	if msg["stage"] != string(entities.IngestStageTranscribed) {
		t.Errorf("Expected stage transcribed, got %v", msg["stage"])
	}
	if msg["record_id"] != "rec-1" {
		t.Errorf("Expected record_id rec-1, got %v", msg["record_id"])
	}
	if msg["timestamp"] != "2024-01-02T03:04:05Z" {
		t.Errorf("Expected event timestamp, got %v", msg["timestamp"])
	}

	bob.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := bob.ReadMessage(); err == nil {
		t.Errorf("bob should not receive alice's progress, got %s", data)
	}
}

func TestHub_PublishFansOutToEverySocket(t *testing.T) {
	hub, server := startHubServer(t)

	first := dial(t, server, "carol")
	second := dial(t, server, "carol")
	readJSON(t, first)
	readJSON(t, second)
	waitForClients(t, hub, "carol", 2)

	event := entities.IngestEvent{OwnerID: "carol", Stage: entities.IngestStageCompleted}
	if err := hub.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readJSON(t, conn)
		if msg["stage"] != string(entities.IngestStageCompleted) {
			t.Errorf("Expected completed stage, got %v", msg["stage"])
		}
	}
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub, _ := setupTestHub(t)

	err := hub.Publish(context.Background(), entities.IngestEvent{OwnerID: "nobody", Stage: entities.IngestStageStored})
	if err != nil {
		t.Errorf("Publish to an owner without sockets should not fail, got: %v", err)
	}
}

func TestHub_PingPong(t *testing.T) {
	_, server := startHubServer(t)
	conn := dial(t, server, "dave")
	readJSON(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","data":"hi"}`)); err != nil {
		t.Fatalf("Failed to write ping: %v", err)
	}

	msg := readJSON(t, conn)
	if msg["type"] != string(MessageTypePong) {
		t.Errorf("Expected pong, got %v", msg["type"])
	}
	if msg["data"] != "hi" {
		t.Errorf("Expected echoed data, got %v", msg["data"])
	}
}

func TestHub_InvalidClientMessage(t *testing.T) {
	_, server := startHubServer(t)
	conn := dial(t, server, "erin")
	readJSON(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"audio_chunk"}`)); err != nil {
		t.Fatalf("Failed to write message: %v", err)
	}

	msg := readJSON(t, conn)
	if msg["type"] != string(MessageTypeError) {
		t.Errorf("Expected error message, got %v", msg["type"])
	}
	if msg["code"] != "invalid_message" {
		t.Errorf("Expected invalid_message code, got %v", msg["code"])
	}
}

func TestHub_UnregisterOnClose(t *testing.T) {
	hub, server := startHubServer(t)
	conn := dial(t, server, "frank")
	readJSON(t, conn)
	waitForClients(t, hub, "frank", 1)

	conn.Close()
	waitForClients(t, hub, "frank", 0)
}

func TestHub_PublishDropsWhenBufferFull(t *testing.T) {
	hub, logger := setupTestHub(t)

	client := &Client{
		hub:     hub,
		ownerID: "slow",
		send:    make(chan WriteData, 1),
		logger:  logger,
	}
	hub.clients["slow"] = map[*Client]struct{}{client: {}}

	event := entities.IngestEvent{OwnerID: "slow", Stage: entities.IngestStageStored}
	for i := 0; i < 3; i++ {
		if err := hub.Publish(context.Background(), event); err != nil {
			t.Fatalf("Publish returned error: %v", err)
		}
	}

	if got := len(client.send); got != 1 {
		t.Errorf("Expected 1 buffered message, got %d", got)
	}
}
