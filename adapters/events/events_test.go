package events

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/tawa/domain/entities"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	done := make(chan struct{})
	close(done)
	return &fakeToken{err: err, done: done}
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient only implements Publish; other methods panic through the nil embed
type fakeClient struct {
	mqtt.Client
	mu       sync.Mutex
	err      error
	messages []published
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return newFakeToken(c.err)
}

func TestMQTTPublisher(t *testing.T) {
	client := &fakeClient{}
	publisher := NewMQTTPublisher(client, "", zaptest.NewLogger(t))

	event := entities.IngestEvent{
		OwnerID:   "user/1",
		RecordID:  "rec-1",
		Stage:     entities.IngestStageCompleted,
		Timestamp: time.Now(),
	}
	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(client.messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(client.messages))
	}
	msg := client.messages[0]
	if msg.topic != "tawa/ingest/user_1" || msg.qos != 1 {
		t.Errorf("Unexpected topic %s qos %d", msg.topic, msg.qos)
	}

	var decoded entities.IngestEvent
	if err := json.Unmarshal(msg.payload, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.RecordID != "rec-1" || decoded.Stage != entities.IngestStageCompleted {
		t.Errorf("Unexpected payload %+v", decoded)
	}
}

func TestMQTTPublisherError(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	publisher := NewMQTTPublisher(client, "journal/{owner_id}/events", zaptest.NewLogger(t))

	err := publisher.Publish(context.Background(), entities.IngestEvent{OwnerID: "u", Stage: entities.IngestStageStored})
	if err == nil {
		t.Error("Expected publish error")
	}
	if client.messages[0].topic != "journal/u/events" {
		t.Errorf("Unexpected topic %s", client.messages[0].topic)
	}
}

func TestFormatTopic(t *testing.T) {
	tests := []struct {
		pattern, owner, want string
	}{
		{"tawa/ingest/{owner_id}", "alice", "tawa/ingest/alice"},
		{"tawa/ingest/{owner_id}", "a/b+#", "tawa/ingest/a_b__"},
		{"tawa/ingest/all", "alice", "tawa/ingest/all"},
	}
	for _, tt := range tests {
		if got := formatTopic(tt.pattern, tt.owner); got != tt.want {
			t.Errorf("formatTopic(%q, %q) = %q, want %q", tt.pattern, tt.owner, got, tt.want)
		}
	}
}

type recordingPublisher struct {
	err   error
	count int
}

func (r *recordingPublisher) Publish(ctx context.Context, event entities.IngestEvent) error {
	r.count++
	return r.err
}

func TestMulti(t *testing.T) {
	first := &recordingPublisher{err: errors.New("first down")}
	second := &recordingPublisher{}
	multi := Multi{first, nil, second}

	err := multi.Publish(context.Background(), entities.IngestEvent{Stage: entities.IngestStageStored})
	if err == nil || err.Error() != "first down" {
		t.Errorf("Expected joined error, got %v", err)
	}
	if first.count != 1 || second.count != 1 {
		t.Error("Expected every publisher to be called")
	}

	if err := (Multi{}).Publish(context.Background(), entities.IngestEvent{}); err != nil {
		t.Errorf("Expected empty fan-out to succeed, got %v", err)
	}
}

// TestClickHouseLog_Integration requires a running ClickHouse server
// (skipped if CLICKHOUSE_ADDR is not set)
func TestClickHouseLog_Integration(t *testing.T) {
	addr := os.Getenv("CLICKHOUSE_ADDR")
	if addr == "" {
		t.Skip("Skipping ClickHouse integration test - CLICKHOUSE_ADDR not set")
	}

	ctx := context.Background()
	log, err := NewClickHouseLog(ctx, ClickHouseConfig{Addr: addr, Database: "default", Username: "default"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer log.Close()

	start := time.Now().Add(-time.Second)
	event := entities.IngestEvent{OwnerID: "it-owner", Stage: entities.IngestStageCompleted, Timestamp: time.Now()}
	if err := log.Publish(ctx, event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	counts, err := log.StageCounts(ctx, start)
	if err != nil {
		t.Fatalf("StageCounts failed: %v", err)
	}
	found := false
	for _, c := range counts {
		if c.Stage == string(entities.IngestStageCompleted) && c.Count > 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected completed events, got %+v", counts)
	}
}
