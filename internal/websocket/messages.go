package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/tawa/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeConnected      MessageType = "connected"
	MessageTypeIngestProgress MessageType = "ingest_progress"
	MessageTypePing           MessageType = "ping"
	MessageTypePong           MessageType = "pong"
	MessageTypeError          MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// ConnectedMessage is sent once the socket is registered with the hub
type ConnectedMessage struct {
	BaseMessage
	OwnerID string `json:"owner_id"`
}

// IngestProgressMessage reports a pipeline stage of one upload
type IngestProgressMessage struct {
	BaseMessage
	RecordID  string `json:"record_id,omitempty"`
	AudioPath string `json:"audio_path,omitempty"`
	Stage     string `json:"stage"`
	Detail    string `json:"detail,omitempty"`
}

// PingMessage is a client keepalive
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage answers a PingMessage
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage reports a protocol error to the client
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator parses and validates inbound client messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage decodes an inbound message. Only pings are accepted from clients.
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}
	if base.Type == "" {
		return nil, fmt.Errorf("message type is required")
	}

	switch base.Type {
	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil
	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateConnectedMessage creates the greeting sent after registration
func CreateConnectedMessage(ownerID string) *ConnectedMessage {
	return &ConnectedMessage{
		BaseMessage: newBase(MessageTypeConnected),
		OwnerID:     ownerID,
	}
}

// CreateIngestProgressMessage converts an ingest event to its socket form
func CreateIngestProgressMessage(event entities.IngestEvent) *IngestProgressMessage {
	base := newBase(MessageTypeIngestProgress)
	if !event.Timestamp.IsZero() {
		base.Timestamp = event.Timestamp.Format(time.RFC3339)
	}
	return &IngestProgressMessage{
		BaseMessage: base,
		RecordID:    event.RecordID,
		AudioPath:   event.AudioPath,
		Stage:       string(event.Stage),
		Detail:      event.Detail,
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}
