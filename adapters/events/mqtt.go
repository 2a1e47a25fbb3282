package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/satriahrh/tawa/domain/entities"
	"github.com/satriahrh/tawa/domain/repositories"
)

const (
	DefaultTopic   = "tawa/ingest/{owner_id}"
	publishTimeout = 5 * time.Second
)

// MQTTConfig holds MQTT connection configuration
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Topic may contain {owner_id}, replaced per event
	Topic string
}

// MQTTPublisher publishes ingest events as JSON to an MQTT broker
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	logger *zap.Logger
}

var _ repositories.IngestEventPublisher = (*MQTTPublisher)(nil)

// ConnectMQTT connects to the broker and returns a publisher
func ConnectMQTT(config MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	if config.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	if config.ClientID == "" {
		config.ClientID = fmt.Sprintf("tawa-server-%d", time.Now().UnixNano())
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("MQTT connection established", zap.String("broker", config.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return NewMQTTPublisher(client, config.Topic, logger), nil
}

// NewMQTTPublisher wraps an already connected client
func NewMQTTPublisher(client mqtt.Client, topic string, logger *zap.Logger) *MQTTPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &MQTTPublisher{
		client: client,
		topic:  topic,
		logger: logger,
	}
}

// Publish implements repositories.IngestEventPublisher
func (p *MQTTPublisher) Publish(ctx context.Context, event entities.IngestEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal ingest event: %w", err)
	}

	topic := formatTopic(p.topic, event.OwnerID)
	token := p.client.Publish(topic, 1, false, payload)

	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish ingest event: %w", err)
	}

	p.logger.Debug("Published ingest event",
		zap.String("topic", topic),
		zap.String("stage", string(event.Stage)))
	return nil
}

// Close disconnects from the broker
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
	p.logger.Info("MQTT client disconnected")
}

// formatTopic replaces the {owner_id} placeholder with the owner, made safe
// for a single topic level
func formatTopic(pattern, ownerID string) string {
	owner := strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(ownerID)
	return strings.ReplaceAll(pattern, "{owner_id}", owner)
}
