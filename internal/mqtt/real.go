package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/qzhari/envmon-server/pkg/config"
)

const (
	qosAtLeastOnce = 1
	connectTimeout = 10 * time.Second
)

// Real is a Client backed by a paho connection.
type Real struct {
	client paho.Client
}

// NewReal creates a client for the configured broker. The client ID gets a
// random suffix so restarts do not collide with a lingering session.
func NewReal(cfg config.MQTTConfig) *Real {
	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(fmt.Sprintf("%s-%s", cfg.ClientID, uuid.NewString()[:8])).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)

	return &Real{client: paho.NewClient(opts)}
}

// Connect dials the broker and blocks until the connection is up or failed.
func (r *Real) Connect() error {
	token := r.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("timed out connecting to MQTT broker")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

// Subscribe registers a handler for a topic.
func (r *Real) Subscribe(topic string, h Handler) error {
	token := r.client.Subscribe(topic, qosAtLeastOnce, func(_ paho.Client, msg paho.Message) {
		h(Message{Topic: msg.Topic(), Payload: msg.Payload()})
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return nil
}

// Publish sends a payload to a topic.
func (r *Real) Publish(topic string, payload []byte) error {
	token := r.client.Publish(topic, qosAtLeastOnce, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Disconnect closes the connection, letting in-flight work settle.
func (r *Real) Disconnect() {
	r.client.Disconnect(250)
}
