package protocol

import (
	"encoding/json"
	"time"

	"github.com/qzhari/envmon-server/internal/store"
)

// ReadingMessage is the internal envelope for ingested readings on Kafka.
type ReadingMessage struct {
	MessageID  string        `json:"message_id"`
	ReceivedAt time.Time     `json:"received_at"`
	Reading    store.Reading `json:"reading"`
}

// RelayEvent announces a relay transition on the relay events topic.
type RelayEvent struct {
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"` // RELAY_ON, RELAY_OFF
	RelayState  bool      `json:"relay_state"`
	Message     string    `json:"message"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	CO2         float64   `json:"co2"`
	OccurredAt  time.Time `json:"occurred_at"`
}

const (
	RelayTypeOn  = "RELAY_ON"
	RelayTypeOff = "RELAY_OFF"
)

// EncodeReadingMessage encodes a ReadingMessage to JSON
func EncodeReadingMessage(msg *ReadingMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeReadingMessage decodes JSON to ReadingMessage
func DecodeReadingMessage(data []byte) (*ReadingMessage, error) {
	var msg ReadingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeRelayEvent encodes a RelayEvent to JSON
func EncodeRelayEvent(event *RelayEvent) ([]byte, error) {
	return json.Marshal(event)
}

// DecodeRelayEvent decodes JSON to RelayEvent
func DecodeRelayEvent(data []byte) (*RelayEvent, error) {
	var event RelayEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
