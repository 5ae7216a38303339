// Package mqtt is the transport between the server and the remote device.
package mqtt

// Message is one received MQTT message.
type Message struct {
	Topic   string
	Payload []byte
}

// Handler processes a received message.
type Handler func(Message)

// Client is the minimal broker surface the server needs. Real connects to a
// broker; Fake drives handlers directly in tests.
type Client interface {
	Connect() error
	Subscribe(topic string, h Handler) error
	Publish(topic string, payload []byte) error
	Disconnect()
}

// CommandPublisher publishes device commands on a fixed topic. It satisfies
// control.CommandPublisher.
type CommandPublisher struct {
	client Client
	topic  string
}

// NewCommandPublisher binds a client to the command topic.
func NewCommandPublisher(client Client, topic string) *CommandPublisher {
	return &CommandPublisher{client: client, topic: topic}
}

// PublishCommand sends a config command payload to the device.
func (p *CommandPublisher) PublishCommand(payload []byte) error {
	return p.client.Publish(p.topic, payload)
}
