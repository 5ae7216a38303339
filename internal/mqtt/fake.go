package mqtt

import (
	"sync"
)

// Fake is an in-memory Client for tests. Inject delivers a message to the
// matching subscription as if it arrived from the broker.
type Fake struct {
	mu        sync.Mutex
	handlers  map[string]Handler
	published map[string][][]byte
	connected bool
}

// NewFake creates a disconnected fake client.
func NewFake() *Fake {
	return &Fake{
		handlers:  make(map[string]Handler),
		published: make(map[string][][]byte),
	}
}

func (f *Fake) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *Fake) Subscribe(topic string, h Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = h
	return nil
}

func (f *Fake) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

func (f *Fake) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

// Inject delivers a payload to the handler subscribed to topic.
func (f *Fake) Inject(topic string, payload []byte) {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()

	if h != nil {
		h(Message{Topic: topic, Payload: payload})
	}
}

// Published returns the payloads published to a topic.
func (f *Fake) Published(topic string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.published[topic]))
	copy(out, f.published[topic])
	return out
}
