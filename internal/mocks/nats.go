package mocks

import (
	"sync"

	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
	"github.com/Billy-Davies-2/word-card-draft/internal/pubsub"
)

// MockNATSPubSub stands in for NATS JetStream: an in-memory fan-out with a bounded replay log
type MockNATSPubSub struct {
	*pubsub.PubSub

	mu          sync.RWMutex
	messages    []pubsub.Event
	maxMessages int
}

// NewMockNATSPubSub creates a mock NATS pub/sub using the in-memory implementation
func NewMockNATSPubSub() *MockNATSPubSub {
	logger.Info("Using MOCK NATS/JetStream (in-memory pub/sub) for local development")
	return &MockNATSPubSub{
		PubSub:      pubsub.New(),
		maxMessages: 1000,
	}
}

// Publish stores the event for replay and delivers it to subscribers
func (m *MockNATSPubSub) Publish(event pubsub.Event) {
	m.mu.Lock()
	m.messages = append(m.messages, event)
	if len(m.messages) > m.maxMessages {
		m.messages = m.messages[len(m.messages)-m.maxMessages:]
	}
	m.mu.Unlock()

	m.PubSub.Publish(event)
}

// SubscribeJetStream simulates a durable consumer with a plain subscription
func (m *MockNATSPubSub) SubscribeJetStream(consumerName string, handler func(pubsub.Event)) error {
	ch := m.Subscribe()
	go func() {
		for event := range ch {
			handler(event)
		}
		logger.Debug("Mock NATS: durable subscription closed", "consumer", consumerName)
	}()
	return nil
}

// Replay returns up to the last count stored events, oldest first
func (m *MockNATSPubSub) Replay(count int) []pubsub.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := len(m.messages) - count
	if start < 0 {
		start = 0
	}
	return append([]pubsub.Event(nil), m.messages[start:]...)
}

// MessageCount returns the number of stored events
func (m *MockNATSPubSub) MessageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// Close is a no-op for mock
func (m *MockNATSPubSub) Close() {}
