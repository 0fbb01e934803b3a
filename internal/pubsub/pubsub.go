package pubsub

import (
	"sync"
	"time"

	"github.com/Billy-Davies-2/word-card-draft/internal/draft"
	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
	"github.com/Billy-Davies-2/word-card-draft/internal/models"
)

// Session lifecycle event types. Draft events reuse the engine's type names.
const (
	EventSessionStarted   = "session:start"
	EventSessionAbandoned = "session:abandon"
)

// Event is the envelope broadcast to live clients and over NATS
type Event struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"sessionId,omitempty"`
	Timestamp time.Time              `json:"ts"`
	Draft     *draft.Event           `json:"draft,omitempty"`
	Session   *models.SessionSummary `json:"session,omitempty"`
}

// FromDraft wraps an engine event for the given session
func FromDraft(sessionID string, ev draft.Event) Event {
	return Event{
		Type:      string(ev.Type),
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Draft:     &ev,
	}
}

// SessionEvent builds a lifecycle event
func SessionEvent(typ string, sum models.SessionSummary) Event {
	return Event{
		Type:      typ,
		SessionID: sum.ID,
		Timestamp: time.Now().UTC(),
		Session:   &sum,
	}
}

// Upstream is implemented by cross-instance transports (NATS, embedded NATS, mocks)
type Upstream interface {
	Publish(Event)
	Subscribe() chan Event
	Unsubscribe(chan Event)
}

// fanout delivers events to buffered subscriber channels, dropping for slow readers
type fanout struct {
	mu          sync.RWMutex
	subscribers []chan Event
	buffer      int
}

func (f *fanout) subscribe() chan Event {
	ch := make(chan Event, f.buffer)
	f.mu.Lock()
	f.subscribers = append(f.subscribers, ch)
	n := len(f.subscribers)
	f.mu.Unlock()

	logger.Debug("PubSub: New subscriber added", "totalSubscribers", n)
	return ch
}

func (f *fanout) unsubscribe(ch chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, sub := range f.subscribers {
		if sub == ch {
			close(ch)
			f.subscribers = append(f.subscribers[:i], f.subscribers[i+1:]...)
			return
		}
	}
}

// broadcast returns how many subscribers missed the event
func (f *fanout) broadcast(event Event) int {
	// sends never block, so holding the read lock keeps unsubscribe from closing a channel mid-send
	f.mu.RLock()
	defer f.mu.RUnlock()

	dropped := 0
	for _, ch := range f.subscribers {
		select {
		case ch <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		logger.Warn("PubSub: Skipping slow subscribers", "type", event.Type, "dropped", dropped)
	}
	return dropped
}

func (f *fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subscribers {
		close(sub)
	}
	f.subscribers = nil
}

func (f *fanout) count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

// PubSub is the in-process event hub used by the HTTP, SSE, WebSocket and gRPC layers
type PubSub struct {
	local    fanout
	upstream Upstream
}

// New creates a local-only PubSub
func New() *PubSub {
	return &PubSub{local: fanout{buffer: 10}}
}

// NewWithUpstream creates a PubSub bridged to an upstream transport.
// Publish goes to the upstream, which broadcasts back to every instance including this one.
func NewWithUpstream(upstream Upstream) *PubSub {
	ps := &PubSub{local: fanout{buffer: 10}, upstream: upstream}

	ch := upstream.Subscribe()
	go func() {
		for event := range ch {
			logger.Debug("PubSub: Received event from upstream, forwarding to local", "type", event.Type)
			ps.local.broadcast(event)
		}
		logger.Debug("PubSub: Upstream channel closed")
	}()

	return ps
}

// Subscribe returns a channel receiving every subsequent event
func (ps *PubSub) Subscribe() chan Event {
	return ps.local.subscribe()
}

// Unsubscribe closes and removes a subscriber channel
func (ps *PubSub) Unsubscribe(ch chan Event) {
	ps.local.unsubscribe(ch)
}

// Publish sends an event to the upstream if configured, otherwise to local subscribers
func (ps *PubSub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if ps.upstream != nil {
		ps.upstream.Publish(event)
		return
	}
	ps.local.broadcast(event)
}

// SubscriberCount returns the number of local subscribers
func (ps *PubSub) SubscriberCount() int {
	return ps.local.count()
}
