package pubsub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
)

// StreamOptions describes the JetStream stream backing the event subject
type StreamOptions struct {
	Name    string
	Subject string
	Storage nats.StorageType
	MaxAge  time.Duration
}

// NATSPubSub implements Upstream over NATS JetStream
type NATSPubSub struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	local   fanout
	sub     *nats.Subscription
}

// NewNATSPubSub connects to an external NATS server and ensures a file-backed stream exists
func NewNATSPubSub(natsURL, subject, stream string) (*NATSPubSub, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("word-card-draft"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return newJetStreamPubSub(nc, StreamOptions{
		Name:    stream,
		Subject: subject,
		Storage: nats.FileStorage,
		MaxAge:  0, // keep events for replay
	})
}

func newJetStreamPubSub(nc *nats.Conn, opts StreamOptions) (*NATSPubSub, error) {
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if opts.Name == "" {
		opts.Name = "DRAFT_EVENTS"
	}
	if _, err := js.StreamInfo(opts.Name); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     opts.Name,
			Subjects: []string{opts.Subject},
			Storage:  opts.Storage,
			MaxAge:   opts.MaxAge,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream: %w", err)
		}
		logger.Info("JetStream stream created", "stream", opts.Name, "subject", opts.Subject)
	}

	p := &NATSPubSub{
		nc:      nc,
		js:      js,
		subject: opts.Subject,
		local:   fanout{buffer: 100},
	}

	// ephemeral push consumer: every instance sees every new event
	p.sub, err = js.Subscribe(opts.Subject, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Error("Failed to unmarshal event from JetStream", "error", err)
			msg.Nak()
			return
		}
		p.local.broadcast(event)
		msg.Ack()
	}, nats.ManualAck(), nats.DeliverNew())
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", opts.Subject, err)
	}

	return p, nil
}

// Publish writes an event to the stream
func (p *NATSPubSub) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal event", "error", err, "type", event.Type)
		return
	}
	if _, err := p.js.Publish(p.subject, data); err != nil {
		logger.Error("Failed to publish to NATS", "error", err, "subject", p.subject, "type", event.Type)
		return
	}
	logger.Debug("Published event to NATS", "type", event.Type, "subject", p.subject)
}

// Subscribe returns a channel of events received from the stream
func (p *NATSPubSub) Subscribe() chan Event {
	return p.local.subscribe()
}

// Unsubscribe removes a subscription channel
func (p *NATSPubSub) Unsubscribe(ch chan Event) {
	p.local.unsubscribe(ch)
}

// SubscribeJetStream joins the durable consumer consumerName. Every instance that subscribes with the
// same name shares one deliver group, so each event is handled by exactly one of them.
func (p *NATSPubSub) SubscribeJetStream(consumerName string, handler func(Event)) error {
	_, err := p.js.QueueSubscribe(p.subject, consumerName, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Error("Failed to unmarshal event", "error", err, "consumer", consumerName)
			msg.Nak()
			return
		}
		handler(event)
		msg.Ack()
	}, nats.Durable(consumerName), nats.ManualAck())
	return err
}

// SubscriberCount returns the number of local subscribers
func (p *NATSPubSub) SubscriberCount() int {
	return p.local.count()
}

// Healthy reports whether the client connection is up
func (p *NATSPubSub) Healthy() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Close drains the subscription and closes the connection
func (p *NATSPubSub) Close() {
	if p.sub != nil {
		_ = p.sub.Unsubscribe()
	}
	p.local.closeAll()
	if p.nc != nil {
		p.nc.Close()
	}
}
