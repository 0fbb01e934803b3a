package pubsub

import (
	"sync"
	"testing"
	"time"

	"github.com/Billy-Davies-2/word-card-draft/internal/draft"
	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
	"github.com/Billy-Davies-2/word-card-draft/internal/models"
)

func init() {
	logger.Init("error")
}

func newEmbedded(t *testing.T, opts EmbeddedNATSOptions) *EmbeddedNATSPubSub {
	t.Helper()
	ps, err := NewEmbeddedNATSPubSub(opts)
	if err != nil {
		t.Fatalf("Failed to create embedded NATS: %v", err)
	}
	t.Cleanup(ps.Close)
	return ps
}

func TestNewEmbeddedNATSPubSub(t *testing.T) {
	ps := newEmbedded(t, DefaultEmbeddedNATSOptions())

	if ps.server == nil || ps.nc == nil || ps.js == nil {
		t.Fatal("server, connection and JetStream context should be set")
	}
	if ps.GetServerURL() == "" {
		t.Error("server URL should not be empty")
	}
	if !ps.Healthy() {
		t.Error("client should be connected")
	}
}

func TestEmbeddedNATSPublishAndReceive(t *testing.T) {
	ps := newEmbedded(t, DefaultEmbeddedNATSOptions())
	ch := ps.Subscribe()

	ps.Publish(FromDraft("s1", draft.Event{Type: draft.EventCardClaimed, Key: "12", Team: models.TeamA, Round: 3}))

	got := receive(t, ch, 2*time.Second)
	if got.Type != "card:claim" || got.SessionID != "s1" {
		t.Errorf("unexpected envelope: %+v", got)
	}
	if got.Draft == nil || got.Draft.Key != "12" || got.Draft.Round != 3 {
		t.Errorf("draft payload did not survive the round trip: %+v", got.Draft)
	}
}

func TestEmbeddedNATSMultipleSubscribers(t *testing.T) {
	ps := newEmbedded(t, DefaultEmbeddedNATSOptions())

	chans := []chan Event{ps.Subscribe(), ps.Subscribe(), ps.Subscribe()}
	if ps.SubscriberCount() != 3 {
		t.Errorf("expected 3 subscribers, got %d", ps.SubscriberCount())
	}

	ps.Publish(Event{Type: "draft:turn"})
	for _, ch := range chans {
		if got := receive(t, ch, 2*time.Second); got.Type != "draft:turn" {
			t.Errorf("expected draft:turn, got %s", got.Type)
		}
	}
}

func TestEmbeddedNATSConcurrentPublish(t *testing.T) {
	ps := newEmbedded(t, DefaultEmbeddedNATSOptions())
	ch := ps.Subscribe()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				ps.Publish(Event{Type: "card:highlight"})
			}
		}()
	}
	wg.Wait()

	received := 0
	timeout := time.After(3 * time.Second)
	for received < 50 {
		select {
		case <-ch:
			received++
		case <-timeout:
			t.Fatalf("received %d of 50 events", received)
		}
	}
}

func TestEmbeddedNATSDurableConsumer(t *testing.T) {
	ps := newEmbedded(t, DefaultEmbeddedNATSOptions())

	got := make(chan Event, 1)
	if err := ps.SubscribeJetStream("test-worker", func(ev Event) { got <- ev }); err != nil {
		t.Fatalf("SubscribeJetStream() failed: %v", err)
	}

	ps.Publish(Event{Type: "draft:end", SessionID: "s2"})

	select {
	case ev := <-got:
		if ev.SessionID != "s2" {
			t.Errorf("expected session s2, got %s", ev.SessionID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("durable consumer did not receive the event")
	}
}

func TestDurableConsumerSharedAcrossInstances(t *testing.T) {
	opts := DefaultEmbeddedNATSOptions()
	first := newEmbedded(t, opts)
	second, err := NewNATSPubSub(first.GetServerURL(), opts.Subject, opts.StreamName)
	if err != nil {
		t.Fatalf("second instance failed to connect: %v", err)
	}
	t.Cleanup(second.Close)

	var mu sync.Mutex
	handled := map[string]int{}
	handler := func(name string) func(Event) {
		return func(ev Event) {
			if ev.Type != "draft:end" {
				return
			}
			mu.Lock()
			handled[name]++
			mu.Unlock()
		}
	}
	if err := first.SubscribeJetStream("analytics-exporter", handler("first")); err != nil {
		t.Fatalf("first SubscribeJetStream() failed: %v", err)
	}
	if err := second.SubscribeJetStream("analytics-exporter", handler("second")); err != nil {
		t.Fatalf("second SubscribeJetStream() failed: %v", err)
	}

	first.Publish(Event{Type: "draft:end", SessionID: "s3"})

	total := func() int {
		mu.Lock()
		defer mu.Unlock()
		return handled["first"] + handled["second"]
	}
	deadline := time.Now().Add(2 * time.Second)
	for total() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	// give a duplicate delivery time to show up
	time.Sleep(200 * time.Millisecond)
	if n := total(); n != 1 {
		t.Fatalf("expected the event to be handled once across instances, got %d (%v)", n, handled)
	}
}

func TestEmbeddedNATSCustomOptions(t *testing.T) {
	ps := newEmbedded(t, EmbeddedNATSOptions{
		Subject:    "custom.draft",
		StreamName: "CUSTOM_DRAFT",
		StoreDir:   t.TempDir(),
	})
	ch := ps.Subscribe()

	ps.Publish(Event{Type: "session:start"})
	if got := receive(t, ch, 2*time.Second); got.Type != "session:start" {
		t.Errorf("expected session:start, got %s", got.Type)
	}
}

func TestEmbeddedNATSClose(t *testing.T) {
	ps, err := NewEmbeddedNATSPubSub(DefaultEmbeddedNATSOptions())
	if err != nil {
		t.Fatalf("Failed to create embedded NATS: %v", err)
	}
	ch := ps.Subscribe()
	ps.Close()

	if _, ok := <-ch; ok {
		t.Error("subscriber channels should be closed on Close")
	}
}
