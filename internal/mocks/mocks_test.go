package mocks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Billy-Davies-2/word-card-draft/internal/models"
	"github.com/Billy-Davies-2/word-card-draft/internal/pubsub"
)

func TestMockClickHousePopularity(t *testing.T) {
	ch := NewMockClickHouseClient()
	ctx := context.Background()

	claims := func(keys ...string) []models.Claim {
		out := make([]models.Claim, len(keys))
		for i, k := range keys {
			out[i] = models.Claim{PickNumber: i + 1, CardKey: k, CardLabel: "w" + k}
		}
		return out
	}

	if err := ch.ExportDraft(ctx, &models.SessionRecord{ID: "s1", Claims: claims("1", "2", "3")}); err != nil {
		t.Fatalf("ExportDraft: %v", err)
	}
	if err := ch.ExportDraft(ctx, &models.SessionRecord{ID: "s2", Claims: claims("3", "1")}); err != nil {
		t.Fatalf("ExportDraft: %v", err)
	}
	// re-export replaces
	if err := ch.ExportDraft(ctx, &models.SessionRecord{ID: "s2", Claims: claims("3", "1")}); err != nil {
		t.Fatalf("ExportDraft: %v", err)
	}

	stats, err := ch.CardPopularity(ctx, 0)
	if err != nil {
		t.Fatalf("CardPopularity: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(stats))
	}
	// "1": picks 1 and 2 -> avg 1.5; "3": picks 3 and 1 -> avg 2
	if stats[0].CardKey != "1" || stats[0].Claims != 2 || stats[0].AvgPick != 1.5 || stats[0].FirstPick != 2 {
		t.Errorf("unexpected top card: %+v", stats[0])
	}
	if stats[1].CardKey != "3" || stats[1].FirstPick != 1 {
		t.Errorf("unexpected second card: %+v", stats[1])
	}
	if got := ch.ExportedSessions(); len(got) != 2 {
		t.Errorf("expected 2 exported sessions, got %v", got)
	}

	limited, _ := ch.CardPopularity(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
}

func TestMockNATSReplay(t *testing.T) {
	m := NewMockNATSPubSub()
	ch := m.Subscribe()

	for _, typ := range []string{"a", "b", "c"} {
		m.Publish(pubsub.Event{Type: typ})
	}

	select {
	case ev := <-ch:
		if ev.Type != "a" {
			t.Errorf("expected a, got %s", ev.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	if m.MessageCount() != 3 {
		t.Errorf("expected 3 stored messages, got %d", m.MessageCount())
	}
	last := m.Replay(2)
	if len(last) != 2 || last[0].Type != "b" || last[1].Type != "c" {
		t.Errorf("unexpected replay: %+v", last)
	}
}

func TestMockNATSDurableConsumer(t *testing.T) {
	m := NewMockNATSPubSub()
	got := make(chan string, 1)
	if err := m.SubscribeJetStream("worker", func(ev pubsub.Event) { got <- ev.Type }); err != nil {
		t.Fatalf("SubscribeJetStream: %v", err)
	}

	m.Publish(pubsub.Event{Type: "draft:end"})
	select {
	case typ := <-got:
		if typ != "draft:end" {
			t.Errorf("expected draft:end, got %s", typ)
		}
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
}

func TestMockPostgresDAL(t *testing.T) {
	d, err := NewMockPostgresDAL(filepath.Join(t.TempDir(), "pg.sqlite"))
	if err != nil {
		t.Fatalf("NewMockPostgresDAL: %v", err)
	}
	defer d.Close()

	if err := d.SaveSession(&models.SessionRecord{ID: "s1", StartedAt: time.Now()}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if _, err := d.GetSession("s1"); err != nil {
		t.Fatalf("GetSession: %v", err)
	}
}
