package session

import (
	"context"
	"time"

	"github.com/Billy-Davies-2/word-card-draft/internal/dal"
	"github.com/Billy-Davies-2/word-card-draft/internal/draft"
	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
	"github.com/Billy-Davies-2/word-card-draft/internal/models"
	"github.com/Billy-Davies-2/word-card-draft/internal/pubsub"
)

// Exporter receives finished drafts for analytics
type Exporter interface {
	ExportDraft(ctx context.Context, rec *models.SessionRecord) error
}

// ArchiveExporter reacts to draft:end events by loading the archived session and exporting it
type ArchiveExporter struct {
	store   dal.DraftDAL
	exp     Exporter
	timeout time.Duration
}

func NewArchiveExporter(store dal.DraftDAL, exp Exporter) *ArchiveExporter {
	return &ArchiveExporter{store: store, exp: exp, timeout: 30 * time.Second}
}

// Handle is the event handler; other event types are ignored
func (a *ArchiveExporter) Handle(ev pubsub.Event) {
	if ev.Type != string(draft.EventDraftEnded) || ev.SessionID == "" {
		return
	}
	if err := a.Export(ev.SessionID); err != nil {
		logger.Error("Failed to export draft", "session", ev.SessionID, "error", err)
	}
}

// Export pushes one archived session to the analytics store
func (a *ArchiveExporter) Export(sessionID string) error {
	rec, err := a.store.GetSession(sessionID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	return a.exp.ExportDraft(ctx, rec)
}

// Run consumes events from ch until it is closed
func (a *ArchiveExporter) Run(ch <-chan pubsub.Event) {
	for ev := range ch {
		a.Handle(ev)
	}
}
