package dal

import (
	"errors"
	"time"

	"github.com/Billy-Davies-2/word-card-draft/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrClaimNotFound   = errors.New("claim not found")
	ErrSessionClosed   = errors.New("session is not running")
)

// DraftDAL is the archive of draft sessions and their pick logs.
// It records history only; a live draft is never resumed from it.
type DraftDAL interface {
	SaveSession(rec *models.SessionRecord) error
	RecordClaim(sessionID string, claim models.Claim) error
	// RemoveClaim deletes the claim with the given pick number, used when a pick is undone
	RemoveClaim(sessionID string, pickNumber int) error
	CompleteSession(sessionID string, unclaimed []string, at time.Time) error
	AbandonSession(sessionID string, at time.Time) error
	GetSession(id string) (*models.SessionRecord, error)
	// ListSessions returns newest sessions first; limit <= 0 means all
	ListSessions(limit int) ([]models.SessionSummary, error)
	Ping() error
	Close() error
}
