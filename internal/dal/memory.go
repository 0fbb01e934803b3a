package dal

import (
	"sort"
	"sync"
	"time"

	"github.com/Billy-Davies-2/word-card-draft/internal/models"
)

// MemoryDAL implements DraftDAL using in-memory storage
type MemoryDAL struct {
	mu       sync.RWMutex
	sessions map[string]*models.SessionRecord
}

// NewMemoryDAL creates a new in-memory data access layer
func NewMemoryDAL() *MemoryDAL {
	return &MemoryDAL{
		sessions: make(map[string]*models.SessionRecord),
	}
}

func (m *MemoryDAL) SaveSession(rec *models.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := copyRecord(rec)
	if cp.Status == "" {
		cp.Status = models.SessionRunning
	}
	m.sessions[rec.ID] = cp
	return nil
}

func (m *MemoryDAL) RecordClaim(sessionID string, claim models.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.running(sessionID)
	if err != nil {
		return err
	}
	rec.Claims = append(rec.Claims, claim)
	return nil
}

func (m *MemoryDAL) RemoveClaim(sessionID string, pickNumber int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.running(sessionID)
	if err != nil {
		return err
	}
	for i := range rec.Claims {
		if rec.Claims[i].PickNumber == pickNumber {
			rec.Claims = append(rec.Claims[:i], rec.Claims[i+1:]...)
			return nil
		}
	}
	return ErrClaimNotFound
}

func (m *MemoryDAL) CompleteSession(sessionID string, unclaimed []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.running(sessionID)
	if err != nil {
		return err
	}
	rec.Status = models.SessionCompleted
	rec.FinishedAt = &at
	rec.Unclaimed = append([]string(nil), unclaimed...)
	return nil
}

func (m *MemoryDAL) AbandonSession(sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.running(sessionID)
	if err != nil {
		return err
	}
	rec.Status = models.SessionAbandoned
	rec.FinishedAt = &at
	return nil
}

func (m *MemoryDAL) GetSession(id string) (*models.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copyRecord(rec), nil
}

func (m *MemoryDAL) ListSessions(limit int) ([]models.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.SessionSummary, 0, len(m.sessions))
	for _, rec := range m.sessions {
		out = append(out, summarize(copyRecord(rec)))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryDAL) Ping() error  { return nil }
func (m *MemoryDAL) Close() error { return nil }

// running returns the stored record; callers hold the write lock
func (m *MemoryDAL) running(id string) (*models.SessionRecord, error) {
	rec, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if rec.Status != models.SessionRunning {
		return nil, ErrSessionClosed
	}
	return rec, nil
}

func copyRecord(rec *models.SessionRecord) *models.SessionRecord {
	cp := *rec
	cp.Claims = append([]models.Claim(nil), rec.Claims...)
	cp.Unclaimed = append([]string(nil), rec.Unclaimed...)
	if rec.FinishedAt != nil {
		t := *rec.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}
