package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
	"github.com/Billy-Davies-2/word-card-draft/internal/models"
)

// MockClickHouseClient keeps exported picks in memory for local development
type MockClickHouseClient struct {
	mu       sync.RWMutex
	picks    map[string][]models.Claim // session id -> claims
	sessions []string
}

// NewMockClickHouseClient creates a mock ClickHouse client
func NewMockClickHouseClient() *MockClickHouseClient {
	logger.Info("Using MOCK ClickHouse client for local development")
	return &MockClickHouseClient{picks: make(map[string][]models.Claim)}
}

// EnsureSchema is a no-op
func (m *MockClickHouseClient) EnsureSchema(ctx context.Context) error {
	return nil
}

// ExportDraft stores the session's claims, replacing an earlier export of the same session
func (m *MockClickHouseClient) ExportDraft(ctx context.Context, rec *models.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.picks[rec.ID]; !seen {
		m.sessions = append(m.sessions, rec.ID)
	}
	m.picks[rec.ID] = append([]models.Claim(nil), rec.Claims...)
	logger.Debug("Mock ClickHouse: exported draft", "session", rec.ID, "picks", len(rec.Claims))
	return nil
}

// CardPopularity aggregates the stored picks the same way the real query does
func (m *MockClickHouseClient) CardPopularity(ctx context.Context, limit int) ([]models.CardStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byKey := map[string]*models.CardStat{}
	sums := map[string]int{}
	for _, id := range m.sessions {
		for _, c := range m.picks[id] {
			s, ok := byKey[c.CardKey]
			if !ok {
				s = &models.CardStat{CardKey: c.CardKey, CardLabel: c.CardLabel}
				byKey[c.CardKey] = s
			}
			s.Claims++
			sums[c.CardKey] += c.PickNumber
			if c.PickNumber <= 2 {
				s.FirstPick++
			}
		}
	}

	stats := make([]models.CardStat, 0, len(byKey))
	for k, s := range byKey {
		s.AvgPick = float64(sums[k]) / float64(s.Claims)
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Claims != stats[j].Claims {
			return stats[i].Claims > stats[j].Claims
		}
		if stats[i].AvgPick != stats[j].AvgPick {
			return stats[i].AvgPick < stats[j].AvgPick
		}
		return stats[i].CardKey < stats[j].CardKey
	})
	if limit <= 0 {
		limit = 100
	}
	if len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

// ExportedSessions returns the ids of exported sessions in export order
func (m *MockClickHouseClient) ExportedSessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.sessions...)
}

func (m *MockClickHouseClient) Ping(ctx context.Context) error { return nil }

// Close is a no-op for mock client
func (m *MockClickHouseClient) Close() error {
	return nil
}
