package dal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Billy-Davies-2/word-card-draft/internal/models"
)

func summarize(rec *models.SessionRecord) models.SessionSummary {
	return models.SessionSummary{
		ID:         rec.ID,
		Status:     rec.Status,
		TeamAName:  rec.TeamAName,
		TeamBName:  rec.TeamBName,
		Picks:      len(rec.Claims),
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}
}

func encodeUnclaimed(keys []string) (string, error) {
	if keys == nil {
		keys = []string{}
	}
	b, err := json.Marshal(keys)
	if err != nil {
		return "", fmt.Errorf("failed to marshal unclaimed cards: %w", err)
	}
	return string(b), nil
}

func decodeUnclaimed(raw []byte) ([]string, error) {
	var keys []string
	if len(raw) == 0 {
		return keys, nil
	}
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("failed to unmarshal unclaimed cards: %w", err)
	}
	return keys, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(s rowScanner) (models.Claim, error) {
	var c models.Claim
	var team string
	err := s.Scan(&c.PickNumber, &c.CardKey, &c.CardLabel, &team, &c.PlayerIndex, &c.PlayerName, &c.Round, &c.ClaimedAt)
	c.Team = models.TeamID(team)
	return c, err
}
