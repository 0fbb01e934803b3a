package dal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Billy-Davies-2/word-card-draft/internal/models"
)

// SQLiteDAL implements DraftDAL using SQLite
type SQLiteDAL struct {
	db *sql.DB
}

// NewSQLiteDAL creates a new SQLite data access layer
func NewSQLiteDAL(dbPath string) (*SQLiteDAL, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// single writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	dal := &SQLiteDAL{db: db}
	if err := dal.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return dal, nil
}

func (s *SQLiteDAL) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		team_a_name TEXT NOT NULL,
		team_b_name TEXT NOT NULL,
		team_a_size INTEGER NOT NULL,
		team_b_size INTEGER NOT NULL,
		card_count INTEGER NOT NULL,
		threshold INTEGER NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		unclaimed TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS claims (
		session_id TEXT NOT NULL,
		pick_number INTEGER NOT NULL,
		card_key TEXT NOT NULL,
		card_label TEXT NOT NULL,
		team TEXT NOT NULL,
		player_index INTEGER NOT NULL,
		player_name TEXT NOT NULL,
		draft_round INTEGER NOT NULL,
		claimed_at TIMESTAMP NOT NULL,
		PRIMARY KEY (session_id, pick_number),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteDAL) SaveSession(rec *models.SessionRecord) error {
	unclaimed, err := encodeUnclaimed(rec.Unclaimed)
	if err != nil {
		return err
	}
	status := rec.Status
	if status == "" {
		status = models.SessionRunning
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (id, status, team_a_name, team_b_name, team_a_size, team_b_size, card_count, threshold, started_at, finished_at, unclaimed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at,
			unclaimed = excluded.unclaimed
	`, rec.ID, string(status), rec.TeamAName, rec.TeamBName, rec.TeamASize, rec.TeamBSize, rec.CardCount, rec.Threshold, rec.StartedAt.UTC(), rec.FinishedAt, unclaimed)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	for _, c := range rec.Claims {
		if err := s.insertClaim(tx, rec.ID, c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteDAL) insertClaim(tx *sql.Tx, sessionID string, c models.Claim) error {
	_, err := tx.Exec(`
		INSERT OR REPLACE INTO claims (session_id, pick_number, card_key, card_label, team, player_index, player_name, draft_round, claimed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionID, c.PickNumber, c.CardKey, c.CardLabel, string(c.Team), c.PlayerIndex, c.PlayerName, c.Round, c.ClaimedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}
	return nil
}

func (s *SQLiteDAL) checkRunning(tx *sql.Tx, sessionID string) error {
	var status string
	err := tx.QueryRow(`SELECT status FROM sessions WHERE id = ?`, sessionID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	if models.SessionStatus(status) != models.SessionRunning {
		return ErrSessionClosed
	}
	return nil
}

func (s *SQLiteDAL) RecordClaim(sessionID string, claim models.Claim) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.checkRunning(tx, sessionID); err != nil {
		return err
	}
	if err := s.insertClaim(tx, sessionID, claim); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteDAL) RemoveClaim(sessionID string, pickNumber int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.checkRunning(tx, sessionID); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM claims WHERE session_id = ? AND pick_number = ?`, sessionID, pickNumber)
	if err != nil {
		return fmt.Errorf("failed to remove claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrClaimNotFound
	}
	return tx.Commit()
}

func (s *SQLiteDAL) finish(sessionID string, status models.SessionStatus, unclaimed []string, at time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.checkRunning(tx, sessionID); err != nil {
		return err
	}
	encoded, err := encodeUnclaimed(unclaimed)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`UPDATE sessions SET status = ?, finished_at = ?, unclaimed = ? WHERE id = ?`,
		string(status), at.UTC(), encoded, sessionID)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteDAL) CompleteSession(sessionID string, unclaimed []string, at time.Time) error {
	return s.finish(sessionID, models.SessionCompleted, unclaimed, at)
}

func (s *SQLiteDAL) AbandonSession(sessionID string, at time.Time) error {
	return s.finish(sessionID, models.SessionAbandoned, nil, at)
}

func (s *SQLiteDAL) GetSession(id string) (*models.SessionRecord, error) {
	rec := &models.SessionRecord{ID: id}
	var (
		status    string
		finished  sql.NullTime
		unclaimed string
	)
	err := s.db.QueryRow(`
		SELECT status, team_a_name, team_b_name, team_a_size, team_b_size, card_count, threshold, started_at, finished_at, unclaimed
		FROM sessions WHERE id = ?
	`, id).Scan(&status, &rec.TeamAName, &rec.TeamBName, &rec.TeamASize, &rec.TeamBSize, &rec.CardCount, &rec.Threshold, &rec.StartedAt, &finished, &unclaimed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Status = models.SessionStatus(status)
	rec.FinishedAt = nullTime(finished)
	if rec.Unclaimed, err = decodeUnclaimed([]byte(unclaimed)); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT pick_number, card_key, card_label, team, player_index, player_name, draft_round, claimed_at
		FROM claims WHERE session_id = ? ORDER BY pick_number
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rec.Claims = []models.Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		rec.Claims = append(rec.Claims, c)
	}
	return rec, rows.Err()
}

func (s *SQLiteDAL) ListSessions(limit int) ([]models.SessionSummary, error) {
	query := `
		SELECT s.id, s.status, s.team_a_name, s.team_b_name, s.started_at, s.finished_at,
			(SELECT COUNT(*) FROM claims c WHERE c.session_id = s.id)
		FROM sessions s
		ORDER BY s.started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.SessionSummary{}
	for rows.Next() {
		var (
			sum      models.SessionSummary
			status   string
			finished sql.NullTime
		)
		if err := rows.Scan(&sum.ID, &status, &sum.TeamAName, &sum.TeamBName, &sum.StartedAt, &finished, &sum.Picks); err != nil {
			return nil, err
		}
		sum.Status = models.SessionStatus(status)
		sum.FinishedAt = nullTime(finished)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLiteDAL) Ping() error {
	return s.db.Ping()
}

func (s *SQLiteDAL) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
