package dal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
	"github.com/Billy-Davies-2/word-card-draft/internal/models"
)

const pgQueryTimeout = 30 * time.Second

// PostgresDAL implements DraftDAL using PostgreSQL
type PostgresDAL struct {
	db *sql.DB
}

// NewPostgresDAL creates a new PostgreSQL data access layer tuned for CloudNativePG clusters
func NewPostgresDAL(connString string) (*PostgresDAL, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute) // recycle across failovers
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Kubernetes DNS can lag behind pod start
	maxRetries := 5
	retryDelay := 5 * time.Second
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		lastErr = db.PingContext(ctx)
		cancel()
		if lastErr == nil {
			break
		}
		logger.Warn("Postgres ping failed", "attempt", i+1, "error", lastErr)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if lastErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres after %d retries: %w", maxRetries, lastErr)
	}

	dal := &PostgresDAL{db: db}
	if err := dal.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return dal, nil
}

func (p *PostgresDAL) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS draft_sessions (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		team_a_name TEXT NOT NULL,
		team_b_name TEXT NOT NULL,
		team_a_size INTEGER NOT NULL,
		team_b_size INTEGER NOT NULL,
		card_count INTEGER NOT NULL,
		threshold INTEGER NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		unclaimed JSONB NOT NULL DEFAULT '[]'::jsonb
	);

	CREATE TABLE IF NOT EXISTS draft_claims (
		session_id TEXT NOT NULL REFERENCES draft_sessions(id) ON DELETE CASCADE,
		pick_number INTEGER NOT NULL,
		card_key TEXT NOT NULL,
		card_label TEXT NOT NULL,
		team TEXT NOT NULL,
		player_index INTEGER NOT NULL,
		player_name TEXT NOT NULL,
		draft_round INTEGER NOT NULL,
		claimed_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (session_id, pick_number)
	);

	CREATE INDEX IF NOT EXISTS idx_draft_sessions_started_at ON draft_sessions(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_draft_claims_card_key ON draft_claims(card_key);
	`
	ctx, cancel := context.WithTimeout(context.Background(), pgQueryTimeout)
	defer cancel()
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create postgres schema: %w", err)
	}
	return nil
}

func (p *PostgresDAL) SaveSession(rec *models.SessionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), pgQueryTimeout)
	defer cancel()

	unclaimed, err := encodeUnclaimed(rec.Unclaimed)
	if err != nil {
		return err
	}
	status := rec.Status
	if status == "" {
		status = models.SessionRunning
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO draft_sessions (id, status, team_a_name, team_b_name, team_a_size, team_b_size, card_count, threshold, started_at, finished_at, unclaimed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			finished_at = EXCLUDED.finished_at,
			unclaimed = EXCLUDED.unclaimed
	`, rec.ID, string(status), rec.TeamAName, rec.TeamBName, rec.TeamASize, rec.TeamBSize, rec.CardCount, rec.Threshold, rec.StartedAt, rec.FinishedAt, unclaimed)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	for _, c := range rec.Claims {
		if err := p.insertClaim(ctx, tx, rec.ID, c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgresDAL) insertClaim(ctx context.Context, tx *sql.Tx, sessionID string, c models.Claim) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO draft_claims (session_id, pick_number, card_key, card_label, team, player_index, player_name, draft_round, claimed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id, pick_number) DO UPDATE SET
			card_key = EXCLUDED.card_key,
			card_label = EXCLUDED.card_label,
			team = EXCLUDED.team,
			player_index = EXCLUDED.player_index,
			player_name = EXCLUDED.player_name,
			draft_round = EXCLUDED.draft_round,
			claimed_at = EXCLUDED.claimed_at
	`, sessionID, c.PickNumber, c.CardKey, c.CardLabel, string(c.Team), c.PlayerIndex, c.PlayerName, c.Round, c.ClaimedAt)
	if err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}
	return nil
}

// checkRunning locks the session row for the rest of the transaction
func (p *PostgresDAL) checkRunning(ctx context.Context, tx *sql.Tx, sessionID string) error {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM draft_sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&status)
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

func (p *PostgresDAL) RecordClaim(sessionID string, claim models.Claim) error {
	ctx, cancel := context.WithTimeout(context.Background(), pgQueryTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := p.checkRunning(ctx, tx, sessionID); err != nil {
		return err
	}
	if err := p.insertClaim(ctx, tx, sessionID, claim); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresDAL) RemoveClaim(sessionID string, pickNumber int) error {
	ctx, cancel := context.WithTimeout(context.Background(), pgQueryTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := p.checkRunning(ctx, tx, sessionID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM draft_claims WHERE session_id = $1 AND pick_number = $2`, sessionID, pickNumber)
	if err != nil {
		return fmt.Errorf("failed to remove claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrClaimNotFound
	}
	return tx.Commit()
}

func (p *PostgresDAL) finish(sessionID string, status models.SessionStatus, unclaimed []string, at time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), pgQueryTimeout)
	defer cancel()

	encoded, err := encodeUnclaimed(unclaimed)
	if err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := p.checkRunning(ctx, tx, sessionID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE draft_sessions SET status = $1, finished_at = $2, unclaimed = $3::jsonb WHERE id = $4
	`, string(status), at, encoded, sessionID)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	return tx.Commit()
}

func (p *PostgresDAL) CompleteSession(sessionID string, unclaimed []string, at time.Time) error {
	return p.finish(sessionID, models.SessionCompleted, unclaimed, at)
}

func (p *PostgresDAL) AbandonSession(sessionID string, at time.Time) error {
	return p.finish(sessionID, models.SessionAbandoned, nil, at)
}

func (p *PostgresDAL) GetSession(id string) (*models.SessionRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pgQueryTimeout)
	defer cancel()

	rec := &models.SessionRecord{ID: id}
	var (
		status    string
		finished  sql.NullTime
		unclaimed []byte
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT status, team_a_name, team_b_name, team_a_size, team_b_size, card_count, threshold, started_at, finished_at, unclaimed
		FROM draft_sessions WHERE id = $1
	`, id).Scan(&status, &rec.TeamAName, &rec.TeamBName, &rec.TeamASize, &rec.TeamBSize, &rec.CardCount, &rec.Threshold, &rec.StartedAt, &finished, &unclaimed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Status = models.SessionStatus(status)
	rec.FinishedAt = nullTime(finished)
	if rec.Unclaimed, err = decodeUnclaimed(unclaimed); err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT pick_number, card_key, card_label, team, player_index, player_name, draft_round, claimed_at
		FROM draft_claims WHERE session_id = $1 ORDER BY pick_number
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

func (p *PostgresDAL) ListSessions(limit int) ([]models.SessionSummary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pgQueryTimeout)
	defer cancel()

	query := `
		SELECT s.id, s.status, s.team_a_name, s.team_b_name, s.started_at, s.finished_at, COUNT(c.pick_number)
		FROM draft_sessions s
		LEFT JOIN draft_claims c ON c.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
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

func (p *PostgresDAL) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.db.PingContext(ctx)
}

func (p *PostgresDAL) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
