package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
	"github.com/Billy-Davies-2/word-card-draft/internal/models"
)

const picksTable = "draft_picks"

// Client exports finished drafts to ClickHouse and answers popularity queries
type Client struct {
	conn driver.Conn
}

// NewClient connects and pings ClickHouse
func NewClient(addr, database, username, password string) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Client{conn: conn}, nil
}

// EnsureSchema creates the picks table if missing
func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS ` + picksTable + ` (
			session_id   String,
			pick_number  UInt32,
			card_key     String,
			card_label   String,
			team         LowCardinality(String),
			player_index UInt32,
			player_name  String,
			draft_round  UInt32,
			claimed_at   DateTime64(3)
		)
		ENGINE = ReplacingMergeTree
		ORDER BY (session_id, pick_number)
	`
	if err := c.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s: %w", picksTable, err)
	}
	return nil
}

// ExportDraft batch-inserts one row per claim of a finished session
func (c *Client) ExportDraft(ctx context.Context, rec *models.SessionRecord) error {
	if len(rec.Claims) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+picksTable)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, cl := range rec.Claims {
		err := batch.Append(
			rec.ID,
			uint32(cl.PickNumber),
			cl.CardKey,
			cl.CardLabel,
			string(cl.Team),
			uint32(cl.PlayerIndex),
			cl.PlayerName,
			uint32(cl.Round),
			cl.ClaimedAt,
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append pick %d: %w", cl.PickNumber, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	logger.Info("Exported draft to ClickHouse", "session", rec.ID, "picks", len(rec.Claims))
	return nil
}

// CardPopularity returns claim counts per card across every exported session, most claimed first
func (c *Client) CardPopularity(ctx context.Context, limit int) ([]models.CardStat, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT
			card_key,
			any(card_label)            AS label,
			count()                    AS claims,
			avg(pick_number)           AS avg_pick,
			countIf(pick_number <= 2)  AS first_picks
		FROM ` + picksTable + `
		GROUP BY card_key
		ORDER BY claims DESC, avg_pick ASC
		LIMIT ?
	`

	rows, err := c.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []models.CardStat{}
	for rows.Next() {
		var s models.CardStat
		if err := rows.Scan(&s.CardKey, &s.CardLabel, &s.Claims, &s.AvgPick, &s.FirstPick); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Ping checks connectivity for health probes
func (c *Client) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
