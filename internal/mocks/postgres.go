package mocks

import (
	"github.com/Billy-Davies-2/word-card-draft/internal/dal"
	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
)

// MockPostgresDAL provides a mock Postgres archive backed by SQLite for local development
type MockPostgresDAL struct {
	dal.DraftDAL
}

// NewMockPostgresDAL creates a mock Postgres DAL using SQLite
func NewMockPostgresDAL(sqliteFile string) (*MockPostgresDAL, error) {
	logger.Info("Using MOCK Postgres (SQLite) for local development", "file", sqliteFile)

	sqliteDAL, err := dal.NewSQLiteDAL(sqliteFile)
	if err != nil {
		return nil, err
	}
	return &MockPostgresDAL{DraftDAL: sqliteDAL}, nil
}
