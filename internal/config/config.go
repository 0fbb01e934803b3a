// Package config loads service settings from environment variables.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds every setting read at startup
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Port        string `env:"PORT" envDefault:"3000"`
	GRPCPort    string `env:"GRPC_PORT" envDefault:"50051"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"memory"`
	SQLiteFile  string `env:"SQLITE_FILE" envDefault:"dev.sqlite"`
	DatabaseURL string `env:"DATABASE_URL"`

	NATSURL     string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSSubject string `env:"NATS_SUBJECT" envDefault:"draft.events"`
	NATSStream  string `env:"NATS_STREAM" envDefault:"DRAFT_EVENTS"`

	ClickHouse ClickHouseConfig `envPrefix:"CLICKHOUSE_"`
	Authentik  AuthentikConfig  `envPrefix:"AUTHENTIK_"`
	Draft      DraftConfig
}

type ClickHouseConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:9000"`
	Database string `env:"DB" envDefault:"default"`
	User     string `env:"USER" envDefault:"default"`
	Password string `env:"PASSWORD"`
}

type AuthentikConfig struct {
	BaseURL          string `env:"BASE_URL"`
	ClientID         string `env:"CLIENT_ID"`
	ClientSecret     string `env:"CLIENT_SECRET"`
	RedirectURL      string `env:"REDIRECT_URL" envDefault:"http://localhost:3000/auth/callback"`
	FacilitatorGroup string `env:"FACILITATOR_GROUP" envDefault:"facilitators"`
}

// DraftConfig is the default session setup used at boot and by the terminal driver
type DraftConfig struct {
	CardsCSV     string   `env:"CARDS_CSV"`
	TeamAName    string   `env:"TEAM_A_NAME" envDefault:"Team A"`
	TeamBName    string   `env:"TEAM_B_NAME" envDefault:"Team B"`
	TeamASize    int      `env:"TEAM_A_SIZE" envDefault:"1"`
	TeamBSize    int      `env:"TEAM_B_SIZE" envDefault:"1"`
	TeamAPlayers []string `env:"TEAM_A_PLAYERS" envSeparator:","`
	TeamBPlayers []string `env:"TEAM_B_PLAYERS" envSeparator:","`
	Threshold    int      `env:"DRAFT_THRESHOLD" envDefault:"90"`
}

// Load parses the environment into a Config and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment reports whether local stand-ins (embedded NATS, mock auth, mock ClickHouse) are used
func (c *Config) IsDevelopment() bool {
	return c.Environment == "" || c.Environment == "development"
}

// Validate checks cross-field requirements that struct tags cannot express
func (c *Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case "memory", "sqlite":
	case "postgres":
		// development falls back to the SQLite-backed stand-in
		if c.DatabaseURL == "" && !c.IsDevelopment() {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q (valid: memory, sqlite, postgres)", c.DBDriver))
	}

	if !c.IsDevelopment() {
		if c.Authentik.BaseURL == "" || c.Authentik.ClientID == "" || c.Authentik.ClientSecret == "" {
			errs = append(errs, errors.New("AUTHENTIK_BASE_URL, AUTHENTIK_CLIENT_ID, and AUTHENTIK_CLIENT_SECRET are required outside development"))
		}
	}

	if c.Draft.TeamASize < 1 || c.Draft.TeamBSize < 1 {
		errs = append(errs, errors.New("TEAM_A_SIZE and TEAM_B_SIZE must be at least 1"))
	}
	if c.Draft.Threshold < 1 {
		errs = append(errs, errors.New("DRAFT_THRESHOLD must be at least 1"))
	}

	return errors.Join(errs...)
}
