package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/Billy-Davies-2/word-card-draft/internal/auth"
	"github.com/Billy-Davies-2/word-card-draft/internal/cards"
	"github.com/Billy-Davies-2/word-card-draft/internal/clickhouse"
	"github.com/Billy-Davies-2/word-card-draft/internal/config"
	"github.com/Billy-Davies-2/word-card-draft/internal/dal"
	grpcserver "github.com/Billy-Davies-2/word-card-draft/internal/grpc"
	"github.com/Billy-Davies-2/word-card-draft/internal/handlers"
	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
	"github.com/Billy-Davies-2/word-card-draft/internal/mocks"
	"github.com/Billy-Davies-2/word-card-draft/internal/models"
	"github.com/Billy-Davies-2/word-card-draft/internal/pubsub"
	"github.com/Billy-Davies-2/word-card-draft/internal/session"
)

// eventBus is the NATS-backed transport, embedded or external
type eventBus interface {
	pubsub.Upstream
	SubscribeJetStream(consumerName string, handler func(pubsub.Event)) error
	Healthy() bool
	Close()
}

// analyticsStore receives finished drafts and answers popularity queries
type analyticsStore interface {
	session.Exporter
	handlers.StatsSource
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.LogLevel)
	logger.Info("Starting word card draft service", "environment", cfg.Environment)

	store := openStore(cfg)
	bus := openBus(cfg)
	analytics := openAnalytics(cfg)

	ps := pubsub.NewWithUpstream(bus)
	mgr := session.NewManager(store, ps)

	// Export each finished draft once per cluster through a durable consumer
	exporter := session.NewArchiveExporter(store, analytics)
	if err := bus.SubscribeJetStream("analytics-exporter", exporter.Handle); err != nil {
		logger.Error("Failed to subscribe analytics exporter", "error", err)
		log.Fatalf("Failed to subscribe analytics exporter: %v", err)
	}

	specs, err := cards.Load(cfg.Draft.CardsCSV)
	if err != nil {
		logger.Error("Failed to load cards", "error", err, "path", cfg.Draft.CardsCSV)
		log.Fatalf("Failed to load cards: %v", err)
	}
	defaults := session.SetupFromConfig(cfg.Draft, specs)
	if _, err := mgr.Start(defaults); err != nil {
		logger.Error("Failed to start initial draft session", "error", err)
		log.Fatalf("Failed to start initial draft session: %v", err)
	}

	authProvider := openAuth(cfg)

	// gRPC
	grpcServer := grpc.NewServer()
	grpcserver.RegisterDraftServiceServer(grpcServer, grpcserver.NewServer(mgr, ps, defaults))
	grpcAddr := "0.0.0.0:" + cfg.GRPCPort
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logger.Error("Failed to listen for gRPC", "error", err, "port", cfg.GRPCPort)
		log.Fatalf("Failed to listen for gRPC: %v", err)
	}
	go func() {
		logger.Info("gRPC server starting", "address", grpcAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server stopped", "error", err)
		}
	}()

	// HTTP
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", authProvider.LoginHandler)
	mux.HandleFunc("/auth/callback", authProvider.CallbackHandler)
	mux.HandleFunc("/auth/logout", authProvider.LogoutHandler)
	mux.HandleFunc("/auth/me", authProvider.Middleware(whoAmI(cfg.Authentik.FacilitatorGroup)))
	mux.HandleFunc("/", indexHandler)

	handlers.NewAPIHandlers(mgr, analytics, ps, defaults).Register(mux, authProvider.RequireFacilitator)

	handlers.NewHealth().
		Add("database", func(context.Context) error { return store.Ping() }, true).
		Add("nats", func(context.Context) error {
			if !bus.Healthy() {
				return errors.New("not connected")
			}
			return nil
		}, true).
		Add("clickhouse", analytics.Ping, false).
		Register(mux)

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			log.Fatal(err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	grpcServer.GracefulStop()
	bus.Close()
	if err := analytics.Close(); err != nil {
		logger.Warn("Failed to close analytics store", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Warn("Failed to close archive", "error", err)
	}
	logger.Info("Shutdown complete")
}

func openStore(cfg *config.Config) dal.DraftDAL {
	switch cfg.DBDriver {
	case "sqlite":
		store, err := dal.NewSQLiteDAL(cfg.SQLiteFile)
		if err != nil {
			logger.Error("Failed to initialize SQLite", "error", err)
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		logger.Info("Connected to SQLite database", "file", cfg.SQLiteFile)
		return store
	case "postgres":
		if cfg.DatabaseURL == "" {
			store, err := mocks.NewMockPostgresDAL(cfg.SQLiteFile)
			if err != nil {
				logger.Error("Failed to initialize mock Postgres", "error", err)
				log.Fatalf("Failed to initialize mock Postgres: %v", err)
			}
			return store
		}
		store, err := dal.NewPostgresDAL(cfg.DatabaseURL)
		if err != nil {
			logger.Error("Failed to initialize Postgres", "error", err)
			log.Fatalf("Failed to initialize Postgres: %v", err)
		}
		logger.Info("Connected to Postgres database")
		return store
	default:
		logger.Info("Using in-memory data store")
		return dal.NewMemoryDAL()
	}
}

// openBus uses embedded NATS in development and external JetStream otherwise
func openBus(cfg *config.Config) eventBus {
	if cfg.IsDevelopment() {
		logger.Info("Starting embedded NATS server for local development")
		embedded, err := pubsub.NewEmbeddedNATSPubSub(pubsub.EmbeddedNATSOptions{
			Port:       -1,
			Subject:    cfg.NATSSubject,
			StreamName: cfg.NATSStream,
		})
		if err != nil {
			logger.Error("Failed to initialize embedded NATS", "error", err)
			log.Fatalf("Failed to initialize embedded NATS: %v", err)
		}
		logger.Info("Embedded NATS server ready", "url", embedded.GetServerURL())
		return embedded
	}

	bus, err := pubsub.NewNATSPubSub(cfg.NATSURL, cfg.NATSSubject, cfg.NATSStream)
	if err != nil {
		logger.Error("Failed to initialize NATS", "error", err)
		log.Fatalf("Failed to initialize NATS: %v", err)
	}
	logger.Info("Connected to NATS", "url", cfg.NATSURL)
	return bus
}

func openAnalytics(cfg *config.Config) analyticsStore {
	if cfg.IsDevelopment() {
		logger.Info("Using mock ClickHouse for local development (no ClickHouse server required)")
		return mocks.NewMockClickHouseClient()
	}

	ch := cfg.ClickHouse
	client, err := clickhouse.NewClient(ch.Addr, ch.Database, ch.User, ch.Password)
	if err != nil {
		logger.Error("Failed to initialize ClickHouse", "error", err, "address", ch.Addr)
		log.Fatalf("Failed to initialize ClickHouse: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.EnsureSchema(ctx); err != nil {
		logger.Error("Failed to create ClickHouse schema", "error", err)
		log.Fatalf("Failed to create ClickHouse schema: %v", err)
	}
	logger.Info("Connected to ClickHouse", "address", ch.Addr, "database", ch.Database)
	return client
}

func openAuth(cfg *config.Config) auth.AuthProvider {
	if cfg.IsDevelopment() {
		logger.Info("Using mock authentication for local development (no Authentik server required)")
		return auth.NewMockAuth(cfg.Authentik.FacilitatorGroup)
	}
	a := cfg.Authentik
	logger.Info("Using Authentik authentication", "url", a.BaseURL)
	return auth.NewAuthentikAuth(&auth.AuthentikConfig{
		BaseURL:          a.BaseURL,
		ClientID:         a.ClientID,
		ClientSecret:     a.ClientSecret,
		RedirectURL:      a.RedirectURL,
		FacilitatorGroup: a.FacilitatorGroup,
	})
}

func whoAmI(group string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.GetUser(r)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"user":        user,
			"facilitator": auth.IsFacilitator(user, group),
		})
	}
}

func indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"service": "word-card-draft",
		"teams":   []models.TeamID{models.TeamA, models.TeamB},
		"api":     "/api/draft/state",
	})
}
