package pubsub

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
)

// EmbeddedNATSPubSub runs a JetStream-enabled NATS server in-process for development
type EmbeddedNATSPubSub struct {
	*NATSPubSub
	server *server.Server
}

// EmbeddedNATSOptions configures the embedded NATS server
type EmbeddedNATSOptions struct {
	Port       int    // 0 or -1 picks a random port
	Subject    string
	StreamName string
	StoreDir   string // empty keeps JetStream in memory
}

// DefaultEmbeddedNATSOptions returns development defaults
func DefaultEmbeddedNATSOptions() EmbeddedNATSOptions {
	return EmbeddedNATSOptions{
		Port:       -1,
		Subject:    "draft.events",
		StreamName: "DRAFT_EVENTS",
	}
}

// NewEmbeddedNATSPubSub starts the server, connects to it and ensures the stream
func NewEmbeddedNATSPubSub(opts EmbeddedNATSOptions) (*EmbeddedNATSPubSub, error) {
	port := opts.Port
	if port == 0 {
		port = -1 // 0 would mean 4222
	}
	if opts.Subject == "" {
		opts.Subject = "draft.events"
	}

	serverOpts := &server.Options{
		Port:      port,
		JetStream: true,
		NoSigs:    true,
		StoreDir:  opts.StoreDir,
	}

	ns, err := server.NewServer(serverOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded NATS server: %w", err)
	}
	ns.SetLogger(natsLogger{}, false, false)

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start within timeout")
	}

	clientURL := ns.ClientURL()
	logger.Info("Embedded NATS server started", "url", clientURL)

	nc, err := nats.Connect(clientURL)
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("failed to connect to embedded NATS: %w", err)
	}

	storage := nats.MemoryStorage
	if opts.StoreDir != "" {
		storage = nats.FileStorage
	}
	inner, err := newJetStreamPubSub(nc, StreamOptions{
		Name:    opts.StreamName,
		Subject: opts.Subject,
		Storage: storage,
		MaxAge:  time.Hour,
	})
	if err != nil {
		ns.Shutdown()
		return nil, err
	}

	return &EmbeddedNATSPubSub{NATSPubSub: inner, server: ns}, nil
}

// Close shuts down the client and the embedded server
func (p *EmbeddedNATSPubSub) Close() {
	logger.Info("Shutting down embedded NATS server")
	p.NATSPubSub.Close()
	if p.server != nil {
		p.server.Shutdown()
		p.server.WaitForShutdown()
	}
}

// GetServerURL returns the client URL of the embedded server
func (p *EmbeddedNATSPubSub) GetServerURL() string {
	return p.server.ClientURL()
}

// natsLogger forwards embedded server output to the service logger as structured records
type natsLogger struct{}

func (natsLogger) log(emit func(string, ...any), format string, v []any) {
	emit(fmt.Sprintf(format, v...), "component", "nats-server")
}

func (l natsLogger) Noticef(format string, v ...any) { l.log(logger.Debug, format, v) }
func (l natsLogger) Warnf(format string, v ...any)   { l.log(logger.Warn, format, v) }
func (l natsLogger) Fatalf(format string, v ...any)  { l.log(logger.Error, format, v) }
func (l natsLogger) Errorf(format string, v ...any)  { l.log(logger.Error, format, v) }
func (l natsLogger) Debugf(format string, v ...any)  { l.log(logger.Debug, format, v) }
func (l natsLogger) Tracef(format string, v ...any)  {}
