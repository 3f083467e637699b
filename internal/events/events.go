// Package events publishes panel lifecycle events to a NATS JetStream feed.
// The feed is optional: with no URL configured every publish is a no-op.
package events

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/blackridder22/AutoGPT/internal/model"
	"github.com/blackridder22/AutoGPT/pkg/logger"
)

const (
	// StreamName is the JetStream stream holding panel events.
	StreamName = "PANEL"

	// SubjectPrefix is the prefix for all panel event subjects.
	SubjectPrefix = "panel"
)

// Config holds the NATS connection settings.
type Config struct {
	URL      string
	Token    string
	CAFile   string
	CertFile string
	KeyFile  string
}

// Publisher publishes events best-effort. A nil Publisher is valid and
// publishes nothing, so callers never branch on whether the feed is enabled.
type Publisher struct {
	conn *nats.Conn
	js   jetstream.JetStream
	log  *logger.Logger
}

// Connect dials NATS and ensures the panel stream exists. An empty URL means
// the feed is disabled and a nil Publisher is returned without error.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	log = log.WithComponent("events")

	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	if cfg.CAFile != "" && cfg.CertFile != "" && cfg.KeyFile != "" {
		tlsConfig, err := createTLSConfig(cfg.CAFile, cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}

	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Panel lifecycle events",
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return &Publisher{conn: nc, js: js, log: log}, nil
}

// Publish emits one event. Failures are logged, never surfaced: the feed is
// an observer of the panel, not a participant in it.
func (p *Publisher) Publish(ctx context.Context, event model.Event) {
	if p == nil {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Error("could not marshal event", zap.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	subject := fmt.Sprintf("%s.%s", SubjectPrefix, event.Type)
	if _, err := p.js.Publish(pubCtx, subject, data); err != nil {
		p.log.Warn("could not publish event",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

// Connected reports whether the NATS connection is up. Nil publishers report
// true so readiness checks pass when the feed is disabled.
func (p *Publisher) Connected() bool {
	if p == nil {
		return true
	}
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("parse CA certificate")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
