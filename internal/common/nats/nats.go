// Package nats publishes XS2A domain events to NATS JetStream.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"xs2a/internal/common/events"
)

// Stream settings for XS2A events.
const (
	StreamName    = "XS2A_EVENTS"
	SubjectPrefix = "events."
	retention     = 7 * 24 * time.Hour
)

// Config holds NATS configuration
type Config struct {
	Enabled bool   `envconfig:"NATS_ENABLED" default:"false"`
	URL     string `envconfig:"NATS_URL" default:"nats://localhost:4222"`
	Name    string `envconfig:"NATS_CLIENT_NAME" default:"xs2a"`
}

// Client wraps a NATS connection with JetStream support.
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// New connects to NATS and opens a JetStream context.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	logger.Info("NATS connection established", "url", conn.ConnectedUrl())
	return &Client{conn: conn, js: js, logger: logger}, nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	c.conn.Close()
}

// EventsStreamConfig is the stream holding every XS2A event.
func EventsStreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        StreamName,
		Description: "XS2A authorisation, consent and payment events",
		Subjects:    []string{SubjectPrefix + ">"},
		MaxAge:      retention,
		Retention:   jetstream.LimitsPolicy,
		Storage:     jetstream.FileStorage,
	}
}

// EnsureStream creates or updates a stream
func (c *Client) EnsureStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating/updating stream %s: %w", cfg.Name, err)
	}
	c.logger.Info("stream ensured", "name", cfg.Name, "subjects", cfg.Subjects)
	return stream, nil
}

// Publisher publishes events to NATS
type Publisher struct {
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(client *Client, logger *slog.Logger) *Publisher {
	return &Publisher{js: client.js, logger: logger}
}

var _ events.Publisher = (*Publisher)(nil)

// Subject returns the subject an event type is published on.
func Subject(eventType string) string {
	return SubjectPrefix + eventType
}

// Publish publishes an event with its id as the deduplication key.
func (p *Publisher) Publish(ctx context.Context, event *events.Event) error {
	subject := Subject(event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}

	p.logger.Debug("event published", "event_id", event.ID, "type", event.Type, "subject", subject)
	return nil
}
