package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

// Publisher emits domain events to subscribers outside this service.
type Publisher interface {
	Publish(ctx context.Context, subject string, env Envelope) error
}

// Publish wraps evt in an envelope keyed by businessID and sends it. The
// event id is reused so downstream consumers can dedupe redeliveries.
func Publish(ctx context.Context, p Publisher, subject, businessID, correlationID string, eventID uuid.UUID, evt CanonicalEvent) error {
	if p == nil {
		return nil
	}
	env, err := NewEnvelope(businessID, correlationID, evt, WithEventID(eventID))
	if err != nil {
		return err
	}
	return p.Publish(ctx, subject, env)
}

type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes envelopes as JSON on core NATS subjects.
type NATSPublisher struct {
	conn   natsConn
	logger *logging.Logger
}

// NewNATSPublisher connects with reconnect handling.
func NewNATSPublisher(url, token string, logger *logging.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = logging.Default()
	}
	opts := []nats.Option{
		nats.Name("sitelead-api"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("events: nats connect: %w", err)
	}
	return &NATSPublisher{conn: nc, logger: logger}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("events: publish %s: %w", subject, err)
	}
	p.logger.Debug("event published", "subject", subject, "event_id", env.EventID, "event_type", env.EventType)
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// LogPublisher logs events instead of sending them. Used when NATS is not configured.
type LogPublisher struct {
	Logger *logging.Logger
}

func (p LogPublisher) Publish(ctx context.Context, subject string, env Envelope) error {
	logger := p.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger.Debug("event (not published)", "subject", subject, "event_id", env.EventID, "event_type", env.EventType)
	return nil
}

var (
	_ Publisher = (*NATSPublisher)(nil)
	_ Publisher = LogPublisher{}
)
