package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/bondvault/internal/metrics"
	"github.com/Checker-Finance/bondvault/pkg/logger"
	"github.com/Checker-Finance/bondvault/pkg/model"
)

// Publisher wraps a NATS connection and publishes canonical ledger events.
type Publisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	service string
}

// New creates a new Publisher with JetStream enabled if available.
func New(nc *nats.Conn, subject, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		nc:      nc,
		js:      js,
		subject: subject,
		service: service,
	}, nil
}

// PublishEnvelope serializes and publishes a canonical event envelope to NATS.
func (p *Publisher) PublishEnvelope(ctx context.Context, subject string, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		logger.S().Errorw("publisher.marshal_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	if subject == "" {
		subject = p.subject
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg)
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		logger.S().Errorw("publisher.publish_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	logger.S().Debugw("publisher.publish_success",
		"subject", subject,
		"event_type", env.EventType,
	)

	metrics.IncNATSMessage(subject, "ok")
	return nil
}

// PublishLedgerEvent wraps a ledger event in a canonical envelope and
// publishes it under "<base>.<event type>".
func (p *Publisher) PublishLedgerEvent(ctx context.Context, evt model.LedgerEvent) error {
	subject := fmt.Sprintf("%s.%s", p.subject, evt.Type)

	env := &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		Topic:         subject,
		EventType:     evt.Type,
		Version:       "1.0.0",
		Timestamp:     time.Now().UTC(),
	}

	data, err := json.Marshal(evt)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}
	env.Payload = data

	return p.PublishEnvelope(ctx, subject, env)
}

// HandleEvent adapts PublishLedgerEvent to the in-process event bus. Publish
// failures are logged and counted; the vault never blocks on the wire.
func (p *Publisher) HandleEvent(evt model.LedgerEvent) {
	if err := p.PublishLedgerEvent(context.Background(), evt); err != nil {
		logger.S().Errorw("publisher.event_dropped",
			"event_type", evt.Type,
			"product_id", evt.ProductID,
			"error", err,
		)
	}
}

// Publish publishes raw JSON payloads (for non-canonical internal events).
func (p *Publisher) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{"source": []string{p.service}},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg)
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	metrics.IncNATSMessage(subject, "ok")
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
