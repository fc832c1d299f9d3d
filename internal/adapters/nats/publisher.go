package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream. Session views go
// over core NATS since they are superseded by the next view.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := EnsureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

// EnsureStreams creates or updates the JetStream streams geomeasure uses.
func EnsureStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{
			Name:      "GEOMEASURE_RECORDS",
			Subjects:  []string{SubjectAllRecords},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "SENSOR_LOCATIONS",
			Subjects:  []string{SubjectAllSensors},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// PublishRecordEvent publishes a record lifecycle event.
func (p *Publisher) PublishRecordEvent(ctx context.Context, event *domain.RecordEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(RecordSubject(event.Type), data, nats.Context(ctx))
	return err
}

// PublishSessionView publishes the latest view of a screen.
func (p *Publisher) PublishSessionView(ctx context.Context, view *domain.SessionView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return p.conn.Publish(ViewSubject(view.ScreenID), data)
}

// PublishSensorSample publishes a location sample for its screen.
func (p *Publisher) PublishSensorSample(ctx context.Context, sample *domain.SensorSample) error {
	data, err := json.Marshal(domain.NewSensorPayload(*sample))
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SensorSubject(sample.ScreenID), data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection, e.g. for the WebSocket relay.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("geomeasure"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
