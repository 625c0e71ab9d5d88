// Package messaging forwards order lifecycle events to NATS JetStream so
// that other systems can follow an order without polling the database.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/infrastructure/config"
	"github.com/velaro/ordersync/internal/infrastructure/event"
)

// EventTypeHeader carries the domain event type on every message
const EventTypeHeader = "Ordersync-Event-Type"

// msgPublisher is the part of nats.JetStreamContext the forwarder uses
type msgPublisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSClient owns the NATS connection and its JetStream context
type NATSClient struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	cfg  config.NATSConfig
}

// NewNATS connects to NATS and makes sure the stream exists.
// It returns nil, nil when NATS is disabled.
func NewNATS(ctx context.Context, cfg config.NATSConfig) (*NATSClient, error) {
	if !cfg.Enabled || cfg.URL == "" {
		return nil, nil
	}
	if cfg.Stream == "" || cfg.SubjectPrefix == "" {
		return nil, errors.New("nats: stream and subject_prefix are required")
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("ordersync"))
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", cfg.URL, err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nats: jetstream: %w", err)
	}
	if err := ensureStream(ctx, js, cfg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("nats: ensure stream %s: %w", cfg.Stream, err)
	}
	return &NATSClient{conn: conn, js: js, cfg: cfg}, nil
}

// Close closes the connection. Safe on a nil client.
func (c *NATSClient) Close() {
	if c == nil || c.conn == nil {
		return
	}
	c.conn.Close()
}

// Forwarder returns an event handler that republishes order events
func (c *NATSClient) Forwarder(logger *zap.Logger) *Forwarder {
	return NewForwarder(c.js, c.cfg.SubjectPrefix, logger)
}

// Forwarder is an EventHandler that publishes order lifecycle events to
// <prefix>.<EventType>. The event id is the JetStream message id, so a
// republished event is dropped by the server's duplicate window.
type Forwarder struct {
	js         msgPublisher
	prefix     string
	serializer *event.EventSerializer
	logger     *zap.Logger
}

// NewForwarder creates a Forwarder over a JetStream publisher
func NewForwarder(js msgPublisher, prefix string, logger *zap.Logger) *Forwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forwarder{
		js:         js,
		prefix:     prefix,
		serializer: event.NewEventSerializer(),
		logger:     logger,
	}
}

// EventTypes returns the order lifecycle events that are forwarded
func (f *Forwarder) EventTypes() []string {
	return []string{
		fulfillment.EventTypeOrderSynced,
		fulfillment.EventTypeOrderSyncFailed,
		fulfillment.EventTypeOrderConfirmed,
		fulfillment.EventTypeOrderCancelled,
	}
}

// Subject returns the subject an event type is published on
func (f *Forwarder) Subject(eventType string) string {
	return f.prefix + "." + eventType
}

// Handle publishes one event
func (f *Forwarder) Handle(ctx context.Context, evt shared.DomainEvent) error {
	data, err := f.serializer.Serialize(evt)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(f.Subject(evt.EventType()))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, evt.EventID().String())
	msg.Header.Set(EventTypeHeader, evt.EventType())

	if _, err := f.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("nats: publish %s: %w", msg.Subject, err)
	}
	f.logger.Debug("order event forwarded",
		zap.String("subject", msg.Subject),
		zap.String("event_id", evt.EventID().String()),
		zap.String("aggregate_id", evt.AggregateID().String()),
	)
	return nil
}

var _ shared.EventHandler = (*Forwarder)(nil)

func ensureStream(ctx context.Context, js nats.JetStreamContext, cfg config.NATSConfig) error {
	subjects := []string{cfg.SubjectPrefix + ".>"}

	info, err := js.StreamInfo(cfg.Stream, nats.Context(ctx))
	if errors.Is(err, nats.ErrStreamNotFound) {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      cfg.Stream,
			Subjects:  subjects,
			Storage:   nats.FileStorage,
			Retention: nats.LimitsPolicy,
		}, nats.Context(ctx))
		return err
	}
	if err != nil {
		return err
	}

	if !slices.Contains(info.Config.Subjects, subjects[0]) {
		info.Config.Subjects = append(info.Config.Subjects, subjects[0])
		_, err = js.UpdateStream(&info.Config, nats.Context(ctx))
	}
	return err
}
