package history

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/wessley-advisor/engine/advisor"
	"github.com/WessleyAI/wessley-advisor/pkg/metrics"
	"github.com/WessleyAI/wessley-advisor/pkg/natsutil"
)

// Appender is the write side of a Store.
type Appender interface {
	Append(ctx context.Context, rec Record) error
}

// NATSPublisher publishes finished runs. It implements advisor.Publisher.
type NATSPublisher struct {
	nc      natsutil.MsgPublisher
	subject string
}

// NewNATSPublisher publishes on Subject unless subject is set.
func NewNATSPublisher(nc natsutil.MsgPublisher, subject string) *NATSPublisher {
	if subject == "" {
		subject = Subject
	}
	return &NATSPublisher{nc: nc, subject: subject}
}

// Publish implements advisor.Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, r *advisor.Report) error {
	err := natsutil.Publish(ctx, p.nc, p.subject, FromReport(r))
	countPublish(err)
	return err
}

// StorePublisher writes runs straight to a store, for single-process use.
type StorePublisher struct {
	Store Appender
}

// Publish implements advisor.Publisher.
func (p StorePublisher) Publish(ctx context.Context, r *advisor.Report) error {
	err := p.Store.Append(ctx, FromReport(r))
	countPublish(err)
	return err
}

func countPublish(err error) {
	if err != nil {
		metrics.HistoryPublished.WithLabelValues("error").Inc()
		return
	}
	metrics.HistoryPublished.WithLabelValues("ok").Inc()
}

// Consumer persists records received from NATS.
type Consumer struct {
	store  Appender
	logger *slog.Logger
}

// NewConsumer creates a Consumer writing to store.
func NewConsumer(store Appender, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{store: store, logger: logger}
}

// Handle stores one record.
func (c *Consumer) Handle(ctx context.Context, rec Record) {
	if err := c.store.Append(ctx, rec); err != nil {
		c.logger.Error("store run failed", "id", rec.ID, "err", err)
		return
	}
	c.logger.Info("run stored", "id", rec.ID, "matched", len(rec.Matched), "no_matches", rec.NoMatches)
}

// MsgHandler decodes and stores raw NATS messages.
func (c *Consumer) MsgHandler() nats.MsgHandler {
	return natsutil.Handler(c.Handle, c.malformed)
}

func (c *Consumer) malformed(msg *nats.Msg, err error) {
	c.logger.Warn("dropping malformed run", "subject", msg.Subject, "err", err)
}

// Subscribe attaches the consumer to subject in the "history" queue group.
func (c *Consumer) Subscribe(nc *nats.Conn, subject string) (*nats.Subscription, error) {
	if subject == "" {
		subject = Subject
	}
	return natsutil.Subscribe(nc, subject, "history", c.Handle, c.malformed)
}
