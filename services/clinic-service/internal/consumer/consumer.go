package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicdesk/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicdesk/libs/otel"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox dedupes deliveries per consumer name.
type Inbox interface {
	Record(ctx context.Context, consumer, eventID, eventType string) (bool, error)
	Forget(ctx context.Context, consumer, eventID string) error
}

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	name    string
	reader  MessageReader
	inbox   Inbox
	logger  *slog.Logger
	handler Handler
}

type Config struct {
	// Name identifies this consumer in the inbox and the logs.
	Name    string
	Brokers []string
	GroupID string
	Topics  []string
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	reader := kafkax.NewReader(kafkax.ReaderConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topics:  cfg.Topics,
	})
	return newConsumer(cfg.Name, reader, inbox, logger, handler)
}

func newConsumer(name string, reader MessageReader, inbox Inbox, logger *slog.Logger, handler Handler) *Consumer {
	return &Consumer{
		name:    name,
		reader:  reader,
		inbox:   inbox,
		logger:  logger.With("consumer", name),
		handler: handler,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read failed", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	meta := kafkax.MetaOf(msg)
	ctx, span := otelx.Tracer("clinic-service/consumer").Start(kafkax.ExtractTrace(ctx, msg), "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.String("messaging.message.id", meta.EventID),
		),
	)
	defer span.End()

	fresh, err := c.inbox.Record(ctx, c.name, meta.EventID, meta.EventType)
	if err != nil {
		c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if !fresh {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return
	}
	if err := c.handler(ctx, msg); err != nil {
		c.logger.Error("event handler failed", "err", err, "event_id", meta.EventID, "event_type", meta.EventType)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ferr := c.inbox.Forget(ctx, c.name, meta.EventID); ferr != nil {
			c.logger.Warn("inbox forget failed", "err", ferr, "event_id", meta.EventID)
		}
	}
}
