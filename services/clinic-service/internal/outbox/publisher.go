package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicdesk/libs/db"
	"github.com/md-rashed-zaman/clinicdesk/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicdesk/libs/otel"
	"github.com/segmentio/kafka-go"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type PublisherConfig struct {
	Brokers   []string
	PollEvery time.Duration
	BatchSize int
}

// Publisher relays committed outbox rows to Kafka. Delivery is at least once:
// a crash between write and commit republishes the batch.
type Publisher struct {
	pool      *db.Pool
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		pool:      pool,
		repo:      repo,
		logger:    logger,
		brokers:   cfg.Brokers,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled, no kafka brokers configured")
		return
	}
	w := kafkax.NewWriter(p.brokers)
	defer w.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.publishBatch(ctx, w)
			if err != nil {
				p.logger.Error("outbox publish failed", "err", err)
				continue
			}
			if n > 0 {
				p.logger.Debug("outbox batch published", "count", n)
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context, w MessageWriter) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := p.repo.claimBatch(ctx, tx, p.batchSize)
	if err != nil || len(records) == 0 {
		return 0, err
	}

	msgs := make([]kafka.Message, len(records))
	seqs := make([]int64, len(records))
	for i, rec := range records {
		msgs[i] = Message(ctx, rec)
		seqs[i] = rec.Seq
	}
	if err := w.WriteMessages(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := p.repo.markPublished(ctx, tx, seqs); err != nil {
		return 0, err
	}
	return len(records), tx.Commit(ctx)
}

// Message renders rec for Kafka: keyed by aggregate, topic = event type, with
// the event metadata and the originating trace in the headers.
func Message(ctx context.Context, rec Record) kafka.Message {
	meta := kafkax.EventMeta{EventID: rec.Event.ID, EventType: rec.Event.EventType}
	return kafka.Message{
		Topic:   rec.Event.EventType,
		Key:     []byte(rec.Event.AggregateID),
		Value:   rec.Event.Payload,
		Headers: kafkax.InjectTrace(otelx.ResumeTrace(ctx, rec.Trace), meta.Headers()),
		Time:    rec.CreatedAt,
	}
}
