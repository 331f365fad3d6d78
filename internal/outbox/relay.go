package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/attaboy/payouts/internal/repository"
)

// Publisher sends one keyed message to a topic. infra.KafkaProducer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Relay drains event_outbox and publishes each row to Kafka.
type Relay struct {
	db          repository.DBTX
	repo        repository.OutboxRepository
	publisher   Publisher
	logger      *slog.Logger
	topicPrefix string
	interval    time.Duration
	batchSize   int
}

// NewRelay creates a relay. Zero interval or batch size fall back to 2s and 100.
func NewRelay(db repository.DBTX, repo repository.OutboxRepository, publisher Publisher, topicPrefix string, interval time.Duration, batchSize int, logger *slog.Logger) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if topicPrefix == "" {
		topicPrefix = "payouts"
	}
	return &Relay{
		db:          db,
		repo:        repo,
		publisher:   publisher,
		logger:      logger,
		topicPrefix: topicPrefix,
		interval:    interval,
		batchSize:   batchSize,
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay started", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var ticks int
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
			ticks++
			n, err := r.Poll(ctx)
			if err != nil {
				r.logger.Error("outbox poll error", "error", err)
			}
			if err != nil || n == r.batchSize || ticks%backlogCheckEvery == 0 {
				r.CheckBacklog(ctx)
			}
		}
	}
}

const backlogCheckEvery = 30

// BacklogStatus describes the events still waiting to be relayed.
type BacklogStatus struct {
	Pending int
	Age     time.Duration
	Stale   bool
}

// CheckBacklog reports the outbox depth and logs a warning once the oldest
// event has waited longer than ten poll intervals.
func (r *Relay) CheckBacklog(ctx context.Context) BacklogStatus {
	count, oldest, err := r.repo.Backlog(ctx, r.db)
	if err != nil {
		r.logger.Warn("outbox backlog check failed", "error", err)
		return BacklogStatus{}
	}
	status := BacklogStatus{Pending: count}
	if count > 0 && !oldest.IsZero() {
		status.Age = time.Since(oldest)
		status.Stale = status.Age > 10*r.interval
	}
	if status.Stale {
		r.logger.Warn("outbox backlog is stale", "pending", status.Pending, "oldest_age", status.Age)
	}
	return status
}

// Poll relays one batch and returns the number of events published. Rows
// are removed only after a successful publish; the first failure stops the
// batch so ordering per partition key is preserved.
func (r *Relay) Poll(ctx context.Context) (int, error) {
	records, err := r.repo.FetchUnpublished(ctx, r.db, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(records))
	var publishErr error
	for _, rec := range records {
		msg, err := json.Marshal(map[string]any{
			"event_id":       rec.EventID,
			"aggregate_type": rec.AggregateType,
			"aggregate_id":   rec.AggregateID,
			"event_type":     rec.EventType,
			"headers":        rec.Headers,
			"payload":        rec.Payload,
			"occurred_at":    rec.OccurredAt,
		})
		if err != nil {
			publishErr = fmt.Errorf("encode event %s: %w", rec.EventID, err)
			break
		}
		headers := map[string]string{
			"event_id":   rec.EventID.String(),
			"event_type": string(rec.EventType),
		}
		if err := r.publisher.Publish(ctx, r.Topic(rec), []byte(rec.PartitionKey), msg, headers); err != nil {
			publishErr = fmt.Errorf("publish event %s: %w", rec.EventID, err)
			break
		}
		published = append(published, rec.SeqID)
	}

	if err := r.repo.MarkPublished(ctx, r.db, published); err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}
	if len(published) > 0 {
		r.logger.Debug("outbox batch relayed", "count", len(published))
	}
	return len(published), publishErr
}

// Topic maps an event to its Kafka topic: the configured prefix followed by
// the aggregate and event name, e.g. payouts.batch.created.
func (r *Relay) Topic(rec repository.OutboxRecord) string {
	name := string(rec.EventType)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return r.topicPrefix + "." + name
}
