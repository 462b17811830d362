// Package events publishes record change events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/starford/moodlog/internal/models"
)

// HeaderEventType carries the event kind so consumers can filter without decoding.
const HeaderEventType = "event-type"

const (
	defaultBuffer = 256
	writeTimeout  = 10 * time.Second
)

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Publisher queues record events and writes them to a Kafka topic from a
// single goroutine. Events are keyed by user id so one user's changes stay
// ordered within a partition.
type Publisher struct {
	writer messageWriter
	queue  chan models.RecordEvent
	logger *slog.Logger
}

// NewPublisher creates a publisher for topic on the given brokers.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newPublisher(w, logger, defaultBuffer)
}

func newPublisher(w messageWriter, logger *slog.Logger, buffer int) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{writer: w, queue: make(chan models.RecordEvent, buffer), logger: logger}
}

// Notify enqueues ev without blocking. Events are dropped when the queue is full.
func (p *Publisher) Notify(ev models.RecordEvent) {
	select {
	case p.queue <- ev:
	default:
		p.logger.Warn("events: queue full, dropping event",
			slog.String("kind", ev.Kind),
			slog.Int64("record_id", ev.RecordID))
	}
}

// Run writes queued events until ctx is cancelled, then flushes what is
// already queued and closes the writer.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-p.queue:
			p.write(ctx, ev)
		case <-ctx.Done():
			p.drain()
			if err := p.writer.Close(); err != nil {
				return fmt.Errorf("events: close writer: %w", err)
			}
			return nil
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	for {
		select {
		case ev := <-p.queue:
			p.write(ctx, ev)
		default:
			return
		}
	}
}

func (p *Publisher) write(ctx context.Context, ev models.RecordEvent) {
	msg, err := encode(ev)
	if err != nil {
		p.logger.Error("events: encode failed", slog.String("error", err.Error()))
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(wctx, msg); err != nil {
		p.logger.Error("events: publish failed",
			slog.String("kind", ev.Kind),
			slog.Int64("record_id", ev.RecordID),
			slog.String("error", err.Error()))
	}
}

func encode(ev models.RecordEvent) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("events: marshal %s: %w", ev.Kind, err)
	}
	return kafka.Message{
		Key:     []byte(strconv.FormatInt(ev.UserID, 10)),
		Value:   payload,
		Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte(ev.Kind)}},
		Time:    ev.OccurredAt,
	}, nil
}
