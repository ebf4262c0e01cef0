package notify

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/segmentio/kafka-go"

	"github.com/okian/pinta/internal/domain/dedupe"
	"github.com/okian/pinta/internal/domain/model"
	"github.com/okian/pinta/pkg/logger"
)

// messageReader abstracts kafka.Reader for testability.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaFeed consumes a change-feed topic. Each message means "the ledger
// changed"; its key, when present, names what changed.
type KafkaFeed struct {
	reader messageReader
	topic  string
	sink   Sink
	settings
}

// NewKafkaFeed joins groupID on topic.
func NewKafkaFeed(brokers []string, topic, groupID string, sink Sink, opts ...Option) *KafkaFeed {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return NewKafkaFeedWith(r, topic, sink, opts...)
}

// NewKafkaFeedWith is only for tests to inject a fake reader.
func NewKafkaFeedWith(r messageReader, topic string, sink Sink, opts ...Option) *KafkaFeed {
	f := &KafkaFeed{
		reader:   r,
		topic:    topic,
		sink:     sink,
		settings: newSettings("kafka-feed", opts),
	}
	if f.deduper == nil {
		f.deduper = dedupe.NewInMemoryDeduper()
	}
	return f
}

// messageKey identifies a delivery by its position in the log.
func (f *KafkaFeed) messageKey(m kafka.Message) string {
	topic := m.Topic
	if topic == "" {
		topic = f.topic
	}
	return fmt.Sprintf("%s/%d/%d", topic, m.Partition, m.Offset)
}

// Run consumes until ctx is done, the reader closes or the sink closes.
// Offsets are committed only after the event is handed to the sink.
// Messages redelivered after a rebalance are committed without a new event.
func (f *KafkaFeed) Run(ctx context.Context) error {
	f.logger.Info(ctx, "consuming change feed", logger.String("topic", f.topic))
	for {
		m, err := f.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("fetch from %s: %w", f.topic, err)
		}

		key := f.messageKey(m)
		if f.deduper.SeenAndRecord(ctx, key) {
			f.logger.Debug(ctx, "redelivered message skipped", logger.String("message", key))
			f.commit(ctx, m)
			continue
		}

		e := model.ChangeEvent{
			ID:      f.newID(),
			Source:  model.ChangeSourceKafka,
			Subject: string(m.Key),
			At:      m.Time,
		}
		if e.Subject == "" {
			e.Subject = f.topic
		}
		if e.At.IsZero() {
			e.At = f.now()
		}
		if !emit(ctx, f.sink, f.logger, e) {
			f.deduper.Unrecord(ctx, key)
			return nil
		}
		f.commit(ctx, m)
	}
}

func (f *KafkaFeed) commit(ctx context.Context, m kafka.Message) {
	if err := f.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		f.logger.Warn(ctx, "commit failed",
			logger.Int("partition", m.Partition),
			logger.Any("offset", m.Offset),
			logger.Error(err),
		)
	}
}

// Close releases the underlying reader.
func (f *KafkaFeed) Close() error {
	return f.reader.Close()
}
