package mq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"barmeet_server/internal/config"
)

// KafkaBus is the distributed EventBus. Events are keyed by group uuid so
// duplicate deliveries for one group land on the same partition, and the
// consumer group gives at-least-once semantics across instances.
type KafkaBus struct {
	producer *kafka.Writer
	consumer *kafka.Reader
	done     chan struct{}
}

// NewKafkaBus builds the writer and reader from config.
func NewKafkaBus(cfg config.KafkaConfig) *KafkaBus {
	producer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.HostPort),
		Topic:                  cfg.FilledTopic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           cfg.Timeout * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
	}
	consumer := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{cfg.HostPort},
		Topic:          cfg.FilledTopic,
		CommitInterval: cfg.Timeout * time.Second,
		GroupID:        "assignment",
		StartOffset:    kafka.LastOffset,
	})
	return &KafkaBus{
		producer: producer,
		consumer: consumer,
		done:     make(chan struct{}),
	}
}

func (b *KafkaBus) PublishGroupFilled(ctx context.Context, ev GroupFilled) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.GroupUuid),
		Value: value,
	})
}

// Start consumes until Close. Malformed events are logged and skipped; the
// handler owns its own idempotency, so redelivery after a commit gap is safe.
func (b *KafkaBus) Start(handler FilledHandler) {
	for {
		msg, err := b.consumer.ReadMessage(context.Background())
		if err != nil {
			select {
			case <-b.done:
				return
			default:
			}
			if errors.Is(err, io.EOF) {
				return
			}
			zap.L().Error("kafka read failed", zap.Error(err))
			continue
		}

		var ev GroupFilled
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			zap.L().Error("malformed group filled event", zap.Error(err))
			continue
		}
		b.handle(handler, ev)
	}
}

func (b *KafkaBus) handle(handler FilledHandler, ev GroupFilled) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("group filled handler panic",
				zap.String("group", ev.GroupUuid), zap.Any("recover", rec))
		}
	}()
	handler(context.Background(), ev)
}

func (b *KafkaBus) Close() {
	close(b.done)
	if err := b.producer.Close(); err != nil {
		zap.L().Error(err.Error())
	}
	if err := b.consumer.Close(); err != nil {
		zap.L().Error(err.Error())
	}
}
