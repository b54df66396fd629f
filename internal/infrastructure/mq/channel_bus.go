package mq

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"barmeet_server/pkg/constants"
)

// ChannelBus is the in-process EventBus: a buffered channel drained by one
// consume loop. Suitable when a single instance owns all traffic.
type ChannelBus struct {
	events    chan GroupFilled
	closeOnce sync.Once
}

// NewChannelBus creates an in-process bus.
func NewChannelBus() *ChannelBus {
	return &ChannelBus{
		events: make(chan GroupFilled, constants.CHANNEL_SIZE),
	}
}

// PublishGroupFilled enqueues the event, blocking briefly if the consumer is
// behind. Blocking is preferable to dropping: a lost fill event would leave a
// confirmed group without a venue until the sweeper's next pass.
func (b *ChannelBus) PublishGroupFilled(ctx context.Context, ev GroupFilled) error {
	select {
	case b.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start drains the channel, running the handler inline. Handler panics are
// contained per event.
func (b *ChannelBus) Start(handler FilledHandler) {
	for ev := range b.events {
		b.handle(handler, ev)
	}
}

func (b *ChannelBus) handle(handler FilledHandler, ev GroupFilled) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("group filled handler panic",
				zap.String("group", ev.GroupUuid), zap.Any("recover", rec))
		}
	}()
	handler(context.Background(), ev)
}

// Close stops the consume loop.
func (b *ChannelBus) Close() {
	b.closeOnce.Do(func() {
		close(b.events)
	})
}
