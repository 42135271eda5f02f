package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// WatermillBus implements Bus using watermill's in-memory GoChannel.
type WatermillBus struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger watermill.LoggerAdapter
}

// metaKeyTopic transfers the Message.Topic field through watermill's
// metadata so subscribers can recover it.
const metaKeyTopic = "topic"

// NewWatermillBus initializes the in-memory bus.
func NewWatermillBus() *WatermillBus {
	logger := watermill.NewStdLogger(false, false)
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{},
		logger,
	)

	return &WatermillBus{
		pub:    goChannel,
		sub:    goChannel,
		logger: logger,
	}
}

// Publish implements the Publisher interface. The bus message's Topic is
// used as the watermill topic.
func (b *WatermillBus) Publish(ctx context.Context, msg Message) error {
	wmMsg := message.NewMessage(watermill.NewUUID(), msg.Payload)
	wmMsg.Metadata.Set(metaKeyTopic, msg.Topic)
	for k, v := range msg.Metadata {
		wmMsg.Metadata.Set(k, v)
	}
	return b.pub.Publish(msg.Topic, wmMsg)
}

// Subscribe implements the Subscriber interface. It is non-blocking; the
// handler runs on a background goroutine until ctx is cancelled or the bus
// is closed.
func (b *WatermillBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := b.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for wmMsg := range messages {
			msg := Message{
				Topic:    wmMsg.Metadata.Get(metaKeyTopic),
				Payload:  wmMsg.Payload,
				Metadata: metadataWithoutTopic(wmMsg.Metadata),
			}

			if err := handler(ctx, msg); err != nil {
				slog.Error("Failed to handle bus message", "topic", topic, "msg_id", wmMsg.UUID, "error", err)
				// In-memory bus: acknowledge anyway. The error is logged and a
				// nack would only make the gochannel redeliver to this same
				// handler.
			}
			wmMsg.Ack()
		}
		slog.Debug("Subscription message loop ended", "topic", topic)
	}()

	return nil
}

func metadataWithoutTopic(md message.Metadata) map[string]string {
	out := make(map[string]string)
	for k, v := range md {
		if k != metaKeyTopic {
			out[k] = v
		}
	}
	return out
}

// Close shuts down the bus. Closing the subscriber closes the gochannel and
// stops message consumption.
func (b *WatermillBus) Close() error {
	return b.sub.Close()
}
