package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/woundphoto/pkg/dto"
)

// EventHandler receives decoded photo events.
type EventHandler func(ctx context.Context, evt *dto.WSEvent) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js}, nil
}

// ConsumePhotoEvents delivers new photo events to handler until ctx is done.
// Malformed payloads are terminated instead of redelivered.
func (c *Consumer) ConsumePhotoEvents(ctx context.Context, consumerName string, handler EventHandler) error {
	stream, err := c.js.Stream(ctx, PhotosStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", PhotosStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    3,
		FilterSubject: PhotoUploaded,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				handleMessage(ctx, msg, handler)
			}
		}
	}()

	slog.Info("photo event consumer started", "consumer", consumerName)
	return nil
}

// ackable is the part of jetstream.Msg the handler needs.
type ackable interface {
	Data() []byte
	Subject() string
	Ack() error
	Nak() error
	Term() error
}

func handleMessage(ctx context.Context, msg ackable, handler EventHandler) {
	evt, err := DecodePhotoEvent(msg.Data())
	if err != nil {
		slog.Error("drop malformed photo event", "subject", msg.Subject(), "error", err)
		_ = msg.Term()
		return
	}
	if err := handler(ctx, evt); err != nil {
		slog.Error("process photo event", "photo_id", evt.Photo.ID, "error", err)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

func (c *Consumer) Close() {
	c.nc.Close()
}
