// Package queue carries photo upload events over NATS JetStream.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/woundphoto/internal/models"
	"github.com/your-org/woundphoto/pkg/dto"
)

const (
	PhotosStreamName  = "PHOTOS"
	PhotosSubjectBase = "photos"
	PhotoUploaded     = PhotosSubjectBase + ".uploaded"
)

func connect(natsURL string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return nc, js, nil
}

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Producer{nc: nc, js: js}, nil
}

// EnsureStream creates the PHOTOS stream if it doesn't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStream(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        PhotosStreamName,
		Subjects:    []string{PhotosSubjectBase + ".>"},
		Retention:   jetstream.InterestPolicy,
		MaxAge:      24 * time.Hour,
		MaxMsgs:     1000000,
		Storage:     jetstream.FileStorage,
		Duplicates:  time.Minute,
		Description: "Photo upload events",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", cfg.Name)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil
}

// PublishPhoto publishes a photo_uploaded event. The photo id doubles as
// the JetStream message id so redeliveries of the same publish are dropped.
func (p *Producer) PublishPhoto(ctx context.Context, photo *models.Photo) error {
	payload, err := EncodePhotoEvent(photo)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(ctx, PhotoUploaded, payload, jetstream.WithMsgID(strconv.FormatInt(photo.ID, 10)))
	if err != nil {
		return fmt.Errorf("publish photo event: %w", err)
	}
	return nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}

// EncodePhotoEvent builds the wire payload shared by the bus and WebSocket clients.
func EncodePhotoEvent(photo *models.Photo) ([]byte, error) {
	payload, err := json.Marshal(dto.WSEvent{
		Type:  dto.EventPhotoUploaded,
		Photo: dto.NewPhotoResponse(photo),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal photo event: %w", err)
	}
	return payload, nil
}

// DecodePhotoEvent parses a payload produced by EncodePhotoEvent.
func DecodePhotoEvent(data []byte) (*dto.WSEvent, error) {
	var evt dto.WSEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("unmarshal photo event: %w", err)
	}
	if evt.Type != dto.EventPhotoUploaded {
		return nil, fmt.Errorf("unexpected event type %q", evt.Type)
	}
	return &evt, nil
}
