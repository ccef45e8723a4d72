package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/woundphoto/internal/models"
	"github.com/your-org/woundphoto/pkg/dto"
)

type fakeMsg struct {
	data               []byte
	acked, naked, term bool
}

func (m *fakeMsg) Data() []byte    { return m.data }
func (m *fakeMsg) Subject() string { return PhotoUploaded }
func (m *fakeMsg) Ack() error      { m.acked = true; return nil }
func (m *fakeMsg) Nak() error      { m.naked = true; return nil }
func (m *fakeMsg) Term() error     { m.term = true; return nil }

func samplePhoto() *models.Photo {
	return &models.Photo{
		ID:          9,
		UserID:      "u1",
		Day:         2,
		FileName:    "a.jpg",
		ContentType: "image/jpeg",
		StorageURL:  "https://cdn/a.jpg",
		Analysis:    &models.Analysis{Engine: "mock", Labels: []string{"healthy", "infected"}, Probs: []float64{0.7, 0.3}, Prediction: "healthy"},
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPhotoEventRoundTrip(t *testing.T) {
	payload, err := EncodePhotoEvent(samplePhoto())
	require.NoError(t, err)

	evt, err := DecodePhotoEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, dto.EventPhotoUploaded, evt.Type)
	assert.Equal(t, int64(9), evt.Photo.ID)
	assert.Equal(t, "u1", evt.Photo.UserID)
	assert.Equal(t, "healthy", evt.Photo.Analysis.Prediction)
}

func TestDecodePhotoEvent_RejectsOtherTypes(t *testing.T) {
	_, err := DecodePhotoEvent([]byte(`{"type":"something_else"}`))
	assert.Error(t, err)

	_, err = DecodePhotoEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestHandleMessage(t *testing.T) {
	payload, err := EncodePhotoEvent(samplePhoto())
	require.NoError(t, err)

	var got *dto.WSEvent
	msg := &fakeMsg{data: payload}
	handleMessage(context.Background(), msg, func(_ context.Context, evt *dto.WSEvent) error {
		got = evt
		return nil
	})
	assert.True(t, msg.acked)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Photo.Day)

	msg = &fakeMsg{data: payload}
	handleMessage(context.Background(), msg, func(context.Context, *dto.WSEvent) error {
		return errors.New("hub closed")
	})
	assert.True(t, msg.naked)
	assert.False(t, msg.acked)

	msg = &fakeMsg{data: []byte("garbage")}
	handleMessage(context.Background(), msg, func(context.Context, *dto.WSEvent) error {
		t.Fatal("handler must not run for malformed payloads")
		return nil
	})
	assert.True(t, msg.term)
}
