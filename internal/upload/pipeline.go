// Package upload runs the photo upload pipeline:
// validate, normalize, analyze, store, persist, publish.
package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/your-org/woundphoto/internal/analyzer"
	"github.com/your-org/woundphoto/internal/imageproc"
	"github.com/your-org/woundphoto/internal/media"
	"github.com/your-org/woundphoto/internal/models"
	"github.com/your-org/woundphoto/internal/observability"
	"github.com/your-org/woundphoto/internal/storage"
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

// InputError is a client-side validation failure.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// Upload is one photo submitted by a patient.
type Upload struct {
	UserID      string
	Day         int
	Filename    string
	ContentType string
	Data        []byte
}

// Result is the outcome of a successful pipeline run.
type Result struct {
	Photo *models.Photo
	// Normalized is false when the original bytes were kept.
	Normalized bool
}

// EventPublisher announces persisted photos. Failures are logged, not returned to the uploader.
type EventPublisher interface {
	PublishPhoto(ctx context.Context, p *models.Photo) error
}

type Pipeline struct {
	analyzer analyzer.Analyzer
	media    media.Backend
	store    storage.PhotoStore
	events   EventPublisher
	maxBytes int64
}

// NewPipeline wires the pipeline stages. events may be nil.
func NewPipeline(a analyzer.Analyzer, m media.Backend, s storage.PhotoStore, events EventPublisher, maxBytes int64) *Pipeline {
	return &Pipeline{analyzer: a, media: m, store: s, events: events, maxBytes: maxBytes}
}

// MaxBytes is the largest accepted upload.
func (p *Pipeline) MaxBytes() int64 { return p.maxBytes }

// Validate checks the declared content type and the payload size.
func (p *Pipeline) Validate(contentType string, size int64) error {
	if !allowedTypes[strings.ToLower(contentType)] {
		return &InputError{Msg: "Unsupported file type"}
	}
	if size > p.maxBytes {
		return &InputError{Msg: "File too large"}
	}
	return nil
}

// ReadBody reads at most MaxBytes+1 bytes so oversized uploads are detected
// without buffering them whole.
func (p *Pipeline) ReadBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}

// Process runs every stage for up. Validation failures return *InputError
// and leave no side effects.
func (p *Pipeline) Process(ctx context.Context, up Upload) (*Result, error) {
	if err := p.Validate(up.ContentType, int64(len(up.Data))); err != nil {
		return nil, err
	}
	photo := &models.Photo{
		UserID:      up.UserID,
		Day:         up.Day,
		FileName:    up.Filename,
		ContentType: up.ContentType,
	}

	data := up.Data
	normalized := true
	if n, err := imageproc.Normalize(up.Data); err != nil {
		slog.Warn("normalization failed, storing original bytes", "user_id", up.UserID, "error", err)
		observability.NormalizationFallbacks.Inc()
		normalized = false
	} else {
		data = n.Data
		photo.Width, photo.Height = &n.Width, &n.Height
	}

	analysis, err := p.analyzer.Analyze(ctx, data)
	if err != nil {
		observability.UploadsTotal.WithLabelValues(p.analyzer.Engine(), "error").Inc()
		return nil, fmt.Errorf("analyze: %w", err)
	}
	photo.Analysis = analysis

	start := time.Now()
	saved, err := p.media.Save(ctx, media.SaveRequest{
		UserID:      up.UserID,
		Day:         up.Day,
		Filename:    up.Filename,
		Data:        data,
		ContentType: up.ContentType,
	})
	observability.StorageDuration.WithLabelValues(p.media.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.UploadsTotal.WithLabelValues(analysis.Engine, "error").Inc()
		return nil, fmt.Errorf("store photo: %w", err)
	}
	photo.StorageURL = saved.URL
	if saved.ThumbURL != "" {
		photo.ThumbURL = &saved.ThumbURL
	}

	if err := p.store.CreatePhoto(ctx, photo); err != nil {
		observability.UploadsTotal.WithLabelValues(analysis.Engine, "error").Inc()
		return nil, fmt.Errorf("persist photo: %w", err)
	}
	observability.UploadsTotal.WithLabelValues(analysis.Engine, "ok").Inc()

	if p.events != nil {
		if err := p.events.PublishPhoto(ctx, photo); err != nil {
			slog.Warn("publish photo event", "photo_id", photo.ID, "error", err)
		}
	}

	slog.Info("photo uploaded",
		"photo_id", photo.ID,
		"user_id", photo.UserID,
		"day", photo.Day,
		"engine", analysis.Engine,
		"prediction", analysis.Prediction,
		"normalized", normalized,
	)

	return &Result{Photo: photo, Normalized: normalized}, nil
}
