package dto

import (
	"time"

	"github.com/your-org/woundphoto/internal/models"
)

// EventPhotoUploaded is the WSEvent type sent after a photo is persisted.
const EventPhotoUploaded = "photo_uploaded"

// UploadResponse is returned by POST /photo/upload.
type UploadResponse struct {
	UserID   string           `json:"userId"`
	Day      int              `json:"day"`
	PhotoID  int64            `json:"photoId"`
	PhotoURL string           `json:"photoUrl"`
	ThumbURL *string          `json:"thumbUrl"`
	Analysis *models.Analysis `json:"analysis"`
	// Normalized is false when the original bytes were stored because decoding failed.
	Normalized bool `json:"normalized"`
}

// PhotoResponse is one record in the listing endpoints.
type PhotoResponse struct {
	ID          int64            `json:"id"`
	UserID      string           `json:"user_id"`
	Day         int              `json:"day"`
	StorageURL  string           `json:"storage_url"`
	ThumbURL    *string          `json:"thumb_url"`
	ContentType string           `json:"content_type"`
	Width       *int             `json:"width"`
	Height      *int             `json:"height"`
	CreatedAt   string           `json:"created_at"`
	Analysis    *models.Analysis `json:"analysis"`
}

func NewPhotoResponse(p *models.Photo) PhotoResponse {
	return PhotoResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		Day:         p.Day,
		StorageURL:  p.StorageURL,
		ThumbURL:    p.ThumbURL,
		ContentType: p.ContentType,
		Width:       p.Width,
		Height:      p.Height,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339Nano),
		Analysis:    p.Analysis,
	}
}

func NewPhotoList(photos []models.Photo) []PhotoResponse {
	out := make([]PhotoResponse, 0, len(photos))
	for i := range photos {
		out = append(out, NewPhotoResponse(&photos[i]))
	}
	return out
}

// WSEvent is pushed to clinician WebSocket clients and carried on the event bus.
type WSEvent struct {
	Type  string        `json:"type"`
	Photo PhotoResponse `json:"photo"`
}

// ArmInjuryResponse is returned by POST /detect-arm-injury.
type ArmInjuryResponse struct {
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
}
