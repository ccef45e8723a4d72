package models

import (
	"time"
)

// Photo is the only persisted entity. Rows are create-only.
type Photo struct {
	ID          int64     `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Day         int       `json:"day" db:"day"`
	FileName    string    `json:"file_name" db:"file_name"`
	ContentType string    `json:"content_type" db:"content_type"`
	StorageURL  string    `json:"storage_url" db:"storage_url"`
	ThumbURL    *string   `json:"thumb_url" db:"thumb_url"`
	Width       *int      `json:"width" db:"width"`
	Height      *int      `json:"height" db:"height"`
	Analysis    *Analysis `json:"analysis" db:"analysis"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Dimensions are post-rotation pixel sizes.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Analysis is the classification payload. Engine, Labels, Probs and Prediction
// are always set; the remaining fields depend on the engine and fallback path.
type Analysis struct {
	Engine     string      `json:"engine"`
	Labels     []string    `json:"labels"`
	Probs      []float64   `json:"probs"`
	Prediction string      `json:"prediction"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	Disclaimer string      `json:"disclaimer,omitempty"`
	Explain    string      `json:"explain,omitempty"`
	// Note and Fallback are set when the mock engine stood in for a failed one.
	Note     string `json:"note,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}
