// Package media persists cleaned photos and returns their public URLs.
package media

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/your-org/woundphoto/internal/config"
)

// SaveRequest describes one cleaned photo to store.
type SaveRequest struct {
	UserID      string
	Day         int
	Filename    string
	Data        []byte
	ContentType string
}

// Saved holds the public URLs of a stored photo. ThumbURL is empty when no
// thumbnail was produced.
type Saved struct {
	URL      string
	ThumbURL string
}

// Backend is implemented by every storage variant.
type Backend interface {
	Name() string
	Save(ctx context.Context, req SaveRequest) (*Saved, error)
}

// New builds the backend selected in configuration.
func New(cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.StorageLocal:
		return NewLocalBackend(cfg.Storage.LocalMediaRoot, cfg.Storage.BaseURL)
	case config.StorageCloudinary:
		return NewCloudinaryBackend(cfg.Cloudinary)
	case config.StorageMinIO:
		return NewMinIOBackend(cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// SanitizeUserID makes a user id safe to use as a single path segment.
func SanitizeUserID(userID string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(userID)
	if safe == "" || safe == "." || safe == ".." {
		return "_"
	}
	return safe
}

// timestampName formats t with microsecond resolution, e.g. 20240102150405123456.
func timestampName(t time.Time) string {
	t = t.UTC()
	return t.Format("20060102150405") + fmt.Sprintf("%06d", t.Nanosecond()/1000)
}

// extension returns the lowercased extension of filename, including the dot.
func extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
