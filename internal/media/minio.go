package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/your-org/woundphoto/internal/config"
	"github.com/your-org/woundphoto/internal/imageproc"
)

type objectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOBackend stores photos and thumbnails as objects in a single bucket.
type MinIOBackend struct {
	client    objectClient
	bucket    string
	folder    string
	publicURL string
	now       func() time.Time
}

func NewMinIOBackend(cfg config.MinIOConfig) (*MinIOBackend, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}

	return &MinIOBackend{
		client:    client,
		bucket:    cfg.Bucket,
		folder:    cfg.Folder,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}, nil
}

func (b *MinIOBackend) Name() string { return "minio" }

// EnsureBucket creates the bucket if it doesn't exist.
func (b *MinIOBackend) EnsureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// Ping checks MinIO connectivity.
func (b *MinIOBackend) Ping(ctx context.Context) error {
	_, err := b.client.BucketExists(ctx, b.bucket)
	return err
}

func (b *MinIOBackend) Save(ctx context.Context, req SaveRequest) (*Saved, error) {
	prefix := b.prefix(req.UserID, req.Day)
	name := timestampName(b.now()) + "-" + uuid.NewString()

	key := prefix + "/" + name + extension(req.Filename)
	if err := b.put(ctx, key, req.Data, req.ContentType); err != nil {
		return nil, err
	}
	saved := &Saved{URL: b.objectURL(key)}

	thumb, err := imageproc.Thumbnail(req.Data)
	if err != nil {
		slog.Warn("thumbnail generation failed", "key", key, "error", err)
		return saved, nil
	}
	thumbKey := prefix + "/thumb_" + name + ".jpg"
	if err := b.put(ctx, thumbKey, thumb, "image/jpeg"); err != nil {
		slog.Warn("thumbnail upload failed", "key", thumbKey, "error", err)
		return saved, nil
	}
	saved.ThumbURL = b.objectURL(thumbKey)
	return saved, nil
}

func (b *MinIOBackend) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (b *MinIOBackend) prefix(userID string, day int) string {
	return path.Join(b.folder, SanitizeUserID(userID), strconv.Itoa(day))
}

func (b *MinIOBackend) objectURL(key string) string {
	return b.publicURL + "/" + b.bucket + "/" + key
}
