package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/your-org/woundphoto/internal/config"
)

// thumbnailTransform asks the service for a bounded copy alongside the upload.
const thumbnailTransform = "c_limit,w_512,h_512"

type imageUploader interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// CloudinaryBackend uploads photos to Cloudinary under <folder>/<user>/<day>.
type CloudinaryBackend struct {
	up     imageUploader
	folder string
}

func NewCloudinaryBackend(cfg config.CloudinaryConfig) (*CloudinaryBackend, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("cloudinary backend requires cloud name, api key and api secret")
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("create cloudinary client: %w", err)
	}
	return &CloudinaryBackend{up: &cld.Upload, folder: cfg.Folder}, nil
}

func (b *CloudinaryBackend) Name() string { return "cloudinary" }

func (b *CloudinaryBackend) Save(ctx context.Context, req SaveRequest) (*Saved, error) {
	folder := fmt.Sprintf("%s/%s/%d", b.folder, req.UserID, req.Day)

	resp, err := b.up.Upload(ctx, bytes.NewReader(req.Data), uploader.UploadParams{
		Folder:       folder,
		ResourceType: "image",
		Overwrite:    api.Bool(false),
		Eager:        thumbnailTransform,
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload: %s", resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return nil, errors.New("cloudinary upload: response has no secure url")
	}

	saved := &Saved{URL: resp.SecureURL}
	if len(resp.Eager) > 0 {
		saved.ThumbURL = resp.Eager[0].SecureURL
	}
	return saved, nil
}
