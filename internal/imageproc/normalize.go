package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	// NormalizedQuality is the JPEG quality of cleaned uploads.
	NormalizedQuality = 92
	// ThumbnailQuality is the JPEG quality of thumbnails.
	ThumbnailQuality = 85
	// ThumbnailMaxSide bounds the longest thumbnail side.
	ThumbnailMaxSide = 512
)

// ErrDecode is returned when the buffer is not a decodable raster image.
var ErrDecode = errors.New("decode image")

// Normalized is a re-encoded, metadata-free image.
type Normalized struct {
	Data   []byte
	Width  int
	Height int
}

// Decode decodes data and applies the EXIF orientation tag, if any.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Normalize rotates pixels into display orientation, drops alpha and every
// metadata segment, and re-encodes as JPEG.
func Normalize(data []byte) (*Normalized, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	rgb := ToRGB(img)
	bounds := rgb.Bounds()

	slog.Debug("normalize: decoded image",
		"input_size_bytes", len(data),
		"width", bounds.Dx(),
		"height", bounds.Dy())

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, rgb, imaging.JPEG, imaging.JPEGQuality(NormalizedQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return &Normalized{
		Data:   buf.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// ToRGB copies img into an opaque NRGBA image anchored at the origin.
// The alpha channel is discarded rather than composited.
func ToRGB(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// Thumbnail decodes data and returns a JPEG whose longest side is at most
// ThumbnailMaxSide. Smaller images are not upscaled.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	thumb := imaging.Fit(ToRGB(img), ThumbnailMaxSide, ThumbnailMaxSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(ThumbnailQuality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
