package imageproc

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

// halfAndHalf is w x h with the left half red and the right half blue.
func halfAndHalf(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.Set(x, y, red)
			} else {
				img.Set(x, y, blue)
			}
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

// withOrientation inserts a minimal big-endian EXIF APP1 segment carrying
// the given orientation tag right after the SOI marker.
func withOrientation(jpg []byte, orientation byte) []byte {
	payload := []byte{
		'E', 'x', 'i', 'f', 0, 0,
		'M', 'M', 0x00, 0x2a, 0x00, 0x00, 0x00, 0x08, // TIFF header, IFD0 at 8
		0x00, 0x01, // one entry
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, orientation, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, // no next IFD
	}
	seglen := len(payload) + 2

	out := make([]byte, 0, len(jpg)+len(payload)+4)
	out = append(out, jpg[:2]...)
	out = append(out, 0xff, 0xe1, byte(seglen>>8), byte(seglen))
	out = append(out, payload...)
	out = append(out, jpg[2:]...)
	return out
}

func isRed(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 > 200 && g>>8 < 60 && b>>8 < 60
}

func isBlue(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return b>>8 > 200 && r>>8 < 60 && g>>8 < 60
}

func TestNormalize_KeepsDimensionsWithoutOrientation(t *testing.T) {
	src := encodeJPEG(t, halfAndHalf(64, 32))

	out, err := Normalize(src)
	require.NoError(t, err)
	assert.Equal(t, 64, out.Width)
	assert.Equal(t, 32, out.Height)

	img, err := jpeg.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.True(t, isRed(img.At(8, 16)))
	assert.True(t, isBlue(img.At(56, 16)))
}

func TestNormalize_AppliesExifRotation(t *testing.T) {
	// Orientation 6: stored pixels must be rotated 90 degrees clockwise.
	src := withOrientation(encodeJPEG(t, halfAndHalf(64, 32)), 6)

	out, err := Normalize(src)
	require.NoError(t, err)
	assert.Equal(t, 32, out.Width)
	assert.Equal(t, 64, out.Height)

	img, err := jpeg.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	// The left (red) half of the source ends up on top.
	assert.True(t, isRed(img.At(16, 8)), "top should be red, got %v", img.At(16, 8))
	assert.True(t, isBlue(img.At(16, 56)), "bottom should be blue, got %v", img.At(16, 56))
}

func TestNormalize_StripsExif(t *testing.T) {
	src := withOrientation(encodeJPEG(t, halfAndHalf(16, 16)), 6)

	out, err := Normalize(src)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(out.Data, []byte("Exif\x00\x00")))
}

func TestNormalize_ConvertsPNGToJPEG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 20))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, err := Normalize(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 10, out.Width)
	assert.Equal(t, 20, out.Height)

	_, format, err := image.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestNormalize_CorruptBuffer(t *testing.T) {
	_, err := Normalize([]byte("definitely not an image"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestThumbnail_BoundsLongestSide(t *testing.T) {
	src := encodeJPEG(t, halfAndHalf(1024, 256))

	thumb, err := Thumbnail(src)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Width)
	assert.Equal(t, 128, cfg.Height)
}

func TestThumbnail_DoesNotUpscale(t *testing.T) {
	src := encodeJPEG(t, halfAndHalf(40, 20))

	thumb, err := Thumbnail(src)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 20, cfg.Height)
}
