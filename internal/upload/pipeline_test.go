package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/woundphoto/internal/analyzer"
	"github.com/your-org/woundphoto/internal/media"
	"github.com/your-org/woundphoto/internal/models"
)

type fakeMedia struct {
	mu    sync.Mutex
	saved []media.SaveRequest
	thumb string
	err   error
}

func (f *fakeMedia) Name() string { return "fake" }

func (f *fakeMedia) Save(_ context.Context, req media.SaveRequest) (*media.Saved, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.saved = append(f.saved, req)
	return &media.Saved{URL: "https://cdn.example/" + req.Filename, ThumbURL: f.thumb}, nil
}

type fakeStore struct {
	mu     sync.Mutex
	photos []*models.Photo
	err    error
}

func (f *fakeStore) CreatePhoto(_ context.Context, p *models.Photo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	p.ID = int64(len(f.photos) + 1)
	p.CreatedAt = time.Now().UTC()
	f.photos = append(f.photos, p)
	return nil
}

func (f *fakeStore) ListPhotosForDay(context.Context, string, int) ([]models.Photo, error) {
	return nil, nil
}

func (f *fakeStore) ListPhotosForUser(context.Context, string, *int, *int) ([]models.Photo, error) {
	return nil, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close()                     {}

type fakeEvents struct {
	published []*models.Photo
	err       error
}

func (f *fakeEvents) PublishPhoto(_ context.Context, p *models.Photo) error {
	f.published = append(f.published, p)
	return f.err
}

type failingAnalyzer struct{}

func (failingAnalyzer) Engine() string { return analyzer.EngineCLIP }

func (failingAnalyzer) Analyze(context.Context, []byte) (*models.Analysis, error) {
	return nil, errors.New("model unavailable")
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 180, G: 90, B: 70, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func fixedMock(p float64) *analyzer.Mock {
	return &analyzer.Mock{Rand: func() float64 { return p }}
}

func TestValidate(t *testing.T) {
	p := NewPipeline(fixedMock(0.1), &fakeMedia{}, &fakeStore{}, nil, 15*1024*1024)

	for _, ct := range []string{"image/jpeg", "image/png", "image/webp", "image/heic", "image/heif", "IMAGE/JPEG"} {
		assert.NoError(t, p.Validate(ct, 1024), ct)
	}
	assert.NoError(t, p.Validate("image/jpeg", 15*1024*1024))

	var inErr *InputError
	err := p.Validate("application/pdf", 10)
	require.ErrorAs(t, err, &inErr)
	assert.Equal(t, "Unsupported file type", inErr.Msg)

	err = p.Validate("", 10)
	require.ErrorAs(t, err, &inErr)

	err = p.Validate("image/png", 15*1024*1024+1)
	require.ErrorAs(t, err, &inErr)
	assert.Equal(t, "File too large", inErr.Msg)
}

func TestReadBody_StopsPastLimit(t *testing.T) {
	p := NewPipeline(fixedMock(0.1), &fakeMedia{}, &fakeStore{}, nil, 10)

	data, err := p.ReadBody(bytes.NewReader(make([]byte, 100)))
	require.NoError(t, err)
	assert.Len(t, data, 11)
	assert.Error(t, p.Validate("image/jpeg", int64(len(data))))
}

func TestProcess_HappyPath(t *testing.T) {
	m := &fakeMedia{thumb: "https://cdn.example/thumb.jpg"}
	s := &fakeStore{}
	ev := &fakeEvents{}
	p := NewPipeline(fixedMock(0.8), m, s, ev, 1<<20)

	res, err := p.Process(context.Background(), Upload{
		UserID: "u1", Day: 3, Filename: "wound.png", ContentType: "image/png", Data: jpegBytes(t, 64, 48),
	})
	require.NoError(t, err)

	assert.True(t, res.Normalized)
	assert.Equal(t, int64(1), res.Photo.ID)
	assert.Equal(t, 64, *res.Photo.Width)
	assert.Equal(t, 48, *res.Photo.Height)
	assert.Equal(t, "image/png", res.Photo.ContentType)
	assert.Equal(t, "https://cdn.example/wound.png", res.Photo.StorageURL)
	assert.Equal(t, "https://cdn.example/thumb.jpg", *res.Photo.ThumbURL)
	assert.Equal(t, analyzer.LabelInfected, res.Photo.Analysis.Prediction)

	require.Len(t, m.saved, 1)
	// stored bytes are the re-encoded JPEG
	assert.Equal(t, []byte{0xFF, 0xD8}, m.saved[0].Data[:2])
	require.Len(t, ev.published, 1)
	assert.Same(t, res.Photo, ev.published[0])
}

func TestProcess_InvalidInputHasNoSideEffects(t *testing.T) {
	m := &fakeMedia{}
	s := &fakeStore{}
	ev := &fakeEvents{}
	p := NewPipeline(fixedMock(0.1), m, s, ev, 1<<20)

	_, err := p.Process(context.Background(), Upload{UserID: "u1", Day: 1, ContentType: "text/plain", Data: []byte("hi")})
	var inErr *InputError
	require.ErrorAs(t, err, &inErr)

	assert.Empty(t, m.saved)
	assert.Empty(t, s.photos)
	assert.Empty(t, ev.published)
}

func TestProcess_NormalizationFallbackKeepsOriginal(t *testing.T) {
	m := &fakeMedia{}
	p := NewPipeline(fixedMock(0.1), m, &fakeStore{}, nil, 1<<20)

	original := []byte("pretend this is heic")
	res, err := p.Process(context.Background(), Upload{UserID: "u1", Day: 1, Filename: "a.heic", ContentType: "image/heic", Data: original})
	require.NoError(t, err)

	assert.False(t, res.Normalized)
	assert.Nil(t, res.Photo.Width)
	assert.Nil(t, res.Photo.Height)
	assert.Equal(t, original, m.saved[0].Data)
}

func TestProcess_AnalyzerFailureFallsBackToMock(t *testing.T) {
	a := analyzer.NewFallback(failingAnalyzer{}, fixedMock(0.2))
	p := NewPipeline(a, &fakeMedia{}, &fakeStore{}, nil, 1<<20)

	res, err := p.Process(context.Background(), Upload{UserID: "u1", Day: 1, Filename: "a.jpg", ContentType: "image/jpeg", Data: jpegBytes(t, 8, 8)})
	require.NoError(t, err)

	assert.Equal(t, analyzer.EngineMock, res.Photo.Analysis.Engine)
	assert.True(t, res.Photo.Analysis.Fallback)
	assert.Contains(t, res.Photo.Analysis.Note, "model unavailable")
}

func TestProcess_StorageFailureIsFatal(t *testing.T) {
	s := &fakeStore{}
	p := NewPipeline(fixedMock(0.1), &fakeMedia{err: errors.New("disk full")}, s, nil, 1<<20)

	_, err := p.Process(context.Background(), Upload{UserID: "u1", Day: 1, Filename: "a.jpg", ContentType: "image/jpeg", Data: jpegBytes(t, 8, 8)})
	require.ErrorContains(t, err, "disk full")

	var inErr *InputError
	assert.False(t, errors.As(err, &inErr))
	assert.Empty(t, s.photos)
}

func TestProcess_PersistFailureIsFatal(t *testing.T) {
	ev := &fakeEvents{}
	p := NewPipeline(fixedMock(0.1), &fakeMedia{}, &fakeStore{err: errors.New("db locked")}, ev, 1<<20)

	_, err := p.Process(context.Background(), Upload{UserID: "u1", Day: 1, Filename: "a.jpg", ContentType: "image/jpeg", Data: jpegBytes(t, 8, 8)})
	require.ErrorContains(t, err, "db locked")
	assert.Empty(t, ev.published)
}

func TestProcess_PublishFailureIsNotFatal(t *testing.T) {
	ev := &fakeEvents{err: errors.New("nats down")}
	p := NewPipeline(fixedMock(0.1), &fakeMedia{}, &fakeStore{}, ev, 1<<20)

	res, err := p.Process(context.Background(), Upload{UserID: "u1", Day: 1, Filename: "a.jpg", ContentType: "image/jpeg", Data: jpegBytes(t, 8, 8)})
	require.NoError(t, err)
	assert.NotZero(t, res.Photo.ID)
}
