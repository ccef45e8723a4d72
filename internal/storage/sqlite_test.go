package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/woundphoto/internal/config"
	"github.com/your-org/woundphoto/internal/models"
)

func setupSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "photos.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func intPtr(v int) *int { return &v }

func newPhoto(user string, day int, name string) *models.Photo {
	return &models.Photo{
		UserID:      user,
		Day:         day,
		FileName:    name,
		ContentType: "image/jpeg",
		StorageURL:  "http://localhost:8000/media/" + user + "/" + name,
	}
}

func TestSQLiteStore_CreatePhotoRoundTrip(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	thumb := "http://localhost:8000/media/u1/1/thumb.jpg"
	p := newPhoto("u1", 1, "a.jpg")
	p.ThumbURL = &thumb
	p.Width = intPtr(640)
	p.Height = intPtr(480)
	p.Analysis = &models.Analysis{
		Engine:     "clip",
		Labels:     []string{"healthy", "infected"},
		Probs:      []float64{0.9, 0.1},
		Prediction: "healthy",
		Dimensions: &models.Dimensions{Width: 640, Height: 480},
	}

	require.NoError(t, s.CreatePhoto(ctx, p))
	assert.NotZero(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := s.ListPhotosForDay(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p.ID, got[0].ID)
	assert.Equal(t, thumb, *got[0].ThumbURL)
	assert.Equal(t, 640, *got[0].Width)
	assert.Equal(t, 480, *got[0].Height)
	assert.Equal(t, p.Analysis, got[0].Analysis)
	assert.True(t, p.CreatedAt.Equal(got[0].CreatedAt))
}

func TestSQLiteStore_NullableFields(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePhoto(ctx, newPhoto("u1", 1, "bare.jpg")))

	got, err := s.ListPhotosForDay(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].ThumbURL)
	assert.Nil(t, got[0].Width)
	assert.Nil(t, got[0].Height)
	assert.Nil(t, got[0].Analysis)
}

func TestSQLiteStore_Ordering(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	// Same wall clock for every insert: creation order must still hold.
	frozen := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	d2first := newPhoto("u1", 2, "d2-first.jpg")
	d1 := newPhoto("u1", 1, "d1.jpg")
	d2second := newPhoto("u1", 2, "d2-second.jpg")
	for _, p := range []*models.Photo{d2first, d1, d2second} {
		require.NoError(t, s.CreatePhoto(ctx, p))
	}
	require.NoError(t, s.CreatePhoto(ctx, newPhoto("other", 2, "x.jpg")))

	day2, err := s.ListPhotosForDay(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"d2-second.jpg", "d2-first.jpg"}, fileNames(day2))

	all, err := s.ListPhotosForUser(ctx, "u1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1.jpg", "d2-first.jpg", "d2-second.jpg"}, fileNames(all))

	assert.True(t, d2first.CreatedAt.Before(d2second.CreatedAt))
}

func TestSQLiteStore_DayRange(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	for day := 1; day <= 5; day++ {
		require.NoError(t, s.CreatePhoto(ctx, newPhoto("u1", day, "p.jpg")))
	}

	got, err := s.ListPhotosForUser(ctx, "u1", intPtr(2), intPtr(4))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, days(got))

	got, err = s.ListPhotosForUser(ctx, "u1", intPtr(4), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, days(got))

	got, err = s.ListPhotosForUser(ctx, "u1", nil, intPtr(1))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, days(got))
}

func TestSQLiteStore_UnknownUserIsEmpty(t *testing.T) {
	s := setupSQLite(t)

	got, err := s.ListPhotosForUser(context.Background(), "nobody", nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photos.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.CreatePhoto(ctx, newPhoto("u1", 1, "a.jpg")))
	s.Close()

	reopened, err := Open(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.ListPhotosForDay(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, reopened.Ping(ctx))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
}

func fileNames(photos []models.Photo) []string {
	out := make([]string, len(photos))
	for i, p := range photos {
		out[i] = p.FileName
	}
	return out
}

func days(photos []models.Photo) []int {
	out := make([]int, len(photos))
	for i, p := range photos {
		out[i] = p.Day
	}
	return out
}
