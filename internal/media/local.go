package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/your-org/woundphoto/internal/imageproc"
)

const maxNameAttempts = 1000

// LocalBackend writes photos under root/<user>/<day>/ and serves them from
// baseURL + "/media/...". Without a baseURL the returned URL is the raw
// filesystem path and no thumbnail URL is reported.
type LocalBackend struct {
	root    string
	baseURL string
	now     func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewLocalBackend(root, baseURL string) (*LocalBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &LocalBackend{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

func (b *LocalBackend) Name() string { return "local" }

// Root is the directory served under /media.
func (b *LocalBackend) Root() string { return b.root }

func (b *LocalBackend) Save(_ context.Context, req SaveRequest) (*Saved, error) {
	safeUser := SanitizeUserID(req.UserID)
	day := strconv.Itoa(req.Day)
	folder := filepath.Join(b.root, safeUser, day)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}

	ext := extension(req.Filename)
	ts, fullPath, err := b.createUnique(folder, ext, req.Data)
	if err != nil {
		return nil, err
	}
	fname := filepath.Base(fullPath)

	saved := &Saved{URL: fullPath}
	if b.baseURL != "" {
		saved.URL = b.publicURL(safeUser, day, fname)
	}

	thumbName := "thumb_" + ts + ".jpg"
	if err := b.writeThumbnail(filepath.Join(folder, thumbName), req.Data); err != nil {
		slog.Warn("thumbnail generation failed", "path", fullPath, "error", err)
	} else if b.baseURL != "" {
		saved.ThumbURL = b.publicURL(safeUser, day, thumbName)
	}

	return saved, nil
}

// createUnique writes data to <folder>/<timestamp><ext>, advancing the
// timestamp by one microsecond until the name is unused.
func (b *LocalBackend) createUnique(folder, ext string, data []byte) (string, string, error) {
	stamp := b.nextStamp()
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		ts := timestampName(stamp)
		path := filepath.Join(folder, ts+ext)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			stamp = b.bumpPast(stamp)
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("create file: %w", err)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", "", fmt.Errorf("write file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", "", fmt.Errorf("close file: %w", err)
		}
		return ts, path, nil
	}
	return "", "", fmt.Errorf("no free file name in %s after %d attempts", folder, maxNameAttempts)
}

// nextStamp returns a microsecond timestamp strictly later than any
// previously issued by this backend.
func (b *LocalBackend) nextStamp() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.now().UTC().Truncate(time.Microsecond)
	if !t.After(b.last) {
		t = b.last.Add(time.Microsecond)
	}
	b.last = t
	return t
}

func (b *LocalBackend) bumpPast(t time.Time) time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := t.Add(time.Microsecond)
	if !next.After(b.last) {
		next = b.last.Add(time.Microsecond)
	}
	b.last = next
	return next
}

func (b *LocalBackend) writeThumbnail(path string, data []byte) error {
	thumb, err := imageproc.Thumbnail(data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, thumb, 0o644)
}

func (b *LocalBackend) publicURL(safeUser, day, name string) string {
	return b.baseURL + "/media/" + safeUser + "/" + day + "/" + name
}
