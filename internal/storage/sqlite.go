package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/your-org/woundphoto/internal/config"
	"github.com/your-org/woundphoto/internal/models"
)

const photoColumns = `id, user_id, day, file_name, content_type, storage_url, thumb_url, width, height, analysis, created_at`

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time

	mu   sync.Mutex
	last int64
}

// NewSQLiteStore opens the database file at path and migrates it.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := Migrate(ctx, db, config.DriverSQLite); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		slog.Warn("close sqlite", "error", err)
	}
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) CreatePhoto(ctx context.Context, p *models.Photo) error {
	analysis, err := marshalAnalysis(p.Analysis)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := s.now().UTC().UnixMicro()
	if created <= s.last {
		created = s.last + 1
	}

	var analysisArg any
	if analysis != nil {
		analysisArg = string(analysis)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO photos (user_id, day, file_name, content_type, storage_url, thumb_url, width, height, analysis, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Day, p.FileName, p.ContentType, p.StorageURL, p.ThumbURL, p.Width, p.Height, analysisArg, created,
	)
	if err != nil {
		return fmt.Errorf("create photo: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create photo: %w", err)
	}

	s.last = created
	p.ID = id
	p.CreatedAt = time.UnixMicro(created).UTC()
	return nil
}

func (s *SQLiteStore) ListPhotosForDay(ctx context.Context, userID string, day int) ([]models.Photo, error) {
	return s.query(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE user_id = ? AND day = ? ORDER BY created_at DESC, id DESC`,
		userID, day)
}

func (s *SQLiteStore) ListPhotosForUser(ctx context.Context, userID string, fromDay, toDay *int) ([]models.Photo, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + photoColumns + ` FROM photos WHERE user_id = ?`)
	args := []any{userID}
	if fromDay != nil {
		b.WriteString(` AND day >= ?`)
		args = append(args, *fromDay)
	}
	if toDay != nil {
		b.WriteString(` AND day <= ?`)
		args = append(args, *toDay)
	}
	b.WriteString(` ORDER BY day ASC, created_at ASC, id ASC`)
	return s.query(ctx, b.String(), args...)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]models.Photo, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	photos := []models.Photo{}
	for rows.Next() {
		var (
			p             models.Photo
			thumb         sql.NullString
			width, height sql.NullInt64
			analysis      sql.NullString
			created       int64
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Day, &p.FileName, &p.ContentType, &p.StorageURL,
			&thumb, &width, &height, &analysis, &created); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		if thumb.Valid {
			p.ThumbURL = &thumb.String
		}
		if width.Valid {
			w := int(width.Int64)
			p.Width = &w
		}
		if height.Valid {
			h := int(height.Int64)
			p.Height = &h
		}
		if analysis.Valid {
			if p.Analysis, err = unmarshalAnalysis([]byte(analysis.String)); err != nil {
				return nil, err
			}
		}
		p.CreatedAt = time.UnixMicro(created).UTC()
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	return photos, nil
}

func marshalAnalysis(a *models.Analysis) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	return data, nil
}

func unmarshalAnalysis(data []byte) (*models.Analysis, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var a models.Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal analysis: %w", err)
	}
	return &a, nil
}
