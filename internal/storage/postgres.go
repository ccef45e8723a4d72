package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/woundphoto/internal/config"
	"github.com/your-org/woundphoto/internal/models"
)

// pgxConn is the subset of *pgxpool.Pool the store uses.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type PostgresStore struct {
	pool pgxConn
}

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreatePhoto(ctx context.Context, p *models.Photo) error {
	analysis, err := marshalAnalysis(p.Analysis)
	if err != nil {
		return err
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO photos (user_id, day, file_name, content_type, storage_url, thumb_url, width, height, analysis, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, clock_timestamp()) RETURNING id, created_at`,
		p.UserID, p.Day, p.FileName, p.ContentType, p.StorageURL, p.ThumbURL, p.Width, p.Height, analysis,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPhotosForDay(ctx context.Context, userID string, day int) ([]models.Photo, error) {
	return s.query(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE user_id = $1 AND day = $2 ORDER BY created_at DESC, id DESC`,
		userID, day)
}

func (s *PostgresStore) ListPhotosForUser(ctx context.Context, userID string, fromDay, toDay *int) ([]models.Photo, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + photoColumns + ` FROM photos WHERE user_id = $1`)
	args := []any{userID}
	if fromDay != nil {
		args = append(args, *fromDay)
		fmt.Fprintf(&b, ` AND day >= $%d`, len(args))
	}
	if toDay != nil {
		args = append(args, *toDay)
		fmt.Fprintf(&b, ` AND day <= $%d`, len(args))
	}
	b.WriteString(` ORDER BY day ASC, created_at ASC, id ASC`)
	return s.query(ctx, b.String(), args...)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]models.Photo, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	photos := []models.Photo{}
	for rows.Next() {
		var (
			p             models.Photo
			thumb         pgtype.Text
			width, height pgtype.Int4
			analysis      []byte
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Day, &p.FileName, &p.ContentType, &p.StorageURL,
			&thumb, &width, &height, &analysis, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		if thumb.Valid {
			p.ThumbURL = &thumb.String
		}
		if width.Valid {
			w := int(width.Int32)
			p.Width = &w
		}
		if height.Valid {
			h := int(height.Int32)
			p.Height = &h
		}
		if p.Analysis, err = unmarshalAnalysis(analysis); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	return photos, nil
}
