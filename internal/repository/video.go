// Package repository wraps all persistence used by the API and worker. The
// worker never trusts an in-memory copy of a video: it reloads by id before
// mutating, and every status transition is a narrow single-purpose UPDATE so
// a crash mid-pipeline leaves the most recent real status visible.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/StreamVault/internal/model"
)

// ErrNotFound is returned when a video id has no row.
var ErrNotFound = errors.New("video not found")

// VideoRepository wraps the SQL used throughout the API and worker.
type VideoRepository struct {
	pool *pgxpool.Pool
}

// NewVideoRepository constructs a repository.
func NewVideoRepository(pool *pgxpool.Pool) *VideoRepository {
	return &VideoRepository{pool: pool}
}

// Create inserts a pending video before processing begins.
func (r *VideoRepository) Create(ctx context.Context, v *model.Video) error {
	now := time.Now().UTC()
	if v.Status == "" {
		v.Status = model.StatusPending
	}
	v.CreatedAt = now
	v.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO videos (id, title, description, category, object_key, thumbnail_path, status, hls_processed, hls_path, error_message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, v.ID, v.Title, v.Description, v.Category, v.ObjectKey, nullable(v.ThumbnailPath), v.Status, v.HLSProcessed, nullable(v.HLSPath), nullable(v.ErrorMessage), v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// Get returns a video by id.
func (r *VideoRepository) Get(ctx context.Context, id string) (*model.Video, error) {
	var (
		v         model.Video
		thumbnail sql.NullString
		hlsPath   sql.NullString
		errorMsg  sql.NullString
	)
	row := r.pool.QueryRow(ctx, `
		SELECT id, title, description, category, object_key, thumbnail_path, status, hls_processed, hls_path, error_message, created_at, updated_at
		FROM videos WHERE id=$1
	`, id)
	if err := row.Scan(&v.ID, &v.Title, &v.Description, &v.Category, &v.ObjectKey, &thumbnail, &v.Status, &v.HLSProcessed, &hlsPath, &errorMsg, &v.CreatedAt, &v.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select video: %w", err)
	}
	v.ThumbnailPath = thumbnail.String
	v.HLSPath = hlsPath.String
	v.ErrorMessage = errorMsg.String
	return &v, nil
}

// List returns videos ordered newest first.
func (r *VideoRepository) List(ctx context.Context) ([]*model.Video, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, description, category, object_key, thumbnail_path, status, hls_processed, hls_path, error_message, created_at, updated_at
		FROM videos ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("select videos: %w", err)
	}
	defer rows.Close()
	var out []*model.Video
	for rows.Next() {
		var (
			v         model.Video
			thumbnail sql.NullString
			hlsPath   sql.NullString
			errorMsg  sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.Title, &v.Description, &v.Category, &v.ObjectKey, &thumbnail, &v.Status, &v.HLSProcessed, &hlsPath, &errorMsg, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		v.ThumbnailPath = thumbnail.String
		v.HLSPath = hlsPath.String
		v.ErrorMessage = errorMsg.String
		out = append(out, &v)
	}
	return out, rows.Err()
}

// Delete removes the row. File cleanup is the pipeline's responsibility and
// happens before the record disappears.
func (r *VideoRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkProcessing sets the status to processing.
func (r *VideoRepository) MarkProcessing(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, model.StatusProcessing, "")
}

// MarkCompleted sets the terminal completed status.
func (r *VideoRepository) MarkCompleted(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, model.StatusCompleted, "")
}

// MarkFailed sets the terminal failed status and stores the diagnostic.
func (r *VideoRepository) MarkFailed(ctx context.Context, id, msg string) error {
	return r.setStatus(ctx, id, model.StatusFailed, msg)
}

// MarkPending resets the asset for a manual re-queue.
func (r *VideoRepository) MarkPending(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, model.StatusPending, "")
}

func (r *VideoRepository) setStatus(ctx context.Context, id string, status model.ProcessingStatus, errorMsg string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE videos SET status=$1, error_message=$2, updated_at=$3 WHERE id=$4
	`, status, nullable(errorMsg), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetThumbnail records the generated thumbnail path.
func (r *VideoRepository) SetThumbnail(ctx context.Context, id, path string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE videos SET thumbnail_path=$1, updated_at=$2 WHERE id=$3
	`, nullable(path), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update thumbnail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetHLS records the HLS output root and the processed flag.
func (r *VideoRepository) SetHLS(ctx context.Context, id, hlsPath string, processed bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE videos SET hls_path=$1, hls_processed=$2, updated_at=$3 WHERE id=$4
	`, nullable(hlsPath), processed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update hls: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
