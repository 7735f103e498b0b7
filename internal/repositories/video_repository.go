package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rolliki/backend/internal/db"
	"github.com/rolliki/backend/internal/models"
	"github.com/rolliki/backend/internal/stages"
)

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// CreateVideo stores a new video record.
func (r *PostgresVideoRepository) CreateVideo(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, project_id, title, description, deadline, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, video.ID, video.ProjectID, video.Title, video.Description, nullTime(video.Deadline), video.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// GetVideo fetches a video by id.
func (r *PostgresVideoRepository) GetVideo(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, project_id, title, description, deadline, created_at
        FROM videos
        WHERE id = $1
    `, id)

	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}

	return video, nil
}

// ListVideosByProject returns the videos of a project, newest first.
func (r *PostgresVideoRepository) ListVideosByProject(ctx context.Context, projectID string) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, project_id, title, description, deadline, created_at
        FROM videos
        WHERE project_id = $1
        ORDER BY created_at DESC, id
    `, projectID)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

// UpdateVideo modifies the editable fields of a video.
func (r *PostgresVideoRepository) UpdateVideo(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET title = $2, description = $3, deadline = $4
        WHERE id = $1
    `, video.ID, video.Title, video.Description, nullTime(video.Deadline))
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteVideo removes a video; stages and attachment rows cascade.
func (r *PostgresVideoRepository) DeleteVideo(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var (
		video    models.Video
		deadline sql.NullTime
	)
	if err := row.Scan(&video.ID, &video.ProjectID, &video.Title, &video.Description, &deadline, &video.CreatedAt); err != nil {
		return models.Video{}, err
	}
	if deadline.Valid {
		d := deadline.Time.UTC()
		video.Deadline = &d
	}
	video.CreatedAt = video.CreatedAt.UTC()
	return video, nil
}

var _ stages.VideoStore = (*PostgresVideoRepository)(nil)
