package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rolliki/backend/internal/attachments"
	"github.com/rolliki/backend/internal/db"
	"github.com/rolliki/backend/internal/models"
)

// PostgresAttachmentRepository persists stage deliverable metadata.
type PostgresAttachmentRepository struct {
	pool db.Pool
}

// NewPostgresAttachmentRepository constructs an attachment repository backed by PostgreSQL.
func NewPostgresAttachmentRepository(pool db.Pool) *PostgresAttachmentRepository {
	return &PostgresAttachmentRepository{pool: pool}
}

// CreateAttachment stores metadata for an uploaded file.
func (r *PostgresAttachmentRepository) CreateAttachment(ctx context.Context, a models.Attachment) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO stage_attachments (id, stage_id, name, content_type, size, storage_key, location, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, a.ID, a.StageID, a.Name, a.ContentType, a.Size, a.StorageKey, a.Location, a.CreatedAt)
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return ErrConflict
		case pgForeignKeyViolation:
			return ErrNotFound
		}
		return fmt.Errorf("insert attachment: %w", err)
	}

	return nil
}

// ListAttachments returns the attachments of a stage, oldest first.
func (r *PostgresAttachmentRepository) ListAttachments(ctx context.Context, stageID string) ([]models.Attachment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, stage_id, name, content_type, size, storage_key, location, created_at
        FROM stage_attachments
        WHERE stage_id = $1
        ORDER BY created_at, id
    `, stageID)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	list := []models.Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		list = append(list, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}

	return list, nil
}

// GetAttachment fetches attachment metadata by id.
func (r *PostgresAttachmentRepository) GetAttachment(ctx context.Context, id string) (models.Attachment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	a, err := scanAttachment(conn.QueryRow(ctx, `
        SELECT id, stage_id, name, content_type, size, storage_key, location, created_at
        FROM stage_attachments
        WHERE id = $1
    `, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Attachment{}, ErrNotFound
		}
		return models.Attachment{}, fmt.Errorf("select attachment: %w", err)
	}

	return a, nil
}

// StorageKeysForStage lists object keys stored for a stage.
func (r *PostgresAttachmentRepository) StorageKeysForStage(ctx context.Context, stageID string) ([]string, error) {
	return r.keys(ctx, `SELECT storage_key FROM stage_attachments WHERE stage_id = $1 ORDER BY storage_key`, stageID)
}

// StorageKeysForVideo lists object keys stored for every stage of a video.
func (r *PostgresAttachmentRepository) StorageKeysForVideo(ctx context.Context, videoID string) ([]string, error) {
	return r.keys(ctx, `
        SELECT a.storage_key
        FROM stage_attachments a
        JOIN stages s ON s.id = a.stage_id
        WHERE s.video_id = $1
        ORDER BY a.storage_key
    `, videoID)
}

func (r *PostgresAttachmentRepository) keys(ctx context.Context, query string, arg string) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query storage keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect storage keys: %w", err)
	}
	return keys, nil
}

func scanAttachment(row pgx.Row) (models.Attachment, error) {
	var a models.Attachment
	if err := row.Scan(&a.ID, &a.StageID, &a.Name, &a.ContentType, &a.Size, &a.StorageKey, &a.Location, &a.CreatedAt); err != nil {
		return models.Attachment{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

var _ attachments.Store = (*PostgresAttachmentRepository)(nil)
