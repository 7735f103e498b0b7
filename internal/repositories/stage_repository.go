package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rolliki/backend/internal/db"
	"github.com/rolliki/backend/internal/models"
	"github.com/rolliki/backend/internal/stages"
)

const stageColumns = `id, video_id, seq, title, description, required_role, depends_on_stage_id, level, completed, completed_at, created_at`

// PostgresStageRepository provides PostgreSQL-backed persistence for stages.
type PostgresStageRepository struct {
	pool db.Pool
}

// NewPostgresStageRepository constructs a stage repository backed by PostgreSQL.
func NewPostgresStageRepository(pool db.Pool) *PostgresStageRepository {
	return &PostgresStageRepository{pool: pool}
}

// CreateStage inserts a stage and stamps its level. The dependency row is
// locked for the rest of the transaction so it cannot be deleted between the
// level lookup and the insert.
func (r *PostgresStageRepository) CreateStage(ctx context.Context, in models.NewStage) (models.Stage, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Stage{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return models.Stage{}, fmt.Errorf("begin stage transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var videoExists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`, in.VideoID).Scan(&videoExists); err != nil {
		return models.Stage{}, fmt.Errorf("check video: %w", err)
	}
	if !videoExists {
		return models.Stage{}, ErrNotFound
	}

	var dependency *models.Stage
	if in.DependsOnStageID != nil {
		var dep models.Stage
		err := tx.QueryRow(ctx, `
            SELECT id, video_id, level
            FROM stages
            WHERE id = $1
            FOR UPDATE
        `, *in.DependsOnStageID).Scan(&dep.ID, &dep.VideoID, &dep.Level)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.Stage{}, stages.ErrInvalidReference
			}
			return models.Stage{}, fmt.Errorf("lock dependency: %w", err)
		}
		if err := stages.ValidateDependency(in.VideoID, dep); err != nil {
			return models.Stage{}, err
		}
		dependency = &dep
	}

	row := tx.QueryRow(ctx, `
        INSERT INTO stages (id, video_id, title, description, required_role, depends_on_stage_id, level, completed, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)
        RETURNING `+stageColumns,
		in.ID, in.VideoID, in.Title, in.Description, string(in.RequiredRole), in.DependsOnStageID, stages.AssignLevel(dependency), in.CreatedAt)

	stage, err := scanStage(row)
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return models.Stage{}, ErrConflict
		case pgForeignKeyViolation:
			return models.Stage{}, stages.ErrInvalidReference
		}
		return models.Stage{}, fmt.Errorf("insert stage: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Stage{}, fmt.Errorf("commit stage: %w", err)
	}

	return stage, nil
}

// GetStage fetches a stage by id.
func (r *PostgresStageRepository) GetStage(ctx context.Context, id string) (models.Stage, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Stage{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	stage, err := scanStage(conn.QueryRow(ctx, `SELECT `+stageColumns+` FROM stages WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Stage{}, ErrNotFound
		}
		return models.Stage{}, fmt.Errorf("select stage: %w", err)
	}

	return stage, nil
}

// ListStages returns the stages of a video in creation order.
func (r *PostgresStageRepository) ListStages(ctx context.Context, videoID string) ([]models.Stage, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var videoExists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`, videoID).Scan(&videoExists); err != nil {
		return nil, fmt.Errorf("check video: %w", err)
	}
	if !videoExists {
		return nil, ErrNotFound
	}

	rows, err := conn.Query(ctx, `
        SELECT `+stageColumns+`
        FROM stages
        WHERE video_id = $1
        ORDER BY seq
    `, videoID)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	list := []models.Stage{}
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		list = append(list, stage)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stages: %w", err)
	}

	return list, nil
}

// DeleteStage removes a stage unless another stage depends on it. The stage
// row is locked first so a concurrent CreateStage naming it as dependency
// either finishes before the dependent check or fails afterwards.
func (r *PostgresStageRepository) DeleteStage(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	if err := tx.QueryRow(ctx, `SELECT id FROM stages WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock stage: %w", err)
	}

	var hasDependents bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stages WHERE depends_on_stage_id = $1)`, id).Scan(&hasDependents); err != nil {
		return fmt.Errorf("check dependents: %w", err)
	}
	if hasDependents {
		return stages.ErrHasDependents
	}

	if _, err := tx.Exec(ctx, `DELETE FROM stages WHERE id = $1`, id); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return stages.ErrHasDependents
		}
		return fmt.Errorf("delete stage: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	return nil
}

// CompleteStage flips completed to true with one conditional update that
// also checks the previous level. When nothing is updated the stage is read
// back to tell the caller why.
func (r *PostgresStageRepository) CompleteStage(ctx context.Context, id string, at time.Time) (models.Stage, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Stage{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE stages AS s
        SET completed = TRUE, completed_at = $2
        WHERE s.id = $1
          AND NOT s.completed
          AND (
              s.level = 0
              OR NOT EXISTS (
                  SELECT 1
                  FROM stages p
                  WHERE p.video_id = s.video_id
                    AND p.level = s.level - 1
                    AND NOT p.completed
              )
          )
        RETURNING `+stageColumns, id, at.UTC())

	stage, err := scanStage(row)
	if err == nil {
		return stage, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Stage{}, fmt.Errorf("complete stage: %w", err)
	}

	current, err := scanStage(conn.QueryRow(ctx, `SELECT `+stageColumns+` FROM stages WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Stage{}, ErrNotFound
		}
		return models.Stage{}, fmt.Errorf("select stage after failed completion: %w", err)
	}
	if current.Completed {
		return models.Stage{}, stages.ErrAlreadyCompleted
	}
	return models.Stage{}, stages.ErrNotAvailable
}

func scanStage(row pgx.Row) (models.Stage, error) {
	var (
		stage       models.Stage
		role        string
		dependsOn   sql.NullString
		completedAt sql.NullTime
	)
	if err := row.Scan(&stage.ID, &stage.VideoID, &stage.Seq, &stage.Title, &stage.Description, &role, &dependsOn, &stage.Level, &stage.Completed, &completedAt, &stage.CreatedAt); err != nil {
		return models.Stage{}, err
	}
	stage.RequiredRole = models.Role(role)
	if dependsOn.Valid {
		dep := dependsOn.String
		stage.DependsOnStageID = &dep
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		stage.CompletedAt = &t
	}
	stage.CreatedAt = stage.CreatedAt.UTC()
	return stage, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Valid: true, Time: t.UTC()}
}

var _ stages.StageStore = (*PostgresStageRepository)(nil)
