package handlers

import (
	"context"
	"io"

	"github.com/rolliki/backend/internal/attachments"
	"github.com/rolliki/backend/internal/models"
	"github.com/rolliki/backend/internal/stages"
)

// StageService captures the stage workflow operations used by the stage handlers.
type StageService interface {
	CreateStage(ctx context.Context, in stages.StageInput) (models.Stage, error)
	DeleteStage(ctx context.Context, id string) error
	CompleteStage(ctx context.Context, id string, role models.Role) (models.Stage, error)
	ListStages(ctx context.Context, videoID string) ([]models.Stage, error)
	LevelCompleted(ctx context.Context, videoID string, level int) (bool, error)
	Board(ctx context.Context, videoID string) (stages.Board, error)
	CopyStages(ctx context.Context, targetVideoID, sourceVideoID string) ([]models.Stage, error)
}

// VideoService captures the video registry operations.
type VideoService interface {
	CreateVideo(ctx context.Context, in stages.VideoInput) (stages.VideoOverview, error)
	GetVideo(ctx context.Context, id string) (stages.VideoOverview, error)
	ListVideos(ctx context.Context, projectID string) ([]stages.VideoOverview, error)
	UpdateVideo(ctx context.Context, id string, in stages.VideoInput) (stages.VideoOverview, error)
	DeleteVideo(ctx context.Context, id string) error
}

// FileService stores and serves stage deliverables.
type FileService interface {
	Save(ctx context.Context, stageID string, uploads []attachments.Upload) ([]models.Attachment, error)
	List(ctx context.Context, stageID string) ([]models.Attachment, error)
	Open(ctx context.Context, id string) (models.Attachment, io.ReadCloser, error)
	KeysForStage(ctx context.Context, stageID string) ([]string, error)
	KeysForVideo(ctx context.Context, videoID string) ([]string, error)
	Purge(ctx context.Context, keys []string)
}
