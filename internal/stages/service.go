package stages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rolliki/backend/internal/logging"
	"github.com/rolliki/backend/internal/metrics"
	"github.com/rolliki/backend/internal/models"
)

// StageStore persists stages. Implementations must assign the level and check
// the dependency atomically with the insert, refuse to delete a stage that
// others depend on, and complete a stage with a single conditional write.
type StageStore interface {
	CreateStage(ctx context.Context, stage models.NewStage) (models.Stage, error)
	GetStage(ctx context.Context, id string) (models.Stage, error)
	ListStages(ctx context.Context, videoID string) ([]models.Stage, error)
	DeleteStage(ctx context.Context, id string) error
	CompleteStage(ctx context.Context, id string, at time.Time) (models.Stage, error)
}

// VideoStore persists videos. Deleting a video removes its stages.
type VideoStore interface {
	CreateVideo(ctx context.Context, video models.Video) error
	GetVideo(ctx context.Context, id string) (models.Video, error)
	ListVideosByProject(ctx context.Context, projectID string) ([]models.Video, error)
	UpdateVideo(ctx context.Context, video models.Video) error
	DeleteVideo(ctx context.Context, id string) error
}

// VideoOverview is a video with its derived progress fields.
type VideoOverview struct {
	models.Video
	Status               models.VideoStatus
	CompletionPercentage float64
	StageCount           int
}

// VideoInput holds the owner editable fields of a video.
type VideoInput struct {
	ProjectID   string
	Title       string
	Description string
	Deadline    *time.Time
}

// StageInput holds the caller supplied fields of a new stage.
type StageInput struct {
	VideoID          string
	Title            string
	Description      string
	RequiredRole     models.Role
	DependsOnStageID string
}

// Service coordinates the stage store with level, availability and
// completion rules.
type Service struct {
	videos VideoStore
	stages StageStore

	NowFunc func() time.Time
	NewID   func() string
}

// NewService constructs a Service over the provided stores.
func NewService(videos VideoStore, stages StageStore) *Service {
	if videos == nil || stages == nil {
		panic("stages: stores must not be nil")
	}
	return &Service{
		videos:  videos,
		stages:  stages,
		NowFunc: func() time.Time { return time.Now().UTC() },
		NewID:   uuid.NewString,
	}
}

// CreateVideo registers a new video for a project.
func (s *Service) CreateVideo(ctx context.Context, in VideoInput) (VideoOverview, error) {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.Title = strings.TrimSpace(in.Title)
	if in.ProjectID == "" || in.Title == "" {
		return VideoOverview{}, fmt.Errorf("%w: project id and title are required", ErrInvalidInput)
	}

	video := models.Video{
		ID:          s.NewID(),
		ProjectID:   in.ProjectID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Deadline:    in.Deadline,
		CreatedAt:   s.NowFunc(),
	}
	if err := s.videos.CreateVideo(ctx, video); err != nil {
		return VideoOverview{}, fmt.Errorf("create video: %w", err)
	}

	logging.FromContext(ctx).Info("video created", "videoId", video.ID, "projectId", video.ProjectID)
	return overview(video, nil), nil
}

// GetVideo returns a video with its progress derived from the current stages.
func (s *Service) GetVideo(ctx context.Context, id string) (VideoOverview, error) {
	video, err := s.videos.GetVideo(ctx, id)
	if err != nil {
		return VideoOverview{}, fmt.Errorf("get video %s: %w", id, err)
	}
	stages, err := s.stages.ListStages(ctx, id)
	if err != nil {
		return VideoOverview{}, fmt.Errorf("list stages for video %s: %w", id, err)
	}
	return overview(video, stages), nil
}

// ListVideos returns every video of a project, newest first.
func (s *Service) ListVideos(ctx context.Context, projectID string) ([]VideoOverview, error) {
	videos, err := s.videos.ListVideosByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list videos for project %s: %w", projectID, err)
	}

	out := make([]VideoOverview, len(videos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, video := range videos {
		g.Go(func() error {
			stages, err := s.stages.ListStages(gctx, video.ID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("list stages for video %s: %w", video.ID, err)
			}
			out[i] = overview(video, stages)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateVideo replaces the owner editable fields of a video.
func (s *Service) UpdateVideo(ctx context.Context, id string, in VideoInput) (VideoOverview, error) {
	video, err := s.videos.GetVideo(ctx, id)
	if err != nil {
		return VideoOverview{}, fmt.Errorf("get video %s: %w", id, err)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return VideoOverview{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	video.Title = title
	video.Description = strings.TrimSpace(in.Description)
	video.Deadline = in.Deadline

	if err := s.videos.UpdateVideo(ctx, video); err != nil {
		return VideoOverview{}, fmt.Errorf("update video %s: %w", id, err)
	}
	return s.GetVideo(ctx, id)
}

// DeleteVideo removes a video together with its stages.
func (s *Service) DeleteVideo(ctx context.Context, id string) error {
	if err := s.videos.DeleteVideo(ctx, id); err != nil {
		return fmt.Errorf("delete video %s: %w", id, err)
	}
	logging.FromContext(ctx).Info("video deleted", "videoId", id)
	return nil
}

// CreateStage adds a stage to a video. The store assigns its level from the
// dependency, which must already exist in the same video.
func (s *Service) CreateStage(ctx context.Context, in StageInput) (models.Stage, error) {
	ctx, span := logging.StartSpan(ctx, "stages.create")
	defer span.End()

	title := strings.TrimSpace(in.Title)
	if strings.TrimSpace(in.VideoID) == "" || title == "" {
		return models.Stage{}, fmt.Errorf("%w: video id and title are required", ErrInvalidInput)
	}
	if !in.RequiredRole.Valid() {
		return models.Stage{}, fmt.Errorf("%w: %w", ErrInvalidInput, models.ErrUnknownRole)
	}

	stage := models.NewStage{
		ID:           s.NewID(),
		VideoID:      strings.TrimSpace(in.VideoID),
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		RequiredRole: in.RequiredRole,
		CreatedAt:    s.NowFunc(),
	}
	if dep := strings.TrimSpace(in.DependsOnStageID); dep != "" {
		stage.DependsOnStageID = &dep
	}

	created, err := s.stages.CreateStage(ctx, stage)
	if err != nil {
		return models.Stage{}, fmt.Errorf("create stage: %w", err)
	}

	metrics.RecordStageCreated()
	logging.FromContext(ctx).Info("stage created", "stageId", created.ID, "videoId", created.VideoID, "level", created.Level)
	return created, nil
}

// GetStage returns a single stage.
func (s *Service) GetStage(ctx context.Context, id string) (models.Stage, error) {
	stage, err := s.stages.GetStage(ctx, id)
	if err != nil {
		return models.Stage{}, fmt.Errorf("get stage %s: %w", id, err)
	}
	return stage, nil
}

// DeleteStage removes a stage. Stages that other stages depend on are kept
// and ErrHasDependents is returned.
func (s *Service) DeleteStage(ctx context.Context, id string) error {
	if err := s.stages.DeleteStage(ctx, id); err != nil {
		return fmt.Errorf("delete stage %s: %w", id, err)
	}
	logging.FromContext(ctx).Info("stage deleted", "stageId", id)
	return nil
}

// CompleteStage marks a stage as done on behalf of an actor holding role.
// Owners may complete any stage. Exactly one of several concurrent callers
// succeeds; the others observe ErrAlreadyCompleted or ErrNotAvailable.
func (s *Service) CompleteStage(ctx context.Context, id string, role models.Role) (models.Stage, error) {
	ctx, span := logging.StartSpan(ctx, "stages.complete")
	defer span.End()

	stage, err := s.stages.GetStage(ctx, id)
	if err != nil {
		metrics.RecordCompletion(outcome(err))
		return models.Stage{}, fmt.Errorf("get stage %s: %w", id, err)
	}

	if role != models.RoleOwner && role != stage.RequiredRole {
		metrics.RecordCompletion(outcome(ErrForbidden))
		return models.Stage{}, fmt.Errorf("complete stage %s as %s: %w", id, role, ErrForbidden)
	}

	completed, err := s.stages.CompleteStage(ctx, id, s.NowFunc())
	metrics.RecordCompletion(outcome(err))
	if err != nil {
		return models.Stage{}, fmt.Errorf("complete stage %s: %w", id, err)
	}

	logging.FromContext(ctx).Info("stage completed", "stageId", id, "videoId", completed.VideoID, "role", string(role))
	return completed, nil
}

// ListStages returns the stages of a video in creation order.
func (s *Service) ListStages(ctx context.Context, videoID string) ([]models.Stage, error) {
	stages, err := s.stages.ListStages(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("list stages for video %s: %w", videoID, err)
	}
	return stages, nil
}

// LevelCompleted reports whether every stage on level of a video is done.
func (s *Service) LevelCompleted(ctx context.Context, videoID string, level int) (bool, error) {
	if level < 0 {
		return false, fmt.Errorf("%w: level must not be negative", ErrInvalidInput)
	}
	stages, err := s.ListStages(ctx, videoID)
	if err != nil {
		return false, err
	}
	return AllCompleted(stages, level), nil
}

// Board projects the stages of a video into level columns. It is computed
// from a single read on every call.
func (s *Service) Board(ctx context.Context, videoID string) (Board, error) {
	stages, err := s.ListStages(ctx, videoID)
	if err != nil {
		return Board{}, err
	}
	return BuildBoard(videoID, stages), nil
}

func overview(video models.Video, stages []models.Stage) VideoOverview {
	return VideoOverview{
		Video:                video,
		Status:               Status(stages),
		CompletionPercentage: CompletionPercentage(stages),
		StageCount:           len(stages),
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrAlreadyCompleted):
		return "already_completed"
	case errors.Is(err, ErrNotAvailable):
		return "not_available"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
