package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rolliki/backend/internal/attachments"
	"github.com/rolliki/backend/internal/models"
	"github.com/rolliki/backend/internal/stages"
)

// MemoryStore keeps videos, stages and attachment metadata in process memory.
// A single mutex serialises writers, which gives every operation the same
// atomicity the PostgreSQL repositories get from row locks.
type MemoryStore struct {
	mu          sync.RWMutex
	seq         int64
	videos      map[string]models.Video
	stages      map[string]models.Stage
	videoStages map[string][]string
	attachments map[string]models.Attachment
}

// NewMemoryStore returns an empty in-memory store for tests and local development.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		videos:      make(map[string]models.Video),
		stages:      make(map[string]models.Stage),
		videoStages: make(map[string][]string),
		attachments: make(map[string]models.Attachment),
	}
}

// CreateVideo stores a new video.
func (m *MemoryStore) CreateVideo(_ context.Context, video models.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.videos[video.ID]; ok {
		return ErrConflict
	}
	m.videos[video.ID] = video
	return nil
}

// GetVideo returns a video by id.
func (m *MemoryStore) GetVideo(_ context.Context, id string) (models.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	video, ok := m.videos[id]
	if !ok {
		return models.Video{}, ErrNotFound
	}
	return video, nil
}

// ListVideosByProject returns the videos of a project, newest first.
func (m *MemoryStore) ListVideosByProject(_ context.Context, projectID string) ([]models.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	videos := []models.Video{}
	for _, v := range m.videos {
		if v.ProjectID == projectID {
			videos = append(videos, v)
		}
	}
	sort.Slice(videos, func(i, j int) bool {
		if videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
			return videos[i].ID < videos[j].ID
		}
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
	return videos, nil
}

// UpdateVideo replaces the editable fields of a video.
func (m *MemoryStore) UpdateVideo(_ context.Context, video models.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.videos[video.ID]
	if !ok {
		return ErrNotFound
	}
	current.Title = video.Title
	current.Description = video.Description
	current.Deadline = video.Deadline
	m.videos[video.ID] = current
	return nil
}

// DeleteVideo removes a video with its stages and attachment records.
func (m *MemoryStore) DeleteVideo(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.videos[id]; !ok {
		return ErrNotFound
	}
	for _, stageID := range m.videoStages[id] {
		m.dropStageLocked(stageID)
	}
	delete(m.videoStages, id)
	delete(m.videos, id)
	return nil
}

// CreateStage inserts a stage with its level derived from the dependency.
func (m *MemoryStore) CreateStage(_ context.Context, in models.NewStage) (models.Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.videos[in.VideoID]; !ok {
		return models.Stage{}, ErrNotFound
	}
	if _, ok := m.stages[in.ID]; ok {
		return models.Stage{}, ErrConflict
	}

	var dependency *models.Stage
	if in.DependsOnStageID != nil {
		dep, ok := m.stages[*in.DependsOnStageID]
		if !ok {
			return models.Stage{}, stages.ErrInvalidReference
		}
		if err := stages.ValidateDependency(in.VideoID, dep); err != nil {
			return models.Stage{}, err
		}
		dependency = &dep
	}

	m.seq++
	stage := models.Stage{
		ID:           in.ID,
		VideoID:      in.VideoID,
		Title:        in.Title,
		Description:  in.Description,
		RequiredRole: in.RequiredRole,
		Level:        stages.AssignLevel(dependency),
		CreatedAt:    in.CreatedAt,
		Seq:          m.seq,
	}
	if in.DependsOnStageID != nil {
		dep := *in.DependsOnStageID
		stage.DependsOnStageID = &dep
	}

	m.stages[stage.ID] = stage
	m.videoStages[stage.VideoID] = append(m.videoStages[stage.VideoID], stage.ID)
	return stage, nil
}

// GetStage returns a stage by id.
func (m *MemoryStore) GetStage(_ context.Context, id string) (models.Stage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stage, ok := m.stages[id]
	if !ok {
		return models.Stage{}, ErrNotFound
	}
	return stage, nil
}

// ListStages returns the stages of a video in creation order.
func (m *MemoryStore) ListStages(_ context.Context, videoID string) ([]models.Stage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.videos[videoID]; !ok {
		return nil, ErrNotFound
	}
	return m.listStagesLocked(videoID), nil
}

// DeleteStage removes a stage unless another stage depends on it.
func (m *MemoryStore) DeleteStage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stage, ok := m.stages[id]
	if !ok {
		return ErrNotFound
	}
	for _, otherID := range m.videoStages[stage.VideoID] {
		other := m.stages[otherID]
		if other.DependsOnStageID != nil && *other.DependsOnStageID == id {
			return stages.ErrHasDependents
		}
	}

	ids := m.videoStages[stage.VideoID]
	for i, stageID := range ids {
		if stageID == id {
			m.videoStages[stage.VideoID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	m.dropStageLocked(id)
	return nil
}

// CompleteStage marks a stage completed if it is still open and the previous
// level is done. The check and the write happen under the same lock.
func (m *MemoryStore) CompleteStage(_ context.Context, id string, at time.Time) (models.Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stage, ok := m.stages[id]
	if !ok {
		return models.Stage{}, ErrNotFound
	}
	if stage.Completed {
		return models.Stage{}, stages.ErrAlreadyCompleted
	}
	if !stages.IsAvailable(stage, m.listStagesLocked(stage.VideoID)) {
		return models.Stage{}, stages.ErrNotAvailable
	}

	completedAt := at.UTC()
	stage.Completed = true
	stage.CompletedAt = &completedAt
	m.stages[id] = stage
	return stage, nil
}

// CreateAttachment records uploaded file metadata.
func (m *MemoryStore) CreateAttachment(_ context.Context, attachment models.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stages[attachment.StageID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.attachments[attachment.ID]; ok {
		return ErrConflict
	}
	m.attachments[attachment.ID] = attachment
	return nil
}

// ListAttachments returns the attachments of a stage, oldest first.
func (m *MemoryStore) ListAttachments(_ context.Context, stageID string) ([]models.Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := []models.Attachment{}
	for _, a := range m.attachments {
		if a.StageID == stageID {
			list = append(list, a)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

// GetAttachment returns attachment metadata by id.
func (m *MemoryStore) GetAttachment(_ context.Context, id string) (models.Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.attachments[id]
	if !ok {
		return models.Attachment{}, ErrNotFound
	}
	return a, nil
}

// StorageKeysForStage lists object keys stored for a stage.
func (m *MemoryStore) StorageKeysForStage(_ context.Context, stageID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for _, a := range m.attachments {
		if a.StageID == stageID {
			keys = append(keys, a.StorageKey)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// StorageKeysForVideo lists object keys stored for every stage of a video.
func (m *MemoryStore) StorageKeysForVideo(_ context.Context, videoID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owned := make(map[string]struct{})
	for _, stageID := range m.videoStages[videoID] {
		owned[stageID] = struct{}{}
	}

	var keys []string
	for _, a := range m.attachments {
		if _, ok := owned[a.StageID]; ok {
			keys = append(keys, a.StorageKey)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) listStagesLocked(videoID string) []models.Stage {
	ids := m.videoStages[videoID]
	list := make([]models.Stage, 0, len(ids))
	for _, id := range ids {
		list = append(list, m.stages[id])
	}
	return list
}

func (m *MemoryStore) dropStageLocked(stageID string) {
	for id, a := range m.attachments {
		if a.StageID == stageID {
			delete(m.attachments, id)
		}
	}
	delete(m.stages, stageID)
}

var (
	_ stages.VideoStore = (*MemoryStore)(nil)
	_ stages.StageStore = (*MemoryStore)(nil)
	_ attachments.Store = (*MemoryStore)(nil)
)
