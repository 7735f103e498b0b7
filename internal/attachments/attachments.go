// Package attachments stores the deliverable files uploaded against stages.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rolliki/backend/internal/logging"
	"github.com/rolliki/backend/internal/metrics"
	"github.com/rolliki/backend/internal/models"
)

var (
	// ErrStorageUnavailable indicates no object storage is configured.
	ErrStorageUnavailable = errors.New("attachment storage unavailable")
	// ErrNoFiles indicates an upload without any file parts.
	ErrNoFiles = errors.New("no files provided")
)

// ObjectStorage persists file contents under a key.
type ObjectStorage interface {
	Save(ctx context.Context, key string, r io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Store persists attachment metadata.
type Store interface {
	CreateAttachment(ctx context.Context, attachment models.Attachment) error
	ListAttachments(ctx context.Context, stageID string) ([]models.Attachment, error)
	GetAttachment(ctx context.Context, id string) (models.Attachment, error)
	StorageKeysForStage(ctx context.Context, stageID string) ([]string, error)
	StorageKeysForVideo(ctx context.Context, videoID string) ([]string, error)
}

// StageLookup resolves the stage an upload targets.
type StageLookup interface {
	GetStage(ctx context.Context, id string) (models.Stage, error)
}

// Upload is one file part of a multipart request.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Service writes uploads to object storage and records their metadata.
type Service struct {
	store   Store
	objects ObjectStorage
	stages  StageLookup
	janitor *Janitor

	NowFunc func() time.Time
	NewID   func() string
}

// NewService wires an attachment service. janitor may be nil, in which case
// object removal happens inline.
func NewService(store Store, objects ObjectStorage, stages StageLookup, janitor *Janitor) *Service {
	return &Service{
		store:   store,
		objects: objects,
		stages:  stages,
		janitor: janitor,
		NowFunc: func() time.Time { return time.Now().UTC() },
		NewID:   uuid.NewString,
	}
}

// Save stores every upload for stageID. Files written before a failure are
// kept and returned along with the error.
func (s *Service) Save(ctx context.Context, stageID string, uploads []Upload) ([]models.Attachment, error) {
	if s.objects == nil || s.store == nil {
		return nil, ErrStorageUnavailable
	}
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}
	if _, err := s.stages.GetStage(ctx, stageID); err != nil {
		return nil, fmt.Errorf("get stage %s: %w", stageID, err)
	}

	logger := logging.FromContext(ctx)
	saved := make([]models.Attachment, 0, len(uploads))
	for _, up := range uploads {
		id := s.NewID()
		name := sanitizeName(up.Name)
		key := path.Join("stages", stageID, id, name)

		counter := &countingReader{r: up.Body}
		location, err := s.objects.Save(ctx, key, counter)
		if err != nil {
			return saved, fmt.Errorf("store %s: %w", name, err)
		}
		metrics.RecordAttachmentBytes(counter.n)

		contentType := up.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		attachment := models.Attachment{
			ID:          id,
			StageID:     stageID,
			Name:        name,
			ContentType: contentType,
			Size:        counter.n,
			StorageKey:  key,
			Location:    location,
			CreatedAt:   s.NowFunc(),
		}
		if err := s.store.CreateAttachment(ctx, attachment); err != nil {
			s.Purge(ctx, []string{key})
			return saved, fmt.Errorf("record %s: %w", name, err)
		}

		logger.Info("attachment stored", "stageId", stageID, "attachmentId", id, "size", counter.n)
		saved = append(saved, attachment)
	}

	return saved, nil
}

// List returns the attachments of a stage.
func (s *Service) List(ctx context.Context, stageID string) ([]models.Attachment, error) {
	if _, err := s.stages.GetStage(ctx, stageID); err != nil {
		return nil, fmt.Errorf("get stage %s: %w", stageID, err)
	}
	list, err := s.store.ListAttachments(ctx, stageID)
	if err != nil {
		return nil, fmt.Errorf("list attachments for stage %s: %w", stageID, err)
	}
	return list, nil
}

// Open returns attachment metadata and a reader over its contents. The
// caller closes the reader.
func (s *Service) Open(ctx context.Context, id string) (models.Attachment, io.ReadCloser, error) {
	if s.objects == nil {
		return models.Attachment{}, nil, ErrStorageUnavailable
	}
	attachment, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return models.Attachment{}, nil, fmt.Errorf("get attachment %s: %w", id, err)
	}
	body, err := s.objects.Open(ctx, attachment.StorageKey)
	if err != nil {
		return models.Attachment{}, nil, fmt.Errorf("open attachment %s: %w", id, err)
	}
	return attachment, body, nil
}

// KeysForStage lists stored object keys of a stage.
func (s *Service) KeysForStage(ctx context.Context, stageID string) ([]string, error) {
	return s.store.StorageKeysForStage(ctx, stageID)
}

// KeysForVideo lists stored object keys of every stage of a video.
func (s *Service) KeysForVideo(ctx context.Context, videoID string) ([]string, error) {
	return s.store.StorageKeysForVideo(ctx, videoID)
}

// Purge removes objects whose metadata rows are gone. Failures are logged
// and never returned: deleting records must not depend on object storage.
func (s *Service) Purge(ctx context.Context, keys []string) {
	if len(keys) == 0 || s.objects == nil {
		return
	}
	if s.janitor != nil {
		if err := s.janitor.Enqueue(ctx, keys); err == nil {
			return
		}
	}
	removeObjects(context.WithoutCancel(ctx), s.objects, keys, logging.FromContext(ctx))
}

func removeObjects(ctx context.Context, objects ObjectStorage, keys []string, logger *slog.Logger) {
	for _, key := range keys {
		if err := objects.Delete(ctx, key); err != nil {
			logger.Warn("remove attachment object", "key", key, "error", err)
		}
	}
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "file"
	}
	return name
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
