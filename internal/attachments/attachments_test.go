package attachments_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolliki/backend/internal/attachments"
	"github.com/rolliki/backend/internal/models"
	"github.com/rolliki/backend/internal/repositories"
)

type memoryObjects struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
	saveErr error
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{data: make(map[string][]byte)}
}

func (m *memoryObjects) Save(_ context.Context, key string, r io.Reader) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = body
	return "mem://" + key, nil
}

func (m *memoryObjects) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.data[key]
	if !ok {
		return nil, errors.New("missing object")
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (m *memoryObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memoryObjects) deletedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

func seedStage(t *testing.T, store *repositories.MemoryStore) models.Stage {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateVideo(ctx, models.Video{ID: "v1", ProjectID: "p1", Title: "Launch", CreatedAt: now}))
	stage, err := store.CreateStage(ctx, models.NewStage{ID: "s1", VideoID: "v1", Title: "Edit", RequiredRole: models.RoleEditor, CreatedAt: now})
	require.NoError(t, err)
	return stage
}

func TestServiceSaveListOpen(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	stage := seedStage(t, store)
	objects := newMemoryObjects()

	svc := attachments.NewService(store, objects, store, nil)
	ids := []string{"a1", "a2"}
	svc.NewID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	saved, err := svc.Save(ctx, stage.ID, []attachments.Upload{
		{Name: "../../cut.mp4", ContentType: "video/mp4", Body: strings.NewReader("frames")},
		{Name: "notes.txt", Body: strings.NewReader("hi")},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	assert.Equal(t, "cut.mp4", saved[0].Name)
	assert.Equal(t, "stages/s1/a1/cut.mp4", saved[0].StorageKey)
	assert.Equal(t, "mem://stages/s1/a1/cut.mp4", saved[0].Location)
	assert.Equal(t, int64(6), saved[0].Size)
	assert.Equal(t, "application/octet-stream", saved[1].ContentType)

	list, err := svc.List(ctx, stage.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	attachment, body, err := svc.Open(ctx, "a1")
	require.NoError(t, err)
	defer body.Close()
	content, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "frames", string(content))
	assert.Equal(t, "video/mp4", attachment.ContentType)

	keys, err := svc.KeysForVideo(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"stages/s1/a1/cut.mp4", "stages/s1/a2/notes.txt"}, keys)
}

func TestServiceSaveErrors(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	stage := seedStage(t, store)

	svc := attachments.NewService(store, nil, store, nil)
	_, err := svc.Save(ctx, stage.ID, []attachments.Upload{{Name: "a", Body: strings.NewReader("x")}})
	assert.ErrorIs(t, err, attachments.ErrStorageUnavailable)

	svc = attachments.NewService(store, newMemoryObjects(), store, nil)
	_, err = svc.Save(ctx, stage.ID, nil)
	assert.ErrorIs(t, err, attachments.ErrNoFiles)

	_, err = svc.Save(ctx, "missing", []attachments.Upload{{Name: "a", Body: strings.NewReader("x")}})
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	failing := newMemoryObjects()
	failing.saveErr = errors.New("bucket gone")
	svc = attachments.NewService(store, failing, store, nil)
	saved, err := svc.Save(ctx, stage.ID, []attachments.Upload{{Name: "a", Body: strings.NewReader("x")}})
	require.Error(t, err)
	assert.Empty(t, saved)
}

func TestServicePurgeInline(t *testing.T) {
	objects := newMemoryObjects()
	svc := attachments.NewService(repositories.NewMemoryStore(), objects, nil, nil)

	svc.Purge(context.Background(), []string{"k1", "k2"})

	assert.Equal(t, []string{"k1", "k2"}, objects.deletedKeys())
}

func TestJanitorDrainsOnShutdown(t *testing.T) {
	objects := newMemoryObjects()
	janitor := attachments.NewJanitor(objects, attachments.JanitorConfig{Workers: 2, QueueSize: 4}, nil)

	require.NoError(t, janitor.Enqueue(context.Background(), []string{"a", "b"}))
	require.NoError(t, janitor.Enqueue(context.Background(), []string{"c"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, janitor.Shutdown(ctx))

	assert.ElementsMatch(t, []string{"a", "b", "c"}, objects.deletedKeys())
	assert.Error(t, janitor.Enqueue(context.Background(), []string{"d"}))
	assert.NoError(t, janitor.Shutdown(ctx), "second shutdown is a no-op")
}

func TestServicePurgeFallsBackWhenJanitorClosed(t *testing.T) {
	objects := newMemoryObjects()
	janitor := attachments.NewJanitor(objects, attachments.JanitorConfig{}, nil)
	require.NoError(t, janitor.Shutdown(context.Background()))

	svc := attachments.NewService(repositories.NewMemoryStore(), objects, nil, janitor)
	svc.Purge(context.Background(), []string{"late"})

	assert.Equal(t, []string{"late"}, objects.deletedKeys())
}
