package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rolliki/backend/internal/models"
	"github.com/rolliki/backend/internal/stages"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		// Memory store tests still run; postgres tests skip.
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(m.Run())
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresVideoRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresVideoRepository(testPool)

	deadline := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	older := createTestVideo(t, "project-1", time.Now().UTC().Add(-time.Hour))
	newer := models.Video{
		ID:          uuid.NewString(),
		ProjectID:   "project-1",
		Title:       "Teaser",
		Description: "short cut",
		Deadline:    &deadline,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := repo.CreateVideo(ctx, newer); err != nil {
		t.Fatalf("create video: %v", err)
	}
	if err := repo.CreateVideo(ctx, newer); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate id, got %v", err)
	}

	fetched, err := repo.GetVideo(ctx, newer.ID)
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if fetched.Title != newer.Title || fetched.Deadline == nil || !fetched.Deadline.Equal(deadline) {
		t.Fatalf("unexpected video fetched: %+v", fetched)
	}

	list, err := repo.ListVideosByProject(ctx, "project-1")
	if err != nil {
		t.Fatalf("list videos: %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}

	fetched.Title = "Teaser v2"
	fetched.Deadline = nil
	if err := repo.UpdateVideo(ctx, fetched); err != nil {
		t.Fatalf("update video: %v", err)
	}
	fetched, err = repo.GetVideo(ctx, newer.ID)
	if err != nil {
		t.Fatalf("get updated video: %v", err)
	}
	if fetched.Title != "Teaser v2" || fetched.Deadline != nil {
		t.Fatalf("expected updated fields to persist, got %+v", fetched)
	}

	if err := repo.DeleteVideo(ctx, newer.ID); err != nil {
		t.Fatalf("delete video: %v", err)
	}
	if err := repo.DeleteVideo(ctx, newer.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
	if _, err := repo.GetVideo(ctx, newer.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPostgresStageRepository_LevelsAndCompletion(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresStageRepository(testPool)
	video := createTestVideo(t, "project-1", time.Now().UTC())
	other := createTestVideo(t, "project-1", time.Now().UTC())

	script := createTestStage(t, repo, video.ID, "Script", models.RoleEditor, nil)
	storyboard := createTestStage(t, repo, video.ID, "Storyboard", models.RoleDesigner, nil)
	shoot := createTestStage(t, repo, video.ID, "Shoot", models.RoleOperator, &script.ID)

	if script.Level != 0 || storyboard.Level != 0 || shoot.Level != 1 {
		t.Fatalf("unexpected levels %d %d %d", script.Level, storyboard.Level, shoot.Level)
	}

	missing := "does-not-exist"
	if _, err := repo.CreateStage(ctx, newTestStage(video.ID, "Edit", models.RoleEditor, &missing)); !errors.Is(err, stages.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference for unknown dependency, got %v", err)
	}
	if _, err := repo.CreateStage(ctx, newTestStage(other.ID, "Edit", models.RoleEditor, &script.ID)); !errors.Is(err, stages.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference for cross-video dependency, got %v", err)
	}
	if _, err := repo.CreateStage(ctx, newTestStage("missing-video", "Edit", models.RoleEditor, nil)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown video, got %v", err)
	}

	list, err := repo.ListStages(ctx, video.ID)
	if err != nil {
		t.Fatalf("list stages: %v", err)
	}
	if len(list) != 3 || list[0].ID != script.ID || list[1].ID != storyboard.ID || list[2].ID != shoot.ID {
		t.Fatalf("expected creation order, got %+v", list)
	}

	now := time.Now().UTC()
	if _, err := repo.CompleteStage(ctx, shoot.ID, now); !errors.Is(err, stages.ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable, got %v", err)
	}
	if _, err := repo.CompleteStage(ctx, script.ID, now); err != nil {
		t.Fatalf("complete script: %v", err)
	}
	if _, err := repo.CompleteStage(ctx, shoot.ID, now); !errors.Is(err, stages.ErrNotAvailable) {
		t.Fatalf("expected level gating while storyboard is open, got %v", err)
	}
	if _, err := repo.CompleteStage(ctx, storyboard.ID, now); err != nil {
		t.Fatalf("complete storyboard: %v", err)
	}
	completed, err := repo.CompleteStage(ctx, shoot.ID, now)
	if err != nil {
		t.Fatalf("complete shoot: %v", err)
	}
	if !completed.Completed || completed.CompletedAt == nil {
		t.Fatalf("expected completion to be recorded, got %+v", completed)
	}
	if _, err := repo.CompleteStage(ctx, shoot.ID, now); !errors.Is(err, stages.ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	if _, err := repo.CompleteStage(ctx, "missing", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresStageRepository_ConcurrentCompletion(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresStageRepository(testPool)
	video := createTestVideo(t, "project-1", time.Now().UTC())
	stage := createTestStage(t, repo, video.ID, "Script", models.RoleEditor, nil)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CompleteStage(ctx, stage.ID, time.Now().UTC())
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, stages.ErrAlreadyCompleted) {
				t.Errorf("unexpected completion error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful completion, got %d", successes)
	}
}

func TestPostgresStageRepository_DeletePolicy(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresStageRepository(testPool)
	video := createTestVideo(t, "project-1", time.Now().UTC())
	script := createTestStage(t, repo, video.ID, "Script", models.RoleEditor, nil)
	shoot := createTestStage(t, repo, video.ID, "Shoot", models.RoleOperator, &script.ID)

	if err := repo.DeleteStage(ctx, script.ID); !errors.Is(err, stages.ErrHasDependents) {
		t.Fatalf("expected ErrHasDependents, got %v", err)
	}
	if err := repo.DeleteStage(ctx, shoot.ID); err != nil {
		t.Fatalf("delete shoot: %v", err)
	}
	if err := repo.DeleteStage(ctx, script.ID); err != nil {
		t.Fatalf("delete script after dependent removed: %v", err)
	}
	if err := repo.DeleteStage(ctx, script.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresAttachmentRepository_Keys(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	stageRepo := NewPostgresStageRepository(testPool)
	repo := NewPostgresAttachmentRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)

	video := createTestVideo(t, "project-1", time.Now().UTC())
	stage := createTestStage(t, stageRepo, video.ID, "Edit", models.RoleEditor, nil)

	attachment := models.Attachment{
		ID:          uuid.NewString(),
		StageID:     stage.ID,
		Name:        "cut.mp4",
		ContentType: "video/mp4",
		Size:        42,
		StorageKey:  "stages/" + stage.ID + "/a/cut.mp4",
		Location:    "stages/" + stage.ID + "/a/cut.mp4",
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := repo.CreateAttachment(ctx, attachment); err != nil {
		t.Fatalf("create attachment: %v", err)
	}
	orphan := attachment
	orphan.ID = uuid.NewString()
	orphan.StageID = "missing"
	if err := repo.CreateAttachment(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown stage, got %v", err)
	}

	list, err := repo.ListAttachments(ctx, stage.ID)
	if err != nil {
		t.Fatalf("list attachments: %v", err)
	}
	if len(list) != 1 || list[0].Size != 42 || !timesClose(list[0].CreatedAt, attachment.CreatedAt, time.Millisecond) {
		t.Fatalf("unexpected attachments %+v", list)
	}

	keys, err := repo.StorageKeysForVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("keys for video: %v", err)
	}
	if len(keys) != 1 || keys[0] != attachment.StorageKey {
		t.Fatalf("unexpected keys %v", keys)
	}

	if err := videos.DeleteVideo(ctx, video.ID); err != nil {
		t.Fatalf("delete video: %v", err)
	}
	if _, err := repo.GetAttachment(ctx, attachment.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected attachment rows to cascade, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip("cockroach test server unavailable")
	}
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE stage_attachments, stages, videos CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestVideo(t *testing.T, projectID string, createdAt time.Time) models.Video {
	t.Helper()
	video := models.Video{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Title:     "Video " + projectID,
		CreatedAt: createdAt.Truncate(time.Millisecond),
	}
	if err := NewPostgresVideoRepository(testPool).CreateVideo(context.Background(), video); err != nil {
		t.Fatalf("create test video: %v", err)
	}
	return video
}

func newTestStage(videoID, title string, role models.Role, dependsOn *string) models.NewStage {
	return models.NewStage{
		ID:               uuid.NewString(),
		VideoID:          videoID,
		Title:            title,
		RequiredRole:     role,
		DependsOnStageID: dependsOn,
		CreatedAt:        time.Now().UTC(),
	}
}

func createTestStage(t *testing.T, repo *PostgresStageRepository, videoID, title string, role models.Role, dependsOn *string) models.Stage {
	t.Helper()
	stage, err := repo.CreateStage(context.Background(), newTestStage(videoID, title, role, dependsOn))
	if err != nil {
		t.Fatalf("create test stage %s: %v", title, err)
	}
	return stage
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
