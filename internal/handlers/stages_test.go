package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rolliki/backend/internal/models"
	"github.com/rolliki/backend/internal/stages"
)

type stageServiceStub struct {
	created      stages.StageInput
	createErr    error
	deletedID    string
	deleteErr    error
	completedID  string
	completeRole models.Role
	completeErr  error
	list         []models.Stage
	listErr      error
	level        int
	levelDone    bool
	board        stages.Board
	copyTarget   string
	copySource   string
	copied       []models.Stage
	copyErr      error
}

func (s *stageServiceStub) CreateStage(_ context.Context, in stages.StageInput) (models.Stage, error) {
	s.created = in
	if s.createErr != nil {
		return models.Stage{}, s.createErr
	}
	return models.Stage{ID: "stage-1", VideoID: in.VideoID, Title: in.Title, RequiredRole: in.RequiredRole, CreatedAt: time.Unix(0, 0).UTC()}, nil
}

func (s *stageServiceStub) DeleteStage(_ context.Context, id string) error {
	s.deletedID = id
	return s.deleteErr
}

func (s *stageServiceStub) CompleteStage(_ context.Context, id string, role models.Role) (models.Stage, error) {
	s.completedID = id
	s.completeRole = role
	if s.completeErr != nil {
		return models.Stage{}, s.completeErr
	}
	return models.Stage{ID: id, Completed: true}, nil
}

func (s *stageServiceStub) ListStages(_ context.Context, videoID string) ([]models.Stage, error) {
	return s.list, s.listErr
}

func (s *stageServiceStub) LevelCompleted(_ context.Context, videoID string, level int) (bool, error) {
	s.level = level
	return s.levelDone, nil
}

func (s *stageServiceStub) Board(_ context.Context, videoID string) (stages.Board, error) {
	return s.board, nil
}

func (s *stageServiceStub) CopyStages(_ context.Context, target, source string) ([]models.Stage, error) {
	s.copyTarget = target
	s.copySource = source
	return s.copied, s.copyErr
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestStageHandlerCreateSuccess(t *testing.T) {
	svc := &stageServiceStub{}
	handler := StageHandler{Stages: svc}

	body := `{"videoId":"video-1","title":"Shoot","description":"","requiredRole":"operator","dependsOnStageId":"stage-0"}`
	req := httptest.NewRequest(http.MethodPost, "/api/stage", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.created.RequiredRole != models.RoleOperator {
		t.Fatalf("expected role to be normalised, got %q", svc.created.RequiredRole)
	}
	if svc.created.DependsOnStageID != "stage-0" {
		t.Fatalf("expected dependency to be forwarded, got %q", svc.created.DependsOnStageID)
	}

	var resp stageResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "stage-1" || resp.RequiredRole != "OPERATOR" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestStageHandlerCreateValidationFailures(t *testing.T) {
	handler := StageHandler{Stages: &stageServiceStub{}}

	cases := []struct {
		name string
		body string
	}{
		{"badJSON", "{"},
		{"missingTitle", `{"videoId":"v","requiredRole":"EDITOR"}`},
		{"missingVideo", `{"title":"t","requiredRole":"EDITOR"}`},
		{"unknownRole", `{"videoId":"v","title":"t","requiredRole":"PRODUCER"}`},
		{"unknownField", `{"videoId":"v","title":"t","requiredRole":"EDITOR","level":3}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/stage", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()

			handler.Create(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rec.Code)
			}
		})
	}
}

func TestStageHandlerCreateMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{fmt.Errorf("create stage: %w", stages.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("create stage: %w", stages.ErrInvalidReference), http.StatusUnprocessableEntity, "invalid_reference"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.wantCode, func(t *testing.T) {
			handler := StageHandler{Stages: &stageServiceStub{createErr: tc.err}}
			body := `{"videoId":"v","title":"t","requiredRole":"EDITOR"}`
			req := httptest.NewRequest(http.MethodPost, "/api/stage", bytes.NewBufferString(body))
			rec := httptest.NewRecorder()

			handler.Create(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d got %d", tc.wantStatus, rec.Code)
			}
			if resp := decodeError(t, rec); resp.Code != tc.wantCode {
				t.Fatalf("expected code %q got %q", tc.wantCode, resp.Code)
			}
		})
	}
}

func TestStageHandlerCreateRateLimited(t *testing.T) {
	handler := StageHandler{Stages: &stageServiceStub{}, Limiter: denyLimiter{}}
	req := httptest.NewRequest(http.MethodPost, "/api/stage", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
}

func TestStageHandlerMissingService(t *testing.T) {
	handler := StageHandler{}
	req := httptest.NewRequest(http.MethodGet, "/api/stage/video/v", nil)
	req.SetPathValue("videoId", "v")
	rec := httptest.NewRecorder()

	handler.ListByVideo(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}

func TestStageHandlerComplete(t *testing.T) {
	cases := []struct {
		name       string
		role       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"success", "EDITOR", nil, http.StatusOK, ""},
		{"missingHeader", "", nil, http.StatusBadRequest, "invalid_input"},
		{"unknownRole", "PRODUCER", nil, http.StatusBadRequest, "invalid_role"},
		{"forbidden", "DESIGNER", stages.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"alreadyCompleted", "EDITOR", stages.ErrAlreadyCompleted, http.StatusConflict, "already_completed"},
		{"notAvailable", "EDITOR", stages.ErrNotAvailable, http.StatusConflict, "not_available"},
		{"notFound", "OWNER", stages.ErrNotFound, http.StatusNotFound, "not_found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stageServiceStub{completeErr: tc.err}
			handler := StageHandler{Stages: svc}

			req := httptest.NewRequest(http.MethodPost, "/api/stage/stage-9/complete", nil)
			req.SetPathValue("id", "stage-9")
			if tc.role != "" {
				req.Header.Set(ActorRoleHeader, tc.role)
			}
			rec := httptest.NewRecorder()

			handler.Complete(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if tc.wantCode != "" {
				if resp := decodeError(t, rec); resp.Code != tc.wantCode {
					t.Fatalf("expected code %q got %q", tc.wantCode, resp.Code)
				}
			}
			if tc.wantStatus == http.StatusOK && svc.completedID != "stage-9" {
				t.Fatalf("expected stage-9 to be completed, got %q", svc.completedID)
			}
		})
	}
}

func TestStageHandlerDeleteHasDependents(t *testing.T) {
	svc := &stageServiceStub{deleteErr: fmt.Errorf("delete stage s: %w", stages.ErrHasDependents)}
	handler := StageHandler{Stages: svc}

	req := httptest.NewRequest(http.MethodDelete, "/api/stage/s", nil)
	req.SetPathValue("id", "s")
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "has_dependents" {
		t.Fatalf("unexpected code %q", resp.Code)
	}
	if svc.deletedID != "s" {
		t.Fatalf("expected delete for s got %q", svc.deletedID)
	}
}

func TestStageHandlerDeletePurgesFiles(t *testing.T) {
	files := &fileServiceStub{stageKeys: []string{"stages/s/a/cut.mp4"}}
	handler := StageHandler{Stages: &stageServiceStub{}, Files: files}

	req := httptest.NewRequest(http.MethodDelete, "/api/stage/s", nil)
	req.SetPathValue("id", "s")
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if len(files.purged) != 1 || files.purged[0] != "stages/s/a/cut.mp4" {
		t.Fatalf("expected stage objects to be purged, got %v", files.purged)
	}
}

func TestStageHandlerLevelCompleted(t *testing.T) {
	svc := &stageServiceStub{levelDone: true}
	handler := StageHandler{Stages: svc}

	req := httptest.NewRequest(http.MethodGet, "/api/stage/video/v/level/2/completed", nil)
	req.SetPathValue("videoId", "v")
	req.SetPathValue("level", "2")
	rec := httptest.NewRecorder()

	handler.LevelCompleted(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got := bytes.TrimSpace(rec.Body.Bytes()); string(got) != "true" {
		t.Fatalf("expected bare boolean body got %s", got)
	}
	if svc.level != 2 {
		t.Fatalf("expected level 2 got %d", svc.level)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/stage/video/v/level/x/completed", nil)
	req.SetPathValue("videoId", "v")
	req.SetPathValue("level", "x")
	rec = httptest.NewRecorder()

	handler.LevelCompleted(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestStageHandlerBoardEmptyVideo(t *testing.T) {
	svc := &stageServiceStub{board: stages.BuildBoard("v", nil)}
	handler := StageHandler{Stages: svc}

	req := httptest.NewRequest(http.MethodGet, "/api/stage/video/v/board", nil)
	req.SetPathValue("videoId", "v")
	rec := httptest.NewRecorder()

	handler.Board(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("decode board: %v", err)
	}
	if string(raw["levels"]) != "[]" {
		t.Fatalf("expected empty levels array got %s", raw["levels"])
	}
}

func TestStageHandlerCopyPartialFailure(t *testing.T) {
	svc := &stageServiceStub{
		copied:  []models.Stage{{ID: "copy-1", VideoID: "target"}},
		copyErr: &stages.CopyError{Created: 1, Err: stages.ErrInvalidReference},
	}
	handler := StageHandler{Stages: svc}

	req := httptest.NewRequest(http.MethodPost, "/api/stage/video/target/copy", bytes.NewBufferString(`{"sourceVideoId":"source"}`))
	req.SetPathValue("videoId", "target")
	rec := httptest.NewRecorder()

	handler.Copy(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
	var resp struct {
		Code    string          `json:"code"`
		Created int             `json:"created"`
		Stages  []stageResponse `json:"stages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != "invalid_reference" || resp.Created != 1 || len(resp.Stages) != 1 {
		t.Fatalf("unexpected partial copy response %+v", resp)
	}
	if svc.copyTarget != "target" || svc.copySource != "source" {
		t.Fatalf("unexpected copy arguments %q %q", svc.copyTarget, svc.copySource)
	}
}
