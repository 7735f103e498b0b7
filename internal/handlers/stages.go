package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rolliki/backend/internal/logging"
	"github.com/rolliki/backend/internal/models"
	"github.com/rolliki/backend/internal/stages"
)

// ActorRoleHeader carries the project role of the caller completing a stage.
const ActorRoleHeader = "X-Actor-Role"

// StageHandler exposes the stage workflow endpoints.
type StageHandler struct {
	Stages  StageService
	Files   FileService
	Limiter RateLimiter
}

type createStageRequest struct {
	VideoID          string  `json:"videoId" validate:"required"`
	Title            string  `json:"title" validate:"required,max=200"`
	Description      string  `json:"description" validate:"max=4000"`
	RequiredRole     string  `json:"requiredRole" validate:"required,role"`
	DependsOnStageID *string `json:"dependsOnStageId"`
}

type copyStagesRequest struct {
	SourceVideoID string `json:"sourceVideoId" validate:"required"`
}

// Create handles POST /api/stage.
func (h StageHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Stages == nil {
		logging.FromContext(ctx).Error("stage service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "stage service unavailable", Code: "internal"})
		return
	}
	if !admit(ctx, w, r, h.Limiter, "stage") {
		return
	}

	var req createStageRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		respondBadRequest(ctx, w, err.Error())
		return
	}

	role, err := models.ParseRole(req.RequiredRole)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	in := stages.StageInput{
		VideoID:      req.VideoID,
		Title:        req.Title,
		Description:  req.Description,
		RequiredRole: role,
	}
	if req.DependsOnStageID != nil {
		in.DependsOnStageID = *req.DependsOnStageID
	}

	stage, err := h.Stages.CreateStage(ctx, in)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, toStageResponse(stage))
}

// Delete handles DELETE /api/stage/{id}.
func (h StageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Stages == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "stage service unavailable", Code: "internal"})
		return
	}
	if !admit(ctx, w, r, h.Limiter, "stage") {
		return
	}

	id := r.PathValue("id")
	var keys []string
	if h.Files != nil {
		var err error
		if keys, err = h.Files.KeysForStage(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("list attachment keys before stage delete", "stageId", id, "error", err)
		}
	}

	if err := h.Stages.DeleteStage(ctx, id); err != nil {
		respondError(ctx, w, err)
		return
	}
	if h.Files != nil {
		h.Files.Purge(ctx, keys)
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// Complete handles POST /api/stage/{id}/complete. The caller's role is read
// from the X-Actor-Role header.
func (h StageHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Stages == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "stage service unavailable", Code: "internal"})
		return
	}
	if !admit(ctx, w, r, h.Limiter, "stage") {
		return
	}

	header := strings.TrimSpace(r.Header.Get(ActorRoleHeader))
	if header == "" {
		respondBadRequest(ctx, w, ActorRoleHeader+" header is required")
		return
	}
	role, err := models.ParseRole(header)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	stage, err := h.Stages.CompleteStage(ctx, r.PathValue("id"), role)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, toStageResponse(stage))
}

// ListByVideo handles GET /api/stage/video/{videoId}.
func (h StageHandler) ListByVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Stages == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "stage service unavailable", Code: "internal"})
		return
	}

	list, err := h.Stages.ListStages(ctx, r.PathValue("videoId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, toStageResponses(list))
}

// LevelCompleted handles GET /api/stage/video/{videoId}/level/{level}/completed.
func (h StageHandler) LevelCompleted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Stages == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "stage service unavailable", Code: "internal"})
		return
	}

	level, err := strconv.Atoi(r.PathValue("level"))
	if err != nil {
		respondBadRequest(ctx, w, "level must be an integer")
		return
	}

	done, err := h.Stages.LevelCompleted(ctx, r.PathValue("videoId"), level)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, done)
}

// Board handles GET /api/stage/video/{videoId}/board.
func (h StageHandler) Board(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Stages == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "stage service unavailable", Code: "internal"})
		return
	}

	board, err := h.Stages.Board(ctx, r.PathValue("videoId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, toBoardResponse(board))
}

// Copy handles POST /api/stage/video/{videoId}/copy. A copy that fails part
// way reports the error together with the stages it did create.
func (h StageHandler) Copy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Stages == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "stage service unavailable", Code: "internal"})
		return
	}
	if !admit(ctx, w, r, h.Limiter, "stage") {
		return
	}

	var req copyStagesRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		respondBadRequest(ctx, w, err.Error())
		return
	}

	created, err := h.Stages.CopyStages(ctx, r.PathValue("videoId"), req.SourceVideoID)
	if err != nil {
		var copyErr *stages.CopyError
		if errors.As(err, &copyErr) {
			kind := classify(err)
			message := err.Error()
			if kind.status == http.StatusInternalServerError {
				logging.FromContext(ctx).Error("copy stages failed", "error", err, "created", copyErr.Created)
				message = "internal server error"
			}
			respondJSON(ctx, w, kind.status, struct {
				errorResponse
				copyResponse
			}{
				errorResponse{Error: message, Code: kind.code},
				copyResponse{Stages: toStageResponses(created), Created: copyErr.Created},
			})
			return
		}
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, copyResponse{Stages: toStageResponses(created), Created: len(created)})
}
