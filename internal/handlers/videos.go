package handlers

import (
	"net/http"
	"time"

	"github.com/rolliki/backend/internal/logging"
	"github.com/rolliki/backend/internal/stages"
)

// VideoHandler provides the video registry endpoints.
type VideoHandler struct {
	Videos  VideoService
	Files   FileService
	Limiter RateLimiter
}

type videoRequest struct {
	ProjectID   string `json:"projectId" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=4000"`
	Deadline    string `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
}

type updateVideoRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=4000"`
	Deadline    string `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
}

// Create handles POST /api/video.
func (h VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Videos == nil {
		logging.FromContext(ctx).Error("video service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "video service unavailable", Code: "internal"})
		return
	}
	if !admit(ctx, w, r, h.Limiter, "video") {
		return
	}

	var req videoRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		respondBadRequest(ctx, w, err.Error())
		return
	}

	video, err := h.Videos.CreateVideo(ctx, stages.VideoInput{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Deadline:    parseDeadline(req.Deadline),
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, toVideoResponse(video))
}

// Get handles GET /api/video/{id}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Videos == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "video service unavailable", Code: "internal"})
		return
	}

	video, err := h.Videos.GetVideo(ctx, r.PathValue("id"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, toVideoResponse(video))
}

// ListByProject handles GET /api/video/project/{projectId}.
func (h VideoHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Videos == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "video service unavailable", Code: "internal"})
		return
	}

	list, err := h.Videos.ListVideos(ctx, r.PathValue("projectId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	out := make([]videoResponse, 0, len(list))
	for _, v := range list {
		out = append(out, toVideoResponse(v))
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

// Update handles PUT /api/video/{id}.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Videos == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "video service unavailable", Code: "internal"})
		return
	}
	if !admit(ctx, w, r, h.Limiter, "video") {
		return
	}

	var req updateVideoRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		respondBadRequest(ctx, w, err.Error())
		return
	}

	video, err := h.Videos.UpdateVideo(ctx, r.PathValue("id"), stages.VideoInput{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    parseDeadline(req.Deadline),
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, toVideoResponse(video))
}

// Delete handles DELETE /api/video/{id}. Stored files of the video's stages
// are removed after the rows are gone; failures there are only logged.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Videos == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "video service unavailable", Code: "internal"})
		return
	}
	if !admit(ctx, w, r, h.Limiter, "video") {
		return
	}

	id := r.PathValue("id")
	var keys []string
	if h.Files != nil {
		var err error
		if keys, err = h.Files.KeysForVideo(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("list attachment keys before video delete", "videoId", id, "error", err)
		}
	}

	if err := h.Videos.DeleteVideo(ctx, id); err != nil {
		respondError(ctx, w, err)
		return
	}
	if h.Files != nil {
		h.Files.Purge(ctx, keys)
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// parseDeadline expects a value already checked by the datetime validator.
func parseDeadline(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil
	}
	return &t
}
