package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rolliki/backend/internal/attachments"
	"github.com/rolliki/backend/internal/logging"
)

const multipartMemory = 32 << 20

// FileHandler stores and serves deliverables uploaded against stages.
type FileHandler struct {
	Files          FileService
	Limiter        RateLimiter
	MaxUploadBytes int64
}

// Save handles POST /api/file/savefiles. The multipart form carries a
// stageId field and one or more files parts.
func (h FileHandler) Save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	if h.Files == nil {
		logger.Error("file service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "file service unavailable", Code: "internal"})
		return
	}
	if !admit(ctx, w, r, h.Limiter, "file") {
		return
	}

	if h.MaxUploadBytes > 0 {
		if r.ContentLength > h.MaxUploadBytes {
			respondJSON(ctx, w, http.StatusRequestEntityTooLarge, errorResponse{Error: fmt.Sprintf("upload exceeds %d bytes", h.MaxUploadBytes), Code: "too_large"})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondJSON(ctx, w, http.StatusRequestEntityTooLarge, errorResponse{Error: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), Code: "too_large"})
			return
		}
		respondBadRequest(ctx, w, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	stageID := strings.TrimSpace(r.FormValue("stageId"))
	if stageID == "" {
		respondBadRequest(ctx, w, "stageId is required")
		return
	}

	headers := r.MultipartForm.File["files"]
	uploads := make([]attachments.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			logger.Warn("open multipart file", "name", fh.Filename, "error", err)
			respondBadRequest(ctx, w, "unreadable file "+fh.Filename)
			return
		}
		defer func(f multipart.File) { _ = f.Close() }(f)
		uploads = append(uploads, attachments.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}

	saved, err := h.Files.Save(ctx, stageID, uploads)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, toAttachmentResponses(saved))
}

// List handles GET /api/file/{stageId}.
func (h FileHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Files == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "file service unavailable", Code: "internal"})
		return
	}

	list, err := h.Files.List(ctx, r.PathValue("stageId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, toAttachmentResponses(list))
}

// Download handles GET /api/file/download/{fileId} by streaming the stored object.
func (h FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Files == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "file service unavailable", Code: "internal"})
		return
	}

	attachment, body, err := h.Files.Open(ctx, r.PathValue("fileId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	defer func() { _ = body.Close() }()

	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.Name))
	if attachment.Size > 0 {
		w.Header().Set("Content-Length", fmt.Sprint(attachment.Size))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		logging.FromContext(ctx).Warn("stream attachment", "attachmentId", attachment.ID, "error", err)
	}
}
