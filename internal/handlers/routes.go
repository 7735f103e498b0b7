package handlers

import (
	"context"
	"net/http"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Store: deps.StoreBackend, Check: deps.HealthCheck}
	roles := RolesHandler{}
	stageHandler := StageHandler{Stages: deps.Stages, Files: deps.Files, Limiter: deps.Limiter}
	videoHandler := VideoHandler{Videos: deps.Videos, Files: deps.Files, Limiter: deps.Limiter}
	fileHandler := FileHandler{Files: deps.Files, Limiter: deps.Limiter, MaxUploadBytes: deps.MaxUploadBytes}

	mux.HandleFunc("GET /healthz", health.Handle)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	mux.HandleFunc("POST /api/stage", stageHandler.Create)
	mux.HandleFunc("DELETE /api/stage/{id}", stageHandler.Delete)
	mux.HandleFunc("POST /api/stage/{id}/complete", stageHandler.Complete)
	mux.HandleFunc("GET /api/stage/video/{videoId}", stageHandler.ListByVideo)
	mux.HandleFunc("GET /api/stage/video/{videoId}/level/{level}/completed", stageHandler.LevelCompleted)
	mux.HandleFunc("GET /api/stage/video/{videoId}/board", stageHandler.Board)
	mux.HandleFunc("POST /api/stage/video/{videoId}/copy", stageHandler.Copy)

	mux.HandleFunc("POST /api/video", videoHandler.Create)
	mux.HandleFunc("GET /api/video/{id}", videoHandler.Get)
	mux.HandleFunc("PUT /api/video/{id}", videoHandler.Update)
	mux.HandleFunc("DELETE /api/video/{id}", videoHandler.Delete)
	mux.HandleFunc("GET /api/video/project/{projectId}", videoHandler.ListByProject)

	mux.HandleFunc("POST /api/file/savefiles", fileHandler.Save)
	mux.HandleFunc("GET /api/file/{stageId}", fileHandler.List)
	mux.HandleFunc("GET /api/file/download/{fileId}", fileHandler.Download)

	mux.HandleFunc("GET /api/help/roles", roles.List)
	mux.HandleFunc("GET /api/help/roles/labels", roles.Labels)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Stages         StageService
	Videos         VideoService
	Files          FileService
	Limiter        RateLimiter
	Metrics        http.Handler
	MaxUploadBytes int64
	StoreBackend   string
	HealthCheck    func(ctx context.Context) error
}
