package handlers

import (
	"time"

	"github.com/rolliki/backend/internal/models"
	"github.com/rolliki/backend/internal/stages"
)

const dateLayout = "2006-01-02"

type stageResponse struct {
	ID               string     `json:"id"`
	VideoID          string     `json:"videoId"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	RequiredRole     string     `json:"requiredRole"`
	DependsOnStageID *string    `json:"dependsOnStageId"`
	Level            int        `json:"level"`
	Completed        bool       `json:"completed"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

type boardStageResponse struct {
	stageResponse
	Available bool `json:"available"`
}

type boardLevelResponse struct {
	Level  int                  `json:"level"`
	Stages []boardStageResponse `json:"stages"`
}

type boardResponse struct {
	VideoID              string               `json:"videoId"`
	Status               string               `json:"status"`
	CompletionPercentage float64              `json:"completionPercentage"`
	Levels               []boardLevelResponse `json:"levels"`
}

type videoResponse struct {
	ID                   string    `json:"id"`
	ProjectID            string    `json:"projectId"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Deadline             *string   `json:"deadline"`
	CreatedAt            time.Time `json:"createdAt"`
	Status               string    `json:"status"`
	CompletionPercentage float64   `json:"completionPercentage"`
	StageCount           int       `json:"stageCount"`
}

type attachmentResponse struct {
	ID          string    `json:"id"`
	StageID     string    `json:"stageId"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Location    string    `json:"location"`
	CreatedAt   time.Time `json:"createdAt"`
}

type copyResponse struct {
	Stages  []stageResponse `json:"stages"`
	Created int             `json:"created"`
}

type roleLabelResponse struct {
	Role       string `json:"role"`
	Label      string `json:"label"`
	Assignable bool   `json:"assignable"`
}

func toStageResponse(s models.Stage) stageResponse {
	return stageResponse{
		ID:               s.ID,
		VideoID:          s.VideoID,
		Title:            s.Title,
		Description:      s.Description,
		RequiredRole:     string(s.RequiredRole),
		DependsOnStageID: s.DependsOnStageID,
		Level:            s.Level,
		Completed:        s.Completed,
		CompletedAt:      s.CompletedAt,
		CreatedAt:        s.CreatedAt,
	}
}

func toStageResponses(list []models.Stage) []stageResponse {
	out := make([]stageResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toStageResponse(s))
	}
	return out
}

func toBoardResponse(b stages.Board) boardResponse {
	resp := boardResponse{
		VideoID:              b.VideoID,
		Status:               string(b.Status),
		CompletionPercentage: b.CompletionPercentage,
		Levels:               make([]boardLevelResponse, 0, len(b.Levels)),
	}
	for _, level := range b.Levels {
		column := boardLevelResponse{Level: level.Level, Stages: make([]boardStageResponse, 0, len(level.Stages))}
		for _, s := range level.Stages {
			column.Stages = append(column.Stages, boardStageResponse{stageResponse: toStageResponse(s.Stage), Available: s.Available})
		}
		resp.Levels = append(resp.Levels, column)
	}
	return resp
}

func toVideoResponse(v stages.VideoOverview) videoResponse {
	resp := videoResponse{
		ID:                   v.ID,
		ProjectID:            v.ProjectID,
		Title:                v.Title,
		Description:          v.Description,
		CreatedAt:            v.CreatedAt,
		Status:               string(v.Status),
		CompletionPercentage: v.CompletionPercentage,
		StageCount:           v.StageCount,
	}
	if v.Deadline != nil {
		d := v.Deadline.Format(dateLayout)
		resp.Deadline = &d
	}
	return resp
}

func toAttachmentResponse(a models.Attachment) attachmentResponse {
	return attachmentResponse{
		ID:          a.ID,
		StageID:     a.StageID,
		Name:        a.Name,
		ContentType: a.ContentType,
		Size:        a.Size,
		Location:    a.Location,
		CreatedAt:   a.CreatedAt,
	}
}

func toAttachmentResponses(list []models.Attachment) []attachmentResponse {
	out := make([]attachmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAttachmentResponse(a))
	}
	return out
}
