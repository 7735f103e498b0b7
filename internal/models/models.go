package models

import "time"

// Video is a single production item owned by a project.
type Video struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Deadline    *time.Time
	CreatedAt   time.Time
}

// VideoStatus is derived from the completion state of a video's stages.
type VideoStatus string

const (
	VideoStatusInProgress VideoStatus = "in_progress"
	VideoStatusCompleted  VideoStatus = "completed"
)

// Stage is one unit of required work within a video's production pipeline.
type Stage struct {
	ID               string
	VideoID          string
	Title            string
	Description      string
	RequiredRole     Role
	DependsOnStageID *string
	Level            int
	Completed        bool
	CompletedAt      *time.Time
	CreatedAt        time.Time
	Seq              int64
}

// HasDependency reports whether the stage declares a dependency edge.
func (s Stage) HasDependency() bool {
	return s.DependsOnStageID != nil && *s.DependsOnStageID != ""
}

// NewStage carries the caller supplied fields for stage creation. Level,
// identifiers and timestamps are assigned by the store.
type NewStage struct {
	ID               string
	VideoID          string
	Title            string
	Description      string
	RequiredRole     Role
	DependsOnStageID *string
	CreatedAt        time.Time
}

// Attachment describes a deliverable file uploaded against a stage.
type Attachment struct {
	ID          string
	StageID     string
	Name        string
	ContentType string
	Size        int64
	StorageKey  string
	Location    string
	CreatedAt   time.Time
}
