package stages

import "github.com/rolliki/backend/internal/models"

// AllCompleted reports whether every stage on level is completed. An empty
// level is vacuously complete.
func AllCompleted(stages []models.Stage, level int) bool {
	for _, s := range stages {
		if s.Level == level && !s.Completed {
			return false
		}
	}
	return true
}

// CompletionPercentage returns the share of completed stages in [0,100].
func CompletionPercentage(stages []models.Stage) float64 {
	if len(stages) == 0 {
		return 0
	}
	var done int
	for _, s := range stages {
		if s.Completed {
			done++
		}
	}
	return 100 * float64(done) / float64(len(stages))
}

// Status derives the video status from its stages. A video without stages
// is still in progress.
func Status(stages []models.Stage) models.VideoStatus {
	if len(stages) == 0 {
		return models.VideoStatusInProgress
	}
	for _, s := range stages {
		if !s.Completed {
			return models.VideoStatusInProgress
		}
	}
	return models.VideoStatusCompleted
}

// IsAvailable reports whether work on stage may begin. Gating is per level:
// every stage on the previous level of the same video must be completed,
// regardless of which stage the dependency edge names.
func IsAvailable(stage models.Stage, videoStages []models.Stage) bool {
	if stage.Level == 0 {
		return true
	}
	for _, s := range videoStages {
		if s.VideoID == stage.VideoID && s.Level == stage.Level-1 && !s.Completed {
			return false
		}
	}
	return true
}
