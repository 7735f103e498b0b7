package stages

import "github.com/rolliki/backend/internal/models"

// AssignLevel returns the level for a new stage given its dependency, which
// is nil for a root stage.
func AssignLevel(dependency *models.Stage) int {
	if dependency == nil {
		return 0
	}
	return dependency.Level + 1
}

// ValidateDependency checks that dependency may be referenced by a new stage
// of videoID.
func ValidateDependency(videoID string, dependency models.Stage) error {
	if dependency.VideoID != videoID {
		return ErrInvalidReference
	}
	return nil
}

// MaxLevel returns the highest level among stages, or -1 when there are none.
func MaxLevel(stages []models.Stage) int {
	highest := -1
	for _, s := range stages {
		if s.Level > highest {
			highest = s.Level
		}
	}
	return highest
}
