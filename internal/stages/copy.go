package stages

import (
	"context"
	"fmt"

	"github.com/rolliki/backend/internal/logging"
	"github.com/rolliki/backend/internal/models"
)

// CopyError reports a copy that stopped part way. Stages created before the
// failure are kept.
type CopyError struct {
	Created int
	Err     error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy stopped after %d stages: %v", e.Created, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// CopyStages recreates the stages of sourceVideoID inside targetVideoID.
// Source stages are visited in creation order, so a dependency is always
// created before its dependents and can be remapped to the new stage id.
func (s *Service) CopyStages(ctx context.Context, targetVideoID, sourceVideoID string) ([]models.Stage, error) {
	ctx, span := logging.StartSpan(ctx, "stages.copy")
	defer span.End()

	if targetVideoID == sourceVideoID {
		return nil, fmt.Errorf("%w: source and target video are the same", ErrInvalidReference)
	}
	if _, err := s.videos.GetVideo(ctx, targetVideoID); err != nil {
		return nil, fmt.Errorf("get target video %s: %w", targetVideoID, err)
	}

	source, err := s.ListStages(ctx, sourceVideoID)
	if err != nil {
		return nil, err
	}

	remapped := make(map[string]string, len(source))
	created := make([]models.Stage, 0, len(source))
	for _, stage := range source {
		in := StageInput{
			VideoID:      targetVideoID,
			Title:        stage.Title,
			Description:  stage.Description,
			RequiredRole: stage.RequiredRole,
		}
		if stage.HasDependency() {
			newID, ok := remapped[*stage.DependsOnStageID]
			if !ok {
				return created, &CopyError{
					Created: len(created),
					Err:     fmt.Errorf("stage %s depends on unknown stage %s: %w", stage.ID, *stage.DependsOnStageID, ErrInvalidReference),
				}
			}
			in.DependsOnStageID = newID
		}

		copied, err := s.CreateStage(ctx, in)
		if err != nil {
			return created, &CopyError{Created: len(created), Err: err}
		}
		remapped[stage.ID] = copied.ID
		created = append(created, copied)
	}

	logging.FromContext(ctx).Info("stages copied", "sourceVideoId", sourceVideoID, "targetVideoId", targetVideoID, "count", len(created))
	return created, nil
}
