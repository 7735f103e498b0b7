package stages

import "errors"

var (
	// ErrNotFound indicates the requested video or stage does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidReference indicates a dependency that is missing or belongs to another video.
	ErrInvalidReference = errors.New("invalid stage reference")
	// ErrForbidden indicates the actor's role may not act on the stage.
	ErrForbidden = errors.New("role not permitted for stage")
	// ErrAlreadyCompleted indicates the stage was completed before.
	ErrAlreadyCompleted = errors.New("stage already completed")
	// ErrNotAvailable indicates a stage on the previous level is still incomplete.
	ErrNotAvailable = errors.New("stage not available")
	// ErrHasDependents indicates other stages still depend on the stage being deleted.
	ErrHasDependents = errors.New("stage has dependents")
	// ErrInvalidInput indicates a request that fails basic validation.
	ErrInvalidInput = errors.New("invalid input")
)
