package stages

import "github.com/rolliki/backend/internal/models"

// Board is the per-video projection consumed by the kanban client.
type Board struct {
	VideoID              string
	Status               models.VideoStatus
	CompletionPercentage float64
	Levels               []BoardLevel
}

// BoardLevel is one kanban column.
type BoardLevel struct {
	Level  int
	Stages []BoardStage
}

// BoardStage annotates a stage with its derived availability.
type BoardStage struct {
	models.Stage
	Available bool
}

// BuildBoard groups stages by level. Stages keep the order they are given in,
// which stores return as creation order. All flags are computed from the same
// slice so the result is a consistent snapshot.
func BuildBoard(videoID string, stages []models.Stage) Board {
	board := Board{
		VideoID:              videoID,
		Status:               Status(stages),
		CompletionPercentage: CompletionPercentage(stages),
		Levels:               []BoardLevel{},
	}

	highest := MaxLevel(stages)
	if highest < 0 {
		return board
	}

	done := make([]bool, highest+1)
	for level := 0; level <= highest; level++ {
		done[level] = AllCompleted(stages, level)
	}

	board.Levels = make([]BoardLevel, highest+1)
	for level := range board.Levels {
		board.Levels[level] = BoardLevel{Level: level, Stages: []BoardStage{}}
	}

	for _, s := range stages {
		available := s.Level == 0 || done[s.Level-1]
		board.Levels[s.Level].Stages = append(board.Levels[s.Level].Stages, BoardStage{Stage: s, Available: available})
	}

	return board
}
