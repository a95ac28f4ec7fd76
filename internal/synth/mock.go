package synth

import (
	"fmt"

	"planline/internal/domain"
)

// Mock produces the placeholder template for one day of a goal. It is
// deterministic in (goal, dayIndex).
func Mock(g domain.Goal, dayIndex int) domain.TaskTemplate {
	focus := JoinFocus(g.FocusAreas)
	return domain.TaskTemplate{
		Title:            fmt.Sprintf("Practice Session %d", dayIndex+1),
		Description:      fmt.Sprintf("Daily practice session for %s", g.Title),
		EstimatedMinutes: g.DailyMinutes,
		SuccessCriteria: []string{
			"Complete the planned practice time",
			"Note one thing that improved today",
		},
		Prerequisites: []string{},
		Notes:         fmt.Sprintf("Focus today: %s", focus),
		DailyFocus:    focus,
		Resources:     []string{},
	}
}

// MockPlan returns one mock template per scheduled day.
func MockPlan(g domain.Goal, days int) []domain.TaskTemplate {
	out := make([]domain.TaskTemplate, days)
	for i := range out {
		out[i] = Mock(g, i)
	}
	return out
}
