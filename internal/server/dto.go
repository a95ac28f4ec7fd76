package server

import (
	"planline/internal/domain"
	"planline/internal/engine"
)

// Request payloads

type CreateGoalRequest struct {
	Title        string   `json:"title" minLength:"1"`
	Description  string   `json:"description,omitempty"`
	CurrentLevel string   `json:"current_level,omitempty"`
	FocusAreas   []string `json:"focus_areas,omitempty"`
	DailyMinutes int      `json:"daily_minutes" doc:"Daily practice budget in minutes"`
	StartDate    string   `json:"start_date" doc:"First day, YYYY-MM-DD"`
	EndDate      string   `json:"end_date" doc:"Last day, exclusive unless equal to start_date"`
}

type UpdateGoalRequest struct {
	Title        *string   `json:"title,omitempty"`
	Description  *string   `json:"description,omitempty"`
	CurrentLevel *string   `json:"current_level,omitempty"`
	FocusAreas   *[]string `json:"focus_areas,omitempty"`
	DailyMinutes *int      `json:"daily_minutes,omitempty"`
	StartDate    *string   `json:"start_date,omitempty"`
	EndDate      *string   `json:"end_date,omitempty"`
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status" doc:"pending, completed or skipped"`
}

// Responses

type SynthesisStatus struct {
	Completed bool   `json:"completed"`
	Error     string `json:"error,omitempty"`
}

type CreateGoalResponse struct {
	Goal      domain.Goal     `json:"goal"`
	Tasks     []domain.Task   `json:"tasks"`
	Synthesis SynthesisStatus `json:"synthesis"`
}

type GoalDetailResponse struct {
	Goal     domain.Goal    `json:"goal"`
	Tasks    []domain.Task  `json:"tasks"`
	Progress map[string]int `json:"progress" doc:"Task counts by status"`
}

type RegenerateResponse struct {
	GoalID string        `json:"goal_id"`
	Tasks  []domain.Task `json:"tasks"`
}

type SweepResponse struct {
	Results   []engine.SweepResult `json:"results"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
}

type goalList struct {
	Items []domain.Goal `json:"items"`
}

type taskList struct {
	Items []domain.Task `json:"items"`
}

type eventList struct {
	Items []domain.Event `json:"items"`
}

func createGoalResponse(res engine.CreateGoalResult) CreateGoalResponse {
	out := CreateGoalResponse{
		Goal:      res.Goal,
		Tasks:     nonNilSlice(res.Tasks),
		Synthesis: SynthesisStatus{Completed: res.SynthesisErr == nil},
	}
	if res.SynthesisErr != nil {
		out.Synthesis.Error = res.SynthesisErr.Error()
	}
	return out
}

func sweepResponse(results []engine.SweepResult) SweepResponse {
	out := SweepResponse{Results: nonNilSlice(results)}
	for _, r := range results {
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
