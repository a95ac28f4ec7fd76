package domain

const (
	TaskPending   = "pending"
	TaskCompleted = "completed"
	TaskSkipped   = "skipped"
)

// ValidTaskStatus reports whether s is a status a task may hold.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskPending, TaskCompleted, TaskSkipped:
		return true
	}
	return false
}

type Goal struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	CurrentLevel string   `json:"current_level"`
	FocusAreas   []string `json:"focus_areas"`
	DailyMinutes int      `json:"daily_minutes"`
	StartDate    string   `json:"start_date" format:"date"`
	EndDate      string   `json:"end_date" format:"date"`
	Tasks        []string `json:"tasks"`
	CreatedAt    string   `json:"created_at" format:"date-time"`
	UpdatedAt    string   `json:"updated_at" format:"date-time"`
}

type Task struct {
	ID               string   `json:"id"`
	GoalID           string   `json:"goal_id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	EstimatedMinutes int      `json:"estimated_minutes"`
	Status           string   `json:"status" enum:"pending,completed,skipped"`
	DueDate          string   `json:"due_date" format:"date"`
	CompletedAt      *string  `json:"completed_at,omitempty" format:"date-time"`
	SuccessCriteria  []string `json:"success_criteria"`
	Prerequisites    []string `json:"prerequisites"`
	Notes            string   `json:"notes"`
	DailyFocus       string   `json:"daily_focus"`
	Resources        []string `json:"resources"`
	CreatedAt        string   `json:"created_at" format:"date-time"`
	UpdatedAt        string   `json:"updated_at" format:"date-time"`
}

// TaskTemplate is generated task content not yet bound to a goal or a day.
type TaskTemplate struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	EstimatedMinutes int      `json:"estimated_minutes"`
	SuccessCriteria  []string `json:"success_criteria"`
	Prerequisites    []string `json:"prerequisites"`
	Notes            string   `json:"notes"`
	DailyFocus       string   `json:"daily_focus"`
	Resources        []string `json:"resources"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	GoalID     string `json:"goal_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
