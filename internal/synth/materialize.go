package synth

import (
	"time"

	"planline/internal/domain"
	"planline/internal/schedule"
)

// Materialize binds templates to the scheduled days of g. Day i takes
// templates[i % len(templates)]; an empty template list yields no tasks.
func Materialize(g domain.Goal, days []time.Time, templates []domain.TaskTemplate, newID func() string, now string) []domain.Task {
	if len(templates) == 0 {
		return nil
	}
	focus := JoinFocus(g.FocusAreas)
	tasks := make([]domain.Task, 0, len(days))
	for i, day := range days {
		tpl := templates[i%len(templates)]
		minutes := tpl.EstimatedMinutes
		if minutes <= 0 {
			minutes = g.DailyMinutes
		}
		dailyFocus := tpl.DailyFocus
		if dailyFocus == "" {
			dailyFocus = focus
		}
		title := tpl.Title
		if title == "" {
			title = DefaultTitle
		}
		tasks = append(tasks, domain.Task{
			ID:               newID(),
			GoalID:           g.ID,
			Title:            title,
			Description:      tpl.Description,
			EstimatedMinutes: minutes,
			Status:           domain.TaskPending,
			DueDate:          schedule.FormatDate(day),
			SuccessCriteria:  cloneStrings(tpl.SuccessCriteria),
			Prerequisites:    cloneStrings(tpl.Prerequisites),
			Notes:            tpl.Notes,
			DailyFocus:       dailyFocus,
			Resources:        cloneStrings(tpl.Resources),
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	return tasks
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
