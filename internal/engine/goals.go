package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"planline/internal/domain"
	"planline/internal/events"
	"planline/internal/repo"
	"planline/internal/schedule"
)

// GoalInput are the caller-supplied fields of a new goal.
type GoalInput struct {
	Title        string
	Description  string
	CurrentLevel string
	FocusAreas   []string
	DailyMinutes int
	StartDate    string
	EndDate      string
}

// GoalPatch carries the goal fields to change; nil means unchanged.
type GoalPatch struct {
	Title        *string
	Description  *string
	CurrentLevel *string
	FocusAreas   *[]string
	DailyMinutes *int
	StartDate    *string
	EndDate      *string
}

// CreateGoalResult is a persisted goal plus the outcome of its first
// synthesis. SynthesisErr is set when the goal was stored but tasks were not.
type CreateGoalResult struct {
	Goal         domain.Goal
	Tasks        []domain.Task
	SynthesisErr error
}

// CreateGoal stores the goal in its own transaction, then synthesizes its
// tasks. A synthesis failure does not undo the goal.
func (e Engine) CreateGoal(ctx context.Context, in GoalInput) (CreateGoalResult, error) {
	now := e.stamp()
	g := domain.Goal{
		ID:           e.newID(),
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		CurrentLevel: in.CurrentLevel,
		FocusAreas:   cleanFocusAreas(in.FocusAreas),
		DailyMinutes: in.DailyMinutes,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		Tasks:        []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.normalizeGoal(&g); err != nil {
		return CreateGoalResult{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return CreateGoalResult{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertGoalTx(ctx, tx, g); err != nil {
		return CreateGoalResult{}, fmt.Errorf("insert goal: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.GoalCreated, g.ID, "goal", g.ID, events.EventPayload{
		"title":      g.Title,
		"start_date": g.StartDate,
		"end_date":   g.EndDate,
	}); err != nil {
		return CreateGoalResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return CreateGoalResult{}, err
	}

	res := CreateGoalResult{Goal: g}
	tasks, err := e.Synthesize(ctx, g)
	if err != nil {
		e.log().Error("goal stored without tasks", zap.String("goal_id", g.ID), zap.Error(err))
		res.SynthesisErr = err
		return res, nil
	}
	res.Tasks = tasks
	res.Goal.Tasks = taskIDs(tasks)
	return res, nil
}

// GetGoal returns the goal and its tasks ordered by due date.
func (e Engine) GetGoal(ctx context.Context, goalID string) (domain.Goal, []domain.Task, error) {
	g, err := e.Repo.GetGoal(ctx, goalID)
	if err != nil {
		return domain.Goal{}, nil, goalErr(goalID, err)
	}
	tasks, err := e.Repo.ListTasksByGoal(ctx, goalID)
	if err != nil {
		return domain.Goal{}, nil, err
	}
	return g, tasks, nil
}

func (e Engine) ListGoals(ctx context.Context) ([]domain.Goal, error) {
	return e.Repo.ListGoals(ctx)
}

// UpdateGoal applies patch to the goal's own fields. The task list is left
// alone; callers regenerate when the schedule should follow the new values.
func (e Engine) UpdateGoal(ctx context.Context, goalID string, patch GoalPatch) (domain.Goal, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Goal{}, err
	}
	defer tx.Rollback()

	g, err := e.Repo.GetGoalTx(ctx, tx, goalID)
	if err != nil {
		return domain.Goal{}, goalErr(goalID, err)
	}
	changed := []string{}
	if patch.Title != nil {
		g.Title = strings.TrimSpace(*patch.Title)
		changed = append(changed, "title")
	}
	if patch.Description != nil {
		g.Description = *patch.Description
		changed = append(changed, "description")
	}
	if patch.CurrentLevel != nil {
		g.CurrentLevel = *patch.CurrentLevel
		changed = append(changed, "current_level")
	}
	if patch.FocusAreas != nil {
		g.FocusAreas = cleanFocusAreas(*patch.FocusAreas)
		changed = append(changed, "focus_areas")
	}
	if patch.DailyMinutes != nil {
		g.DailyMinutes = *patch.DailyMinutes
		changed = append(changed, "daily_minutes")
	}
	if patch.StartDate != nil {
		g.StartDate = *patch.StartDate
		changed = append(changed, "start_date")
	}
	if patch.EndDate != nil {
		g.EndDate = *patch.EndDate
		changed = append(changed, "end_date")
	}
	if err := e.normalizeGoal(&g); err != nil {
		return domain.Goal{}, err
	}
	if len(changed) == 0 {
		return g, nil
	}
	g.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateGoalTx(ctx, tx, g); err != nil {
		return domain.Goal{}, goalErr(goalID, err)
	}
	if err := e.Events.Append(ctx, tx, events.GoalUpdated, g.ID, "goal", g.ID, events.EventPayload{"fields": changed}); err != nil {
		return domain.Goal{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Goal{}, err
	}
	return g, nil
}

// DeleteGoalCascade removes the goal's tasks and then the goal, in one
// transaction. It is refused while the goal is being synthesized.
func (e Engine) DeleteGoalCascade(ctx context.Context, goalID string) error {
	release, err := e.leases().Acquire(goalID)
	if err != nil {
		return err
	}
	defer release()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetGoalTx(ctx, tx, goalID); err != nil {
		return goalErr(goalID, err)
	}
	removed, err := e.Repo.DeleteTasksByGoalTx(ctx, tx, goalID)
	if err != nil {
		return fmt.Errorf("delete tasks of goal %s: %w", goalID, err)
	}
	if err := e.Repo.DeleteGoalTx(ctx, tx, goalID); err != nil {
		return goalErr(goalID, err)
	}
	if err := e.Events.Append(ctx, tx, events.GoalDeleted, goalID, "goal", goalID, events.EventPayload{"tasks_removed": removed}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.log().Info("goal deleted", zap.String("goal_id", goalID), zap.Int64("tasks_removed", removed))
	return nil
}

// normalizeGoal validates g against the configured bounds and rewrites its
// dates as YYYY-MM-DD.
func (e Engine) normalizeGoal(g *domain.Goal) error {
	if g.Title == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	bounds := e.config().Goals
	if g.DailyMinutes < bounds.MinDailyMinutes || g.DailyMinutes > bounds.MaxDailyMinutes {
		return &ValidationError{
			Field:   "daily_minutes",
			Message: fmt.Sprintf("must be between %d and %d", bounds.MinDailyMinutes, bounds.MaxDailyMinutes),
		}
	}
	start, err := schedule.ParseDate(g.StartDate)
	if err != nil {
		return &ValidationError{Field: "start_date", Message: err.Error()}
	}
	end, err := schedule.ParseDate(g.EndDate)
	if err != nil {
		return &ValidationError{Field: "end_date", Message: err.Error()}
	}
	if end.Before(start) {
		return &schedule.InvalidRangeError{Start: start, End: end}
	}
	if days := schedule.Days(start, end); days > bounds.MaxDays {
		return &ValidationError{
			Field:   "end_date",
			Message: fmt.Sprintf("is %d days after start_date; at most %d allowed", days, bounds.MaxDays),
		}
	}
	g.StartDate = schedule.FormatDate(start)
	g.EndDate = schedule.FormatDate(end)
	if g.FocusAreas == nil {
		g.FocusAreas = []string{}
	}
	return nil
}

func cleanFocusAreas(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func goalErr(goalID string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return &GoalNotFoundError{GoalID: goalID}
	}
	return err
}

func taskIDs(tasks []domain.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
