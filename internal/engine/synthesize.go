package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"planline/internal/domain"
	"planline/internal/events"
	"planline/internal/provider"
	"planline/internal/repo"
	"planline/internal/schedule"
	"planline/internal/synth"
)

const (
	SourceProvider = "provider"
	SourceMock     = "mock"
)

// SweepResult reports the outcome of synthesizing one goal in a sweep.
type SweepResult struct {
	GoalID     string `json:"goal_id"`
	Success    bool   `json:"success"`
	TasksCount int    `json:"tasks_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Synthesize replaces every task of g with a freshly generated schedule and
// re-links g's task list to exactly the new tasks.
func (e Engine) Synthesize(ctx context.Context, g domain.Goal) ([]domain.Task, error) {
	release, err := e.leases().Acquire(g.ID)
	if err != nil {
		return nil, err
	}
	defer release()
	return e.synthesizeHeld(ctx, g)
}

// Regenerate loads the goal and synthesizes it again.
func (e Engine) Regenerate(ctx context.Context, goalID string) ([]domain.Task, error) {
	release, err := e.leases().Acquire(goalID)
	if err != nil {
		return nil, err
	}
	defer release()
	g, err := e.Repo.GetGoal(ctx, goalID)
	if err != nil {
		return nil, goalErr(goalID, err)
	}
	return e.synthesizeHeld(ctx, g)
}

// synthesizeHeld runs with the goal's lease held. No transaction is open
// while the provider is consulted.
func (e Engine) synthesizeHeld(ctx context.Context, g domain.Goal) ([]domain.Task, error) {
	days, err := scheduleFor(g)
	if err != nil {
		return nil, err
	}
	logger := e.log().With(zap.String("goal_id", g.ID))

	if err := e.clearTasks(ctx, g.ID); err != nil {
		return nil, err
	}

	templates, source, reason := e.templatesFor(ctx, g, days)
	if source == SourceMock && reason != "" {
		logger.Warn("falling back to built-in plan", zap.String("reason", reason))
	}
	tasks := synth.Materialize(g, days, templates, e.newID, e.stamp())

	// The old tasks are already gone; a caller that gave up still gets a plan.
	if err := e.linkTasks(context.WithoutCancel(ctx), g.ID, tasks, source, reason); err != nil {
		return nil, err
	}
	logger.Info("tasks synthesized", zap.String("source", source), zap.Int("count", len(tasks)))
	return tasks, nil
}

// scheduleFor expands the goal's range. A same-day goal still gets its start day.
func scheduleFor(g domain.Goal) ([]time.Time, error) {
	start, err := schedule.ParseDate(g.StartDate)
	if err != nil {
		return nil, &ValidationError{Field: "start_date", Message: err.Error()}
	}
	end, err := schedule.ParseDate(g.EndDate)
	if err != nil {
		return nil, &ValidationError{Field: "end_date", Message: err.Error()}
	}
	days, err := schedule.Expand(start, end)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		days = []time.Time{schedule.Day(start)}
	}
	return days, nil
}

// clearTasks deletes the goal's tasks and empties its task list.
func (e Engine) clearTasks(ctx context.Context, goalID string) error {
	fail := func(err error) error {
		if errors.Is(err, repo.ErrNotFound) {
			return &GoalNotFoundError{GoalID: goalID}
		}
		return &SynthesisFailedError{GoalID: goalID, Stage: "clear", Err: err}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return fail(err)
	}
	defer tx.Rollback()
	removed, err := e.Repo.DeleteTasksByGoalTx(ctx, tx, goalID)
	if err != nil {
		return fail(err)
	}
	if err := e.Repo.SetGoalTasksTx(ctx, tx, goalID, []string{}, e.stamp()); err != nil {
		return fail(err)
	}
	if removed > 0 {
		if err := e.Events.Append(ctx, tx, events.TasksCleared, goalID, "goal", goalID, events.EventPayload{"removed": removed}); err != nil {
			return fail(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fail(err)
	}
	return nil
}

// linkTasks inserts the batch and points the goal at exactly its ids. On
// failure the goal keeps the empty list written by clearTasks.
func (e Engine) linkTasks(ctx context.Context, goalID string, tasks []domain.Task, source, reason string) error {
	fail := func(err error) error {
		return &SynthesisFailedError{GoalID: goalID, Stage: "insert", Err: err}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return fail(err)
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTasksTx(ctx, tx, tasks); err != nil {
		return fail(err)
	}
	if err := e.Repo.SetGoalTasksTx(ctx, tx, goalID, taskIDs(tasks), e.stamp()); err != nil {
		return fail(err)
	}
	payload := events.EventPayload{"source": source, "count": len(tasks)}
	if reason != "" {
		payload["fallback_reason"] = reason
	}
	if err := e.Events.Append(ctx, tx, events.TasksSynthesized, goalID, "goal", goalID, payload); err != nil {
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return fail(err)
	}
	return nil
}

// templatesFor asks the provider for a plan and falls back to mock templates
// when it is disabled, fails, times out or returns something unusable.
func (e Engine) templatesFor(ctx context.Context, g domain.Goal, days []time.Time) ([]domain.TaskTemplate, string, string) {
	mock := func(reason string) ([]domain.TaskTemplate, string, string) {
		return synth.MockPlan(g, len(days)), SourceMock, reason
	}
	if !e.Provider.Enabled() {
		return mock("")
	}
	if timeout := e.config().Provider.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	raw, err := e.Provider.Generate(ctx, provider.PromptContext{
		Title:        g.Title,
		Description:  g.Description,
		CurrentLevel: g.CurrentLevel,
		FocusAreas:   g.FocusAreas,
		DailyMinutes: g.DailyMinutes,
		Days:         len(days),
		StartDate:    schedule.FormatDate(days[0]),
		EndDate:      schedule.FormatDate(days[len(days)-1].AddDate(0, 0, 1)),
	})
	if err != nil {
		return mock(err.Error())
	}
	templates, err := synth.Parse(raw, synth.DefaultsFor(g))
	if err != nil {
		return mock(err.Error())
	}
	return templates, SourceProvider, ""
}

// SynthesizeMissing synthesizes every goal whose task list is empty. Goals run
// concurrently up to sweep.concurrency; each failure is reported in its own
// result and never stops the sweep.
func (e Engine) SynthesizeMissing(ctx context.Context) ([]SweepResult, error) {
	goals, err := e.Repo.ListGoalsWithoutTasks(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]SweepResult, len(goals))
	var group errgroup.Group
	group.SetLimit(max(1, e.config().Sweep.Concurrency))
	for i, g := range goals {
		group.Go(func() error {
			res := SweepResult{GoalID: g.ID}
			tasks, err := e.Synthesize(ctx, g)
			if err != nil {
				res.Error = err.Error()
				e.log().Warn("sweep: synthesis failed", zap.String("goal_id", g.ID), zap.Error(err))
			} else {
				res.Success = true
				res.TasksCount = len(tasks)
			}
			results[i] = res
			return nil
		})
	}
	_ = group.Wait()
	return results, nil
}
