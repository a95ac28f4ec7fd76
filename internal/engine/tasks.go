package engine

import (
	"context"
	"errors"
	"fmt"

	"planline/internal/domain"
	"planline/internal/events"
	"planline/internal/repo"
)

// UpdateTaskStatus sets one task's status. completed stamps completed_at;
// any other status clears it. No other task is read or written.
func (e Engine) UpdateTaskStatus(ctx context.Context, taskID, status string) (domain.Task, error) {
	if !domain.ValidTaskStatus(status) {
		return domain.Task{}, &InvalidStatusError{Status: status}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, taskErr(taskID, err)
	}
	now := e.stamp()
	from := t.Status
	t.Status = status
	t.UpdatedAt = now
	t.CompletedAt = nil
	if status == domain.TaskCompleted {
		t.CompletedAt = &now
	}
	if err := e.Repo.UpdateTaskStatusTx(ctx, tx, t.ID, t.Status, t.CompletedAt, t.UpdatedAt); err != nil {
		return domain.Task{}, taskErr(taskID, err)
	}
	if err := e.Events.Append(ctx, tx, events.TaskStatus, t.GoalID, "task", t.ID, events.EventPayload{"from": from, "to": status}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// DeleteTask removes one task and drops its id from the owning goal's list.
func (e Engine) DeleteTask(ctx context.Context, taskID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return taskErr(taskID, err)
	}
	g, err := e.Repo.GetGoalTx(ctx, tx, t.GoalID)
	if err != nil {
		return fmt.Errorf("owning goal of task %s: %w", taskID, err)
	}
	if err := e.Repo.DeleteTaskTx(ctx, tx, taskID); err != nil {
		return taskErr(taskID, err)
	}
	remaining := make([]string, 0, len(g.Tasks))
	for _, id := range g.Tasks {
		if id != taskID {
			remaining = append(remaining, id)
		}
	}
	if err := e.Repo.SetGoalTasksTx(ctx, tx, g.ID, remaining, e.stamp()); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.TaskDeleted, g.ID, "task", taskID, events.EventPayload{"due_date": t.DueDate}); err != nil {
		return err
	}
	return tx.Commit()
}

// ListGoalTasks returns the goal's tasks ordered by due date.
func (e Engine) ListGoalTasks(ctx context.Context, goalID string) ([]domain.Task, error) {
	if _, err := e.Repo.GetGoal(ctx, goalID); err != nil {
		return nil, goalErr(goalID, err)
	}
	return e.Repo.ListTasksByGoal(ctx, goalID)
}

func taskErr(taskID string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return &TaskNotFoundError{TaskID: taskID}
	}
	return err
}
