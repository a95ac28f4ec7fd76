package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrSynthesisInProgress rejects a second synthesis, or a delete, while the
	// goal is being regenerated.
	ErrSynthesisInProgress = errors.New("synthesis already in progress for goal")
	ErrInvalidGoal         = errors.New("invalid goal")
)

// ValidationError describes a rejected goal field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidGoal }

type GoalNotFoundError struct {
	GoalID string
}

func (e *GoalNotFoundError) Error() string {
	return fmt.Sprintf("goal %s not found", e.GoalID)
}

type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

type InvalidStatusError struct {
	Status string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid task status %q: want pending, completed or skipped", e.Status)
}

// SynthesisFailedError is a storage failure while clearing, inserting or
// re-linking a goal's tasks.
type SynthesisFailedError struct {
	GoalID string
	Stage  string
	Err    error
}

func (e *SynthesisFailedError) Error() string {
	return fmt.Sprintf("synthesis for goal %s failed during %s: %v", e.GoalID, e.Stage, e.Err)
}

func (e *SynthesisFailedError) Unwrap() error { return e.Err }
