package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"planline/internal/domain"
	"planline/internal/engine"
	"planline/internal/schedule"
)

type goalPath struct {
	GoalID string `path:"goal_id"`
}

type taskPath struct {
	TaskID string `path:"task_id"`
}

var commonErrors = []int{
	http.StatusBadRequest,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusInternalServerError,
}

func registerGoals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-goal",
		Method:        http.MethodPost,
		Path:          "/goals",
		Summary:       "Create goal and synthesize its tasks",
		Description:   "The goal is stored even when task synthesis fails; synthesis.completed reports the outcome.",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateGoalRequest `json:"body"`
	}) (*struct {
		Body CreateGoalResponse `json:"body"`
	}, error) {
		res, err := e.CreateGoal(ctx, engine.GoalInput{
			Title:        input.Body.Title,
			Description:  input.Body.Description,
			CurrentLevel: input.Body.CurrentLevel,
			FocusAreas:   input.Body.FocusAreas,
			DailyMinutes: input.Body.DailyMinutes,
			StartDate:    input.Body.StartDate,
			EndDate:      input.Body.EndDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CreateGoalResponse `json:"body"`
		}{Body: createGoalResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-goals",
		Method:      http.MethodGet,
		Path:        "/goals",
		Summary:     "List goals, newest first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body goalList `json:"body"`
	}, error) {
		goals, err := e.ListGoals(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body goalList `json:"body"`
		}{Body: goalList{Items: nonNilSlice(goals)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-goal",
		Method:      http.MethodGet,
		Path:        "/goals/{goal_id}",
		Summary:     "Get goal with its tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *goalPath) (*struct {
		Body GoalDetailResponse `json:"body"`
	}, error) {
		g, tasks, err := e.GetGoal(ctx, input.GoalID)
		if err != nil {
			return nil, handleError(err)
		}
		progress, err := e.Repo.CountTasksByStatus(ctx, g.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GoalDetailResponse `json:"body"`
		}{Body: GoalDetailResponse{Goal: g, Tasks: nonNilSlice(tasks), Progress: progress}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-goal",
		Method:      http.MethodPatch,
		Path:        "/goals/{goal_id}",
		Summary:     "Update goal fields",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		GoalID string            `path:"goal_id"`
		Body   UpdateGoalRequest `json:"body"`
	}) (*struct {
		Body domain.Goal `json:"body"`
	}, error) {
		g, err := e.UpdateGoal(ctx, input.GoalID, engine.GoalPatch{
			Title:        input.Body.Title,
			Description:  input.Body.Description,
			CurrentLevel: input.Body.CurrentLevel,
			FocusAreas:   input.Body.FocusAreas,
			DailyMinutes: input.Body.DailyMinutes,
			StartDate:    input.Body.StartDate,
			EndDate:      input.Body.EndDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Goal `json:"body"`
		}{Body: g}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-goal",
		Method:        http.MethodDelete,
		Path:          "/goals/{goal_id}",
		Summary:       "Delete goal and all of its tasks",
		DefaultStatus: http.StatusNoContent,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *goalPath) (*struct{}, error) {
		if err := e.DeleteGoalCascade(ctx, input.GoalID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "regenerate-goal",
		Method:      http.MethodPost,
		Path:        "/goals/{goal_id}/regenerate",
		Summary:     "Replace the goal's tasks with a freshly synthesized schedule",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *goalPath) (*struct {
		Body RegenerateResponse `json:"body"`
	}, error) {
		tasks, err := e.Regenerate(ctx, input.GoalID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RegenerateResponse `json:"body"`
		}{Body: RegenerateResponse{GoalID: input.GoalID, Tasks: nonNilSlice(tasks)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-goal-tasks",
		Method:      http.MethodGet,
		Path:        "/goals/{goal_id}/tasks",
		Summary:     "List the goal's tasks by due date",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *goalPath) (*struct {
		Body taskList `json:"body"`
	}, error) {
		tasks, err := e.ListGoalTasks(ctx, input.GoalID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body taskList `json:"body"`
		}{Body: taskList{Items: nonNilSlice(tasks)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "synthesize-missing",
		Method:      http.MethodPost,
		Path:        "/goals/synthesize-missing",
		Summary:     "Synthesize tasks for every goal that has none",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body SweepResponse `json:"body"`
	}, error) {
		results, err := e.SynthesizeMissing(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SweepResponse `json:"body"`
		}{Body: sweepResponse(results)}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "update-task-status",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Set task status",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string                  `path:"task_id"`
		Body   UpdateTaskStatusRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.UpdateTaskStatus(ctx, input.TaskID, input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{task_id}",
		Summary:       "Delete one task and unlink it from its goal",
		DefaultStatus: http.StatusNoContent,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *taskPath) (*struct{}, error) {
		if err := e.DeleteTask(ctx, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerSchedule(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "recent-tasks",
		Method:      http.MethodGet,
		Path:        "/schedule/recent",
		Summary:     "Most recently updated tasks",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"10"`
	}) (*struct {
		Body taskList `json:"body"`
	}, error) {
		tasks, err := e.Repo.RecentTasks(ctx, normalizeLimit(input.Limit, 10, 100))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body taskList `json:"body"`
		}{Body: taskList{Items: nonNilSlice(tasks)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "tasks-due",
		Method:      http.MethodGet,
		Path:        "/schedule/{date}",
		Summary:     "Tasks due on a day",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Date string `path:"date" doc:"YYYY-MM-DD"`
	}) (*struct {
		Body taskList `json:"body"`
	}, error) {
		day, err := schedule.ParseDate(input.Date)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"date": input.Date})
		}
		tasks, err := e.Repo.ListTasksDue(ctx, schedule.FormatDate(day))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body taskList `json:"body"`
		}{Body: taskList{Items: nonNilSlice(tasks)}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
	}, func(ctx context.Context, input *struct {
		GoalID string `query:"goal_id"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body eventList `json:"body"`
	}, error) {
		items, err := e.Repo.ListEvents(ctx, input.GoalID, normalizeLimit(input.Limit, 50, 200))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body eventList `json:"body"`
		}{Body: eventList{Items: nonNilSlice(items)}}, nil
	})
}
