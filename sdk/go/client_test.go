package planlinesdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGoalSendsBodyAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v0/goals", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req GoalRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Learn piano", req.Title)
		assert.Equal(t, 20, req.DailyMinutes)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"goal":      map[string]any{"id": "g1", "title": req.Title, "tasks": []string{"t1"}},
			"tasks":     []map[string]any{{"id": "t1", "goal_id": "g1", "due_date": "2024-01-01", "status": "pending"}},
			"synthesis": map[string]any{"completed": true},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.BearerToken = "tok"
	created, err := c.CreateGoal(context.Background(), GoalRequest{
		Title:        "Learn piano",
		DailyMinutes: 20,
		StartDate:    "2024-01-01",
		EndDate:      "2024-01-02",
	})
	require.NoError(t, err)
	assert.Equal(t, "g1", created.Goal.ID)
	assert.True(t, created.Synthesis.Completed)
	require.Len(t, created.Tasks, 1)
	assert.Equal(t, "2024-01-01", created.Tasks[0].DueDate)
}

func TestErrorEnvelopeIsDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"goal_not_found","message":"goal nope not found"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Regenerate(context.Background(), "nope")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "goal_not_found", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "goal nope not found")
}

func TestDeleteAndStatus(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPatch:
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "t1", "status": body["status"], "completed_at": "2024-01-01T10:00:00Z"})
		}
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	task, err := c.SetTaskStatus(context.Background(), "t1", "completed")
	require.NoError(t, err)
	assert.Equal(t, "completed", task.Status)
	require.NotNil(t, task.CompletedAt)
	require.NoError(t, c.DeleteGoal(context.Background(), "g1"))
	assert.Equal(t, []string{"PATCH /v0/tasks/t1", "DELETE /v0/goals/g1"}, calls)
}
