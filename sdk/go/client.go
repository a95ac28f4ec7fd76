package planlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Planline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  30 * time.Second,
	}
}

type Goal struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	CurrentLevel string   `json:"current_level"`
	FocusAreas   []string `json:"focus_areas"`
	DailyMinutes int      `json:"daily_minutes"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	Tasks        []string `json:"tasks"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// Task represents the API task model.
type Task struct {
	ID               string   `json:"id"`
	GoalID           string   `json:"goal_id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	EstimatedMinutes int      `json:"estimated_minutes"`
	Status           string   `json:"status"`
	DueDate          string   `json:"due_date"`
	CompletedAt      *string  `json:"completed_at,omitempty"`
	SuccessCriteria  []string `json:"success_criteria"`
	Prerequisites    []string `json:"prerequisites"`
	Notes            string   `json:"notes"`
	DailyFocus       string   `json:"daily_focus"`
	Resources        []string `json:"resources"`
}

// GoalRequest is the body of CreateGoal.
type GoalRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	CurrentLevel string   `json:"current_level,omitempty"`
	FocusAreas   []string `json:"focus_areas,omitempty"`
	DailyMinutes int      `json:"daily_minutes"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
}

// CreatedGoal is the goal with its first plan. SynthesisError is set when
// the goal was stored without tasks.
type CreatedGoal struct {
	Goal      Goal   `json:"goal"`
	Tasks     []Task `json:"tasks"`
	Synthesis struct {
		Completed bool   `json:"completed"`
		Error     string `json:"error,omitempty"`
	} `json:"synthesis"`
}

type SweepResult struct {
	GoalID     string `json:"goal_id"`
	Success    bool   `json:"success"`
	TasksCount int    `json:"tasks_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// APIError wraps non-2xx responses. Code is the error envelope code when the
// body carried one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) CreateGoal(ctx context.Context, req GoalRequest) (CreatedGoal, error) {
	var resp CreatedGoal
	err := c.do(ctx, http.MethodPost, "goals", req, &resp)
	return resp, err
}

func (c *Client) ListGoals(ctx context.Context) ([]Goal, error) {
	var resp struct {
		Items []Goal `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "goals", nil, &resp)
	return resp.Items, err
}

// GetGoal returns the goal and its tasks ordered by due date.
func (c *Client) GetGoal(ctx context.Context, goalID string) (Goal, []Task, error) {
	var resp struct {
		Goal  Goal   `json:"goal"`
		Tasks []Task `json:"tasks"`
	}
	err := c.do(ctx, http.MethodGet, "goals/"+url.PathEscape(goalID), nil, &resp)
	return resp.Goal, resp.Tasks, err
}

// DeleteGoal removes the goal and every task it owns.
func (c *Client) DeleteGoal(ctx context.Context, goalID string) error {
	return c.do(ctx, http.MethodDelete, "goals/"+url.PathEscape(goalID), nil, nil)
}

// Regenerate replaces the goal's tasks with a fresh plan.
func (c *Client) Regenerate(ctx context.Context, goalID string) ([]Task, error) {
	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("goals/%s/regenerate", url.PathEscape(goalID)), nil, &resp)
	return resp.Tasks, err
}

func (c *Client) GoalTasks(ctx context.Context, goalID string) ([]Task, error) {
	var resp struct {
		Items []Task `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("goals/%s/tasks", url.PathEscape(goalID)), nil, &resp)
	return resp.Items, err
}

// SynthesizeMissing plans every goal that has no tasks.
func (c *Client) SynthesizeMissing(ctx context.Context) ([]SweepResult, error) {
	var resp struct {
		Results []SweepResult `json:"results"`
	}
	err := c.do(ctx, http.MethodPost, "goals/synthesize-missing", nil, &resp)
	return resp.Results, err
}

// SetTaskStatus sets a task to pending, completed or skipped.
func (c *Client) SetTaskStatus(ctx context.Context, taskID, status string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, "tasks/"+url.PathEscape(taskID), map[string]string{"status": status}, &resp)
	return resp, err
}

func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "tasks/"+url.PathEscape(taskID), nil, nil)
}

// TasksDue returns the tasks due on date (YYYY-MM-DD).
func (c *Client) TasksDue(ctx context.Context, date string) ([]Task, error) {
	var resp struct {
		Items []Task `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "schedule/"+url.PathEscape(date), nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return newAPIError(resp.StatusCode, b)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}
