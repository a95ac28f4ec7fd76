package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"planline/internal/config"
	"planline/internal/db"
	"planline/internal/domain"
	"planline/internal/engine"
	"planline/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, auth AuthConfig) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default(), nil, nil)
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: auth})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return envelope.Error.Code
}

func createGoal(t *testing.T, srv *testServer, start, end string) CreateGoalResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/goals", map[string]any{
		"title":         "Learn piano",
		"focus_areas":   []string{"scales"},
		"daily_minutes": 30,
		"start_date":    start,
		"end_date":      end,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create goal status %d: %s", res.StatusCode, string(data))
	}
	var created CreateGoalResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal goal: %v", err)
	}
	return created
}

func TestGoalLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	created := createGoal(t, srv, "2024-01-01", "2024-01-03")
	if !created.Synthesis.Completed {
		t.Fatalf("expected synthesis to complete: %+v", created.Synthesis)
	}
	if len(created.Tasks) != 2 || len(created.Goal.Tasks) != 2 {
		t.Fatalf("expected 2 linked tasks, got %d tasks / %d refs", len(created.Tasks), len(created.Goal.Tasks))
	}
	goalID := created.Goal.ID

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/goals/"+goalID, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get goal status %d: %s", res.StatusCode, string(data))
	}
	var detail GoalDetailResponse
	_ = json.Unmarshal(data, &detail)
	if detail.Tasks[0].DueDate != "2024-01-01" || detail.Tasks[1].DueDate != "2024-01-02" {
		t.Fatalf("unexpected due dates: %s, %s", detail.Tasks[0].DueDate, detail.Tasks[1].DueDate)
	}
	if detail.Progress[domain.TaskPending] != 2 {
		t.Fatalf("expected 2 pending tasks, got %v", detail.Progress)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/goals/"+goalID+"/regenerate", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("regenerate status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/goals/"+goalID+"/tasks", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list tasks status %d: %s", res.StatusCode, string(data))
	}
	var tasks taskList
	_ = json.Unmarshal(data, &tasks)
	if len(tasks.Items) != 2 {
		t.Fatalf("expected 2 tasks after regenerate, got %d", len(tasks.Items))
	}

	title := "Learn jazz piano"
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/goals/"+goalID, map[string]any{"title": title}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update goal status %d: %s", res.StatusCode, string(data))
	}
	var updated domain.Goal
	_ = json.Unmarshal(data, &updated)
	if updated.Title != title {
		t.Fatalf("expected title %q, got %q", title, updated.Title)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/goals/"+goalID, nil, nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/goals/"+goalID, nil, nil)
	if res.StatusCode != http.StatusNotFound || errorCode(t, data) != "goal_not_found" {
		t.Fatalf("expected goal_not_found, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/schedule/2024-01-01", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("schedule status %d: %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &tasks)
	if len(tasks.Items) != 0 {
		t.Fatalf("expected no tasks after cascade delete, got %d", len(tasks.Items))
	}
}

func TestTaskStatusEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()
	created := createGoal(t, srv, "2024-01-01", "2024-01-01")
	taskID := created.Tasks[0].ID

	res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v0/tasks/"+taskID, map[string]any{"status": "completed"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d: %s", res.StatusCode, string(data))
	}
	var task domain.Task
	_ = json.Unmarshal(data, &task)
	if task.Status != domain.TaskCompleted || task.CompletedAt == nil {
		t.Fatalf("expected completed task with completed_at, got %+v", task)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/tasks/"+taskID, map[string]any{"status": "pending"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("pending status %d: %s", res.StatusCode, string(data))
	}
	task = domain.Task{}
	_ = json.Unmarshal(data, &task)
	if task.CompletedAt != nil {
		t.Fatalf("expected completed_at cleared, got %v", *task.CompletedAt)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/tasks/"+taskID, map[string]any{"status": "done"}, nil)
	if res.StatusCode != http.StatusBadRequest || errorCode(t, data) != "invalid_status" {
		t.Fatalf("expected invalid_status, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/tasks/missing", map[string]any{"status": "skipped"}, nil)
	if res.StatusCode != http.StatusNotFound || errorCode(t, data) != "task_not_found" {
		t.Fatalf("expected task_not_found, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/schedule/recent?limit=5", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("recent status %d: %s", res.StatusCode, string(data))
	}
	var recent taskList
	_ = json.Unmarshal(data, &recent)
	if len(recent.Items) != 1 || recent.Items[0].ID != taskID {
		t.Fatalf("unexpected recent tasks: %+v", recent.Items)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/tasks/"+taskID, nil, nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete task status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/goals/"+created.Goal.ID, nil, nil)
	var detail GoalDetailResponse
	_ = json.Unmarshal(data, &detail)
	if len(detail.Goal.Tasks) != 0 || len(detail.Tasks) != 0 {
		t.Fatalf("expected task unlinked, got %+v", detail)
	}
	if detail.Progress[domain.TaskCompleted] != 0 || detail.Progress[domain.TaskPending] != 0 {
		t.Fatalf("expected empty progress, got %v", detail.Progress)
	}
}

func TestCreateGoalValidation(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/goals", map[string]any{
		"title": "Backwards", "daily_minutes": 30, "start_date": "2024-01-05", "end_date": "2024-01-01",
	}, nil)
	if res.StatusCode != http.StatusBadRequest || errorCode(t, data) != "invalid_range" {
		t.Fatalf("expected invalid_range, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/goals", map[string]any{
		"title": "Too long", "daily_minutes": 500, "start_date": "2024-01-01", "end_date": "2024-01-02",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for daily_minutes, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/schedule/someday", nil, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d %s", res.StatusCode, string(data))
	}
}

func TestSynthesizeMissingEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	created := createGoal(t, srv, "2024-01-01", "2024-01-04")
	if err := srv.Engine.DeleteTask(context.Background(), created.Tasks[0].ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/goals/synthesize-missing", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("sweep status %d: %s", res.StatusCode, string(data))
	}
	var sweep SweepResponse
	_ = json.Unmarshal(data, &sweep)
	if len(sweep.Results) != 0 {
		t.Fatalf("goal with tasks should be skipped, got %+v", sweep.Results)
	}

	for _, task := range created.Tasks[1:] {
		if err := srv.Engine.DeleteTask(context.Background(), task.ID); err != nil {
			t.Fatalf("delete task: %v", err)
		}
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/goals/synthesize-missing", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("sweep status %d: %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &sweep)
	if sweep.Succeeded != 1 || sweep.Results[0].GoalID != created.Goal.ID || sweep.Results[0].TasksCount != 3 {
		t.Fatalf("unexpected sweep result: %+v", sweep)
	}
}

func TestBearerAuth(t *testing.T) {
	secret := "test-secret"
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: secret})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be open, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/goals", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/goals", nil, map[string]string{"Authorization": "Bearer nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.StatusCode)
	}
	token, err := SignToken(secret, "tester", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/goals", nil, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d %s", res.StatusCode, string(data))
	}
	expired, _ := SignToken(secret, "tester", time.Minute, time.Now().Add(-time.Hour))
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/goals", nil, map[string]string{"Authorization": "Bearer " + expired})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
	if !bytes.Contains(data, []byte("bearerAuth")) || !bytes.Contains(data, []byte("/v0/goals/{goal_id}/regenerate")) {
		t.Fatalf("openapi document missing expected entries")
	}
}

func TestWebhookDelivery(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	var mu sync.Mutex
	var received []webhookEvent
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&evt)
		if r.Header.Get("X-Planline-Secret") != "s3cret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		mu.Lock()
		received = append(received, evt)
		mu.Unlock()
	}))
	defer hook.Close()

	createGoal(t, srv, "2024-01-01", "2024-01-02")
	d := NewWebhookDispatcher(srv.Engine.Repo, []config.WebhookConfig{{
		URL:    hook.URL,
		Events: []string{"tasks.synthesized"},
		Secret: "s3cret",
	}}, nil)
	ctx := context.Background()
	d.DispatchAll(ctx)
	if len(received) != 0 {
		t.Fatalf("events before start should be skipped, got %d", len(received))
	}

	created := createGoal(t, srv, "2024-02-01", "2024-02-03")
	d.DispatchAll(ctx)
	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(received))
	}
	if received[0].Type != "tasks.synthesized" || received[0].GoalID != created.Goal.ID {
		t.Fatalf("unexpected delivery: %+v", received[0])
	}
}
