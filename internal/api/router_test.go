package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todohub/internal/graph"
	"todohub/internal/msauth"
)

// fakeTasks is a canned TaskService for router tests.
type fakeTasks struct {
	tasks []graph.Task
	err   error
}

func (s *fakeTasks) DefaultListID(ctx context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "list-1", nil
}

func (s *fakeTasks) ListTasks(ctx context.Context, listID string, includeCompleted bool) ([]graph.Task, error) {
	if includeCompleted {
		return s.tasks, nil
	}
	var active []graph.Task
	for _, task := range s.tasks {
		if !task.Completed() {
			active = append(active, task)
		}
	}
	return active, nil
}

func (s *fakeTasks) SearchTasks(ctx context.Context, listID, query string) ([]graph.Task, error) {
	return s.tasks, nil
}

func (s *fakeTasks) TasksDueBetween(ctx context.Context, listID string, from, to time.Time) ([]graph.Task, error) {
	return s.tasks, nil
}

func (s *fakeTasks) GetTask(ctx context.Context, listID, taskID string) (*graph.Task, error) {
	for i := range s.tasks {
		if s.tasks[i].ID == taskID {
			return &s.tasks[i], nil
		}
	}
	return nil, graph.ErrTaskNotFound
}

func (s *fakeTasks) CreateTask(ctx context.Context, listID string, task *graph.Task) (*graph.Task, error) {
	created := *task
	created.ID = "created-1"
	created.Status = graph.StatusNotStarted
	s.tasks = append(s.tasks, created)
	return &created, nil
}

func (s *fakeTasks) UpdateTask(ctx context.Context, listID, taskID string, fields *graph.TaskFields) (*graph.Task, error) {
	return nil, graph.ErrTaskNotFound
}

func (s *fakeTasks) CompleteTask(ctx context.Context, listID, taskID string) (*graph.Task, error) {
	for _, task := range s.tasks {
		if task.ID == taskID {
			done := task
			done.Status = graph.StatusCompleted
			return &done, nil
		}
	}
	return nil, graph.ErrTaskNotFound
}

func (s *fakeTasks) DeleteTask(ctx context.Context, listID, taskID string) error {
	for _, task := range s.tasks {
		if task.ID == taskID {
			return nil
		}
	}
	return graph.ErrTaskNotFound
}

func newTestRouter(tasks *fakeTasks) http.Handler {
	return NewRouter(RouterConfig{
		Tasks:  tasks,
		APIKey: "test-key",
		Logger: slog.Default(),
	})
}

func doRequest(t *testing.T, router http.Handler, method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		req.Header.Set("X-API-Key", "test-key")
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestHealthNeedsNoAuth(t *testing.T) {
	router := newTestRouter(&fakeTasks{})

	resp := doRequest(t, router, http.MethodGet, "/health", "", false)

	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestMissingAPIKeyIsRejected(t *testing.T) {
	router := newTestRouter(&fakeTasks{})

	resp := doRequest(t, router, http.MethodGet, "/api/todos", "", false)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestListTodos(t *testing.T) {
	done := graph.Task{ID: "t2", Title: "Call Bob", Status: graph.StatusCompleted}
	router := newTestRouter(&fakeTasks{tasks: []graph.Task{
		{ID: "t1", Title: "Buy milk", Status: graph.StatusNotStarted},
		done,
	}})

	resp := doRequest(t, router, http.MethodGet, "/api/todos", "", true)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Todos []struct {
			ID          string `json:"id"`
			IsCompleted bool   `json:"isCompleted"`
		} `json:"todos"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "t1", body.Todos[0].ID)

	resp = doRequest(t, router, http.MethodGet, "/api/todos?filter=all", "", true)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}

func TestCreateTodo(t *testing.T) {
	tasks := &fakeTasks{}
	router := newTestRouter(tasks)

	resp := doRequest(t, router, http.MethodPost, "/api/todos",
		`{"title": "Buy milk", "due": "2026-09-04T18:00:00Z"}`, true)

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Len(t, tasks.tasks, 1)
	assert.Equal(t, "Buy milk", tasks.tasks[0].Title)
	require.NotNil(t, tasks.tasks[0].DueDateTime)
}

func TestCreateTodoRejectsMissingTitle(t *testing.T) {
	router := newTestRouter(&fakeTasks{})

	resp := doRequest(t, router, http.MethodPost, "/api/todos", `{"due": "2026-09-04T18:00:00Z"}`, true)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateTodoRejectsBadTimestamp(t *testing.T) {
	router := newTestRouter(&fakeTasks{})

	resp := doRequest(t, router, http.MethodPost, "/api/todos", `{"title": "x", "due": "tomorrow"}`, true)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateTodoRejectsWrongContentType(t *testing.T) {
	router := newTestRouter(&fakeTasks{})

	req := httptest.NewRequest(http.MethodPost, "/api/todos", strings.NewReader(`{"title": "x"}`))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-API-Key", "test-key")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, recorder.Code)
}

func TestCompleteTodo(t *testing.T) {
	router := newTestRouter(&fakeTasks{tasks: []graph.Task{
		{ID: "t1", Title: "Buy milk", Status: graph.StatusNotStarted},
	}})

	resp := doRequest(t, router, http.MethodPost, "/api/todos/t1/complete", "", true)

	require.Equal(t, http.StatusOK, resp.Code)
	var todo struct {
		IsCompleted bool `json:"isCompleted"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &todo))
	assert.True(t, todo.IsCompleted)
}

func TestCompleteUnknownTodoReturns404(t *testing.T) {
	router := newTestRouter(&fakeTasks{})

	resp := doRequest(t, router, http.MethodPost, "/api/todos/missing/complete", "", true)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteTodo(t *testing.T) {
	router := newTestRouter(&fakeTasks{tasks: []graph.Task{
		{ID: "t1", Title: "Buy milk"},
	}})

	resp := doRequest(t, router, http.MethodDelete, "/api/todos/t1", "", true)

	assert.Equal(t, http.StatusNoContent, resp.Code)
}

func TestGetTodo(t *testing.T) {
	router := newTestRouter(&fakeTasks{tasks: []graph.Task{
		{ID: "t1", Title: "Buy milk", Body: graph.TextBody("2 liters")},
	}})

	resp := doRequest(t, router, http.MethodGet, "/api/todos/t1", "", true)

	require.Equal(t, http.StatusOK, resp.Code)
	var todo struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &todo))
	assert.Equal(t, "Buy milk", todo.Title)
	assert.Equal(t, "2 liters", todo.Body)
}

func TestGetTodoTruncatesBodyOnRuneBoundary(t *testing.T) {
	router := newTestRouter(&fakeTasks{tasks: []graph.Task{
		{ID: "t1", Title: "Shopping", Body: graph.TextBody(strings.Repeat("牛", 250))},
	}})

	resp := doRequest(t, router, http.MethodGet, "/api/todos/t1", "", true)

	require.Equal(t, http.StatusOK, resp.Code)
	var todo struct {
		Body string `json:"body"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &todo))
	assert.True(t, utf8.ValidString(todo.Body))
	assert.Equal(t, strings.Repeat("牛", 200)+"…", todo.Body)
}

func TestStats(t *testing.T) {
	router := newTestRouter(&fakeTasks{tasks: []graph.Task{
		{ID: "t1", Title: "Buy milk", Status: graph.StatusNotStarted},
		{ID: "t2", Title: "Call Bob", Status: graph.StatusCompleted},
		{ID: "t3", Title: "Pay rent", Status: graph.StatusCompleted},
	}})

	resp := doRequest(t, router, http.MethodGet, "/api/stats", "", true)
	require.Equal(t, http.StatusOK, resp.Code)

	var stats struct {
		Total          int     `json:"total"`
		Completed      int     `json:"completed"`
		Pending        int     `json:"pending"`
		CompletionRate float64 `json:"completion_rate"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Pending)
	assert.InDelta(t, 0.6667, stats.CompletionRate, 0.001)
}

func TestAuthExpiredMapsTo503(t *testing.T) {
	router := newTestRouter(&fakeTasks{err: msauth.ErrReauthorizationRequired})

	resp := doRequest(t, router, http.MethodGet, "/api/todos", "", true)

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Contains(t, resp.Body.String(), "AUTH_REQUIRED")
}
