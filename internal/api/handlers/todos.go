package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"todohub/internal/graph"
	"todohub/internal/msauth"
	"todohub/internal/ops"
)

// maxBodyChars bounds the body text in list responses; the consumers are
// small displays.
const maxBodyChars = 200

// TodosHandler handles task-related requests
type TodosHandler struct {
	tasks  ops.TaskService
	logger *slog.Logger
}

// NewTodosHandler creates a new todos handler
func NewTodosHandler(tasks ops.TaskService, logger *slog.Logger) *TodosHandler {
	return &TodosHandler{
		tasks:  tasks,
		logger: logger,
	}
}

// CreateTodoRequest is the body of POST /api/todos
type CreateTodoRequest struct {
	Title string `json:"title" binding:"required"`
	Due   string `json:"due"`
	Body  string `json:"body"`
}

// TodoResponse is the compact task shape for display devices
type TodoResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Due         *time.Time `json:"due,omitempty"`
	IsCompleted bool       `json:"isCompleted"`
	Body        string     `json:"body,omitempty"`
}

// ListTodos returns tasks from the default list
// GET /api/todos?filter=all|active
func (h *TodosHandler) ListTodos(c *gin.Context) {
	ctx := c.Request.Context()

	listID, err := h.tasks.DefaultListID(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	includeCompleted := c.Query("filter") == "all"
	tasks, err := h.tasks.ListTasks(ctx, listID, includeCompleted)
	if err != nil {
		h.respondError(c, err)
		return
	}

	todos := make([]TodoResponse, 0, len(tasks))
	for i := range tasks {
		todos = append(todos, todoResponse(&tasks[i]))
	}

	c.JSON(http.StatusOK, gin.H{"todos": todos, "count": len(todos)})
}

// GetTodo returns a single task
// GET /api/todos/:id
func (h *TodosHandler) GetTodo(c *gin.Context) {
	ctx := c.Request.Context()

	listID, err := h.tasks.DefaultListID(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	task, err := h.tasks.GetTask(ctx, listID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, todoResponse(task))
}

// CreateTodo creates a task in the default list
// POST /api/todos
func (h *TodosHandler) CreateTodo(c *gin.Context) {
	var req CreateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "title is required",
			"code":  "INVALID_REQUEST",
		})
		return
	}

	task := &graph.Task{Title: req.Title}
	if req.Body != "" {
		task.Body = graph.TextBody(req.Body)
	}
	if req.Due != "" {
		due, err := time.Parse(time.RFC3339, req.Due)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "due must be an RFC 3339 timestamp",
				"code":  "INVALID_REQUEST",
			})
			return
		}
		task.DueDateTime = graph.NewDateTimeTimeZone(due)
	}

	ctx := c.Request.Context()
	listID, err := h.tasks.DefaultListID(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	created, err := h.tasks.CreateTask(ctx, listID, task)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, todoResponse(created))
}

// CompleteTodo marks a task as completed
// POST /api/todos/:id/complete
func (h *TodosHandler) CompleteTodo(c *gin.Context) {
	ctx := c.Request.Context()

	listID, err := h.tasks.DefaultListID(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	completed, err := h.tasks.CompleteTask(ctx, listID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, todoResponse(completed))
}

// DeleteTodo removes a task
// DELETE /api/todos/:id
func (h *TodosHandler) DeleteTodo(c *gin.Context) {
	ctx := c.Request.Context()

	listID, err := h.tasks.DefaultListID(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.tasks.DeleteTask(ctx, listID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// respondError maps task client errors onto HTTP statuses
func (h *TodosHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, graph.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Task not found",
			"code":  "NOT_FOUND",
		})
	case errors.Is(err, graph.ErrAuthorizationExpired),
		errors.Is(err, msauth.ErrReauthorizationRequired):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Account authorization expired",
			"code":  "AUTH_REQUIRED",
		})
	case errors.Is(err, graph.ErrRemoteUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Task service unavailable",
			"code":  "REMOTE_UNAVAILABLE",
		})
	default:
		h.logger.Error("Task operation failed",
			"component", "api",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
			"code":  "INTERNAL_ERROR",
		})
	}
}

func todoResponse(task *graph.Task) TodoResponse {
	todo := TodoResponse{
		ID:          task.ID,
		Title:       task.Title,
		IsCompleted: task.Completed(),
	}
	if task.DueDateTime != nil {
		if due, err := task.DueDateTime.Time(); err == nil {
			todo.Due = &due
		}
	}
	if task.Body != nil {
		body := task.Body.Content
		if runes := []rune(body); len(runes) > maxBodyChars {
			body = string(runes[:maxBodyChars]) + "…"
		}
		todo.Body = body
	}
	return todo
}
