package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"todohub/internal/ops"
)

// StatsHandler handles statistics requests
type StatsHandler struct {
	tasks  ops.TaskService
	logger *slog.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(tasks ops.TaskService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		tasks:  tasks,
		logger: logger,
	}
}

// GetStats returns completion statistics over the default list
// GET /api/stats
func (h *StatsHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	listID, err := h.tasks.DefaultListID(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	tasks, err := h.tasks.ListTasks(ctx, listID, true)
	if err != nil {
		h.respondError(c, err)
		return
	}

	total := len(tasks)
	completed := 0
	for i := range tasks {
		if tasks[i].Completed() {
			completed++
		}
	}

	completionRate := 0.0
	if total > 0 {
		completionRate = float64(completed) / float64(total)
	}

	c.JSON(http.StatusOK, gin.H{
		"total":           total,
		"completed":       completed,
		"pending":         total - completed,
		"completion_rate": completionRate,
	})
}

func (h *StatsHandler) respondError(c *gin.Context, err error) {
	// Stats share the todo error taxonomy.
	(&TodosHandler{tasks: h.tasks, logger: h.logger}).respondError(c, err)
}
