package logging

import (
	"context"
	"log/slog"
	"time"

	"todohub/internal/graph"
	"todohub/internal/ops"
)

// TaskServiceLogger wraps a TaskService and logs all method calls
type TaskServiceLogger struct {
	service ops.TaskService
	logger  *slog.Logger
}

// NewTaskServiceLogger creates a new logging decorator for TaskService
func NewTaskServiceLogger(service ops.TaskService, logger *slog.Logger) ops.TaskService {
	return &TaskServiceLogger{
		service: service,
		logger:  logger.With("interface", "TaskService"),
	}
}

func (l *TaskServiceLogger) DefaultListID(ctx context.Context) (string, error) {
	start := time.Now()
	l.logger.Debug("DefaultListID called")

	listID, err := l.service.DefaultListID(ctx)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("DefaultListID failed",
			"duration", duration,
			"error", err)
		return "", err
	}

	l.logger.Debug("DefaultListID completed",
		"list_id", listID,
		"duration", duration)

	return listID, nil
}

func (l *TaskServiceLogger) ListTasks(ctx context.Context, listID string, includeCompleted bool) ([]graph.Task, error) {
	start := time.Now()
	l.logger.Debug("ListTasks called",
		"list_id", listID,
		"include_completed", includeCompleted)

	tasks, err := l.service.ListTasks(ctx, listID, includeCompleted)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("ListTasks failed",
			"list_id", listID,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Debug("ListTasks completed",
		"list_id", listID,
		"count", len(tasks),
		"duration", duration)

	return tasks, nil
}

func (l *TaskServiceLogger) SearchTasks(ctx context.Context, listID, query string) ([]graph.Task, error) {
	start := time.Now()
	l.logger.Debug("SearchTasks called",
		"list_id", listID,
		"query", query)

	tasks, err := l.service.SearchTasks(ctx, listID, query)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("SearchTasks failed",
			"list_id", listID,
			"query", query,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Debug("SearchTasks completed",
		"list_id", listID,
		"count", len(tasks),
		"duration", duration)

	return tasks, nil
}

func (l *TaskServiceLogger) TasksDueBetween(ctx context.Context, listID string, from, to time.Time) ([]graph.Task, error) {
	start := time.Now()
	l.logger.Debug("TasksDueBetween called",
		"list_id", listID,
		"from", from,
		"to", to)

	tasks, err := l.service.TasksDueBetween(ctx, listID, from, to)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("TasksDueBetween failed",
			"list_id", listID,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Debug("TasksDueBetween completed",
		"list_id", listID,
		"count", len(tasks),
		"duration", duration)

	return tasks, nil
}

func (l *TaskServiceLogger) GetTask(ctx context.Context, listID, taskID string) (*graph.Task, error) {
	start := time.Now()
	l.logger.Debug("GetTask called",
		"list_id", listID,
		"task_id", taskID)

	task, err := l.service.GetTask(ctx, listID, taskID)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("GetTask failed",
			"list_id", listID,
			"task_id", taskID,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Debug("GetTask completed",
		"list_id", listID,
		"task_id", taskID,
		"duration", duration)

	return task, nil
}

func (l *TaskServiceLogger) CreateTask(ctx context.Context, listID string, task *graph.Task) (*graph.Task, error) {
	start := time.Now()
	l.logger.Info("CreateTask called",
		"list_id", listID,
		"title", task.Title)

	created, err := l.service.CreateTask(ctx, listID, task)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("CreateTask failed",
			"list_id", listID,
			"title", task.Title,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Info("CreateTask completed",
		"list_id", listID,
		"task_id", created.ID,
		"duration", duration)

	return created, nil
}

func (l *TaskServiceLogger) UpdateTask(ctx context.Context, listID, taskID string, fields *graph.TaskFields) (*graph.Task, error) {
	start := time.Now()
	l.logger.Info("UpdateTask called",
		"list_id", listID,
		"task_id", taskID)

	updated, err := l.service.UpdateTask(ctx, listID, taskID, fields)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("UpdateTask failed",
			"list_id", listID,
			"task_id", taskID,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Info("UpdateTask completed",
		"list_id", listID,
		"task_id", taskID,
		"duration", duration)

	return updated, nil
}

func (l *TaskServiceLogger) CompleteTask(ctx context.Context, listID, taskID string) (*graph.Task, error) {
	start := time.Now()
	l.logger.Info("CompleteTask called",
		"list_id", listID,
		"task_id", taskID)

	completed, err := l.service.CompleteTask(ctx, listID, taskID)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("CompleteTask failed",
			"list_id", listID,
			"task_id", taskID,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Info("CompleteTask completed",
		"list_id", listID,
		"task_id", taskID,
		"duration", duration)

	return completed, nil
}

func (l *TaskServiceLogger) DeleteTask(ctx context.Context, listID, taskID string) error {
	start := time.Now()
	l.logger.Info("DeleteTask called",
		"list_id", listID,
		"task_id", taskID)

	err := l.service.DeleteTask(ctx, listID, taskID)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("DeleteTask failed",
			"list_id", listID,
			"task_id", taskID,
			"duration", duration,
			"error", err)
		return err
	}

	l.logger.Info("DeleteTask completed",
		"list_id", listID,
		"task_id", taskID,
		"duration", duration)

	return nil
}
