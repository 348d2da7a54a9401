package ops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"todohub/internal/graph"
	"todohub/internal/msauth"
)

// TaskService is the slice of the task client the facade needs. The Graph
// client satisfies it; tests substitute a fake.
type TaskService interface {
	DefaultListID(ctx context.Context) (string, error)
	ListTasks(ctx context.Context, listID string, includeCompleted bool) ([]graph.Task, error)
	SearchTasks(ctx context.Context, listID, query string) ([]graph.Task, error)
	TasksDueBetween(ctx context.Context, listID string, from, to time.Time) ([]graph.Task, error)
	GetTask(ctx context.Context, listID, taskID string) (*graph.Task, error)
	CreateTask(ctx context.Context, listID string, task *graph.Task) (*graph.Task, error)
	UpdateTask(ctx context.Context, listID, taskID string, fields *graph.TaskFields) (*graph.Task, error)
	CompleteTask(ctx context.Context, listID, taskID string) (*graph.Task, error)
	DeleteTask(ctx context.Context, listID, taskID string) error
}

// Facade maps structured operation requests onto task client calls and
// normalizes every failure into a Result status, so transports never see a
// raw error.
type Facade struct {
	tasks  TaskService
	logger *slog.Logger
}

// NewFacade creates a facade over the given task service.
func NewFacade(tasks TaskService, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{tasks: tasks, logger: logger}
}

// Handle executes one structured request. The result is always non-nil.
func (f *Facade) Handle(ctx context.Context, req *Request) *Result {
	switch req.Intent {
	case IntentCreate:
		return f.create(ctx, req)
	case IntentUpdate:
		return f.update(ctx, req)
	case IntentComplete:
		return f.complete(ctx, req)
	case IntentDelete:
		return f.delete(ctx, req)
	case IntentSearch:
		return f.search(ctx, req)
	case IntentList:
		return f.list(ctx, req)
	case IntentDecompose:
		return f.decompose(ctx, req)
	default:
		return &Result{Status: StatusError, Message: fmt.Sprintf("unknown intent %q", req.Intent)}
	}
}

func (f *Facade) create(ctx context.Context, req *Request) *Result {
	if strings.TrimSpace(req.Title) == "" {
		return &Result{Status: StatusError, Message: "a task title is required"}
	}

	listID, err := f.tasks.DefaultListID(ctx)
	if err != nil {
		return f.failure(err)
	}

	task := &graph.Task{Title: req.Title}
	if req.Due != nil {
		task.DueDateTime = graph.NewDateTimeTimeZone(*req.Due)
	}

	created, err := f.tasks.CreateTask(ctx, listID, task)
	if err != nil {
		return f.failure(err)
	}

	return &Result{
		Status: StatusOK,
		Tasks:  []TaskView{newTaskView(listID, created)},
	}
}

func (f *Facade) update(ctx context.Context, req *Request) *Result {
	if req.Fields == nil {
		return &Result{Status: StatusError, Message: "an update needs at least one field to change"}
	}

	return f.withResolvedTask(ctx, req, func(listID string, task *graph.Task) *Result {
		fields := &graph.TaskFields{
			Title:      req.Fields.Title,
			Importance: req.Fields.Importance,
		}
		if req.Fields.Due != nil {
			fields.DueDateTime = graph.NewDateTimeTimeZone(*req.Fields.Due)
		}
		if req.Fields.Body != nil {
			fields.Body = graph.TextBody(*req.Fields.Body)
		}
		if fields.Empty() {
			return &Result{Status: StatusError, Message: "an update needs at least one field to change"}
		}

		updated, err := f.tasks.UpdateTask(ctx, listID, task.ID, fields)
		if err != nil {
			return f.failure(err)
		}
		return &Result{Status: StatusOK, Tasks: []TaskView{newTaskView(listID, updated)}}
	})
}

func (f *Facade) complete(ctx context.Context, req *Request) *Result {
	return f.withResolvedTask(ctx, req, func(listID string, task *graph.Task) *Result {
		completed, err := f.tasks.CompleteTask(ctx, listID, task.ID)
		if err != nil {
			return f.failure(err)
		}
		return &Result{Status: StatusOK, Tasks: []TaskView{newTaskView(listID, completed)}}
	})
}

func (f *Facade) delete(ctx context.Context, req *Request) *Result {
	return f.withResolvedTask(ctx, req, func(listID string, task *graph.Task) *Result {
		if err := f.tasks.DeleteTask(ctx, listID, task.ID); err != nil {
			return f.failure(err)
		}
		return &Result{
			Status:  StatusOK,
			Tasks:   []TaskView{newTaskView(listID, task)},
			Message: fmt.Sprintf("deleted %q", task.Title),
		}
	})
}

// search matches open tasks by title query, or by due date when the
// request carries a date but no query: the window is the calendar day of
// the requested due time.
func (f *Facade) search(ctx context.Context, req *Request) *Result {
	byDate := strings.TrimSpace(req.Query) == "" && req.Due != nil
	if strings.TrimSpace(req.Query) == "" && !byDate {
		return &Result{Status: StatusError, Message: "a search query is required"}
	}

	listID, err := f.tasks.DefaultListID(ctx)
	if err != nil {
		return f.failure(err)
	}

	var tasks []graph.Task
	if byDate {
		from := req.Due.UTC().Truncate(24 * time.Hour)
		tasks, err = f.tasks.TasksDueBetween(ctx, listID, from, from.Add(24*time.Hour))
	} else {
		tasks, err = f.tasks.SearchTasks(ctx, listID, req.Query)
	}
	if err != nil {
		return f.failure(err)
	}
	if len(tasks) == 0 {
		if byDate {
			return &Result{
				Status:  StatusNotFound,
				Message: "no tasks due on " + req.Due.Format("Jan 2"),
			}
		}
		return &Result{Status: StatusNotFound, Message: fmt.Sprintf("no tasks match %q", req.Query)}
	}

	return &Result{Status: StatusOK, Tasks: newTaskViews(listID, tasks)}
}

func (f *Facade) list(ctx context.Context, req *Request) *Result {
	listID, err := f.tasks.DefaultListID(ctx)
	if err != nil {
		return f.failure(err)
	}

	tasks, err := f.tasks.ListTasks(ctx, listID, req.Filter == FilterAll)
	if err != nil {
		return f.failure(err)
	}

	return &Result{Status: StatusOK, Tasks: newTaskViews(listID, tasks)}
}

// decompose creates a parent task plus one task per pre-decomposed step.
// The step list arrives already split; splitting is the semantic
// collaborator's job.
func (f *Facade) decompose(ctx context.Context, req *Request) *Result {
	if strings.TrimSpace(req.Title) == "" {
		return &Result{Status: StatusError, Message: "a task title is required"}
	}
	if len(req.Subtasks) == 0 {
		return f.create(ctx, req)
	}

	listID, err := f.tasks.DefaultListID(ctx)
	if err != nil {
		return f.failure(err)
	}

	parent := &graph.Task{
		Title: req.Title,
		Body:  graph.TextBody("Steps:\n- " + strings.Join(req.Subtasks, "\n- ")),
	}
	if req.Due != nil {
		parent.DueDateTime = graph.NewDateTimeTimeZone(*req.Due)
	}

	createdParent, err := f.tasks.CreateTask(ctx, listID, parent)
	if err != nil {
		return f.failure(err)
	}

	views := []TaskView{newTaskView(listID, createdParent)}
	for _, step := range req.Subtasks {
		created, err := f.tasks.CreateTask(ctx, listID, &graph.Task{Title: step})
		if err != nil {
			// Report what was created before the failure; nothing is
			// rolled back.
			result := f.failure(err)
			result.Tasks = views
			return result
		}
		views = append(views, newTaskView(listID, created))
	}

	return &Result{Status: StatusOK, Tasks: views}
}

// withResolvedTask resolves the free-text reference of an update, complete
// or delete request and runs the operation on the single match. No match
// and multiple matches are distinct outcomes; the facade never guesses.
func (f *Facade) withResolvedTask(ctx context.Context, req *Request, op func(listID string, task *graph.Task) *Result) *Result {
	if strings.TrimSpace(req.Reference) == "" {
		return &Result{Status: StatusError, Message: "a task reference is required"}
	}

	listID, err := f.tasks.DefaultListID(ctx)
	if err != nil {
		return f.failure(err)
	}

	active, err := f.tasks.ListTasks(ctx, listID, false)
	if err != nil {
		return f.failure(err)
	}

	matches := resolveReference(req.Reference, req.Due, active)
	switch len(matches) {
	case 0:
		return &Result{
			Status:  StatusNotFound,
			Message: fmt.Sprintf("no active task matches %q", req.Reference),
		}
	case 1:
		return op(listID, &matches[0])
	default:
		return &Result{
			Status:  StatusAmbiguous,
			Tasks:   newTaskViews(listID, matches),
			Message: fmt.Sprintf("%d tasks match %q - please be more specific", len(matches), req.Reference),
		}
	}
}

// failure maps a task client error to the user-facing status taxonomy.
func (f *Facade) failure(err error) *Result {
	switch {
	case errors.Is(err, graph.ErrAuthorizationExpired),
		errors.Is(err, msauth.ErrReauthorizationRequired),
		errors.Is(err, msauth.ErrMissingScopes):
		return &Result{
			Status:  StatusAuthRequired,
			Message: "authorization expired - please reconnect your Microsoft account",
		}
	case errors.Is(err, graph.ErrTaskNotFound):
		return &Result{Status: StatusNotFound, Message: "the task no longer exists"}
	case errors.Is(err, graph.ErrRemoteUnavailable):
		f.logger.Warn("Task service unavailable", "error", err)
		return &Result{Status: StatusError, Message: "the task service is temporarily unavailable - please try again"}
	default:
		f.logger.Error("Task operation failed", "error", err)
		return &Result{Status: StatusError, Message: err.Error()}
	}
}
