package ops

import (
	"time"

	"todohub/internal/graph"
)

// Intent identifies the operation the semantic collaborator extracted from
// the user's message.
type Intent string

const (
	IntentCreate    Intent = "create"
	IntentUpdate    Intent = "update"
	IntentComplete  Intent = "complete"
	IntentDelete    Intent = "delete"
	IntentSearch    Intent = "search"
	IntentList      Intent = "list"
	IntentDecompose Intent = "decompose"
)

// Status is the outcome class of a handled request.
type Status string

const (
	StatusOK           Status = "ok"
	StatusNotFound     Status = "not_found"
	StatusAmbiguous    Status = "ambiguous"
	StatusAuthRequired Status = "auth_required"
	StatusError        Status = "error"
)

// Filter values for list requests.
const (
	FilterActive = "active"
	FilterAll    = "all"
)

// Request is a structured operation request. The semantic collaborator
// produces it; this package never sees raw user text.
type Request struct {
	Intent    Intent     `json:"intent"`
	Title     string     `json:"title,omitempty"`
	Reference string     `json:"reference,omitempty"`
	Due       *time.Time `json:"due,omitempty"`
	Fields    *Fields    `json:"fields,omitempty"`
	Query     string     `json:"query,omitempty"`
	Filter    string     `json:"filter,omitempty"`
	Subtasks  []string   `json:"subtasks,omitempty"`
}

// Fields carries the partial update of an update request. Nil fields stay
// untouched.
type Fields struct {
	Title      *string    `json:"title,omitempty"`
	Due        *time.Time `json:"due,omitempty"`
	Body       *string    `json:"body,omitempty"`
	Importance *string    `json:"importance,omitempty"`
}

// Result is what the facade hands back to the transport layer.
type Result struct {
	Status  Status     `json:"status"`
	Tasks   []TaskView `json:"tasks,omitempty"`
	Message string     `json:"message,omitempty"`
}

// TaskView is the compact task shape exposed to transports.
type TaskView struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Due       *time.Time `json:"due,omitempty"`
	Completed bool       `json:"completed"`
	ListID    string     `json:"list_id"`
}

func newTaskView(listID string, task *graph.Task) TaskView {
	view := TaskView{
		ID:        task.ID,
		Title:     task.Title,
		Completed: task.Completed(),
		ListID:    listID,
	}
	if task.DueDateTime != nil {
		if due, err := task.DueDateTime.Time(); err == nil {
			view.Due = &due
		}
	}
	return view
}

func newTaskViews(listID string, tasks []graph.Task) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, newTaskView(listID, &tasks[i]))
	}
	return views
}
