package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Lists returns all task lists of the signed-in user.
func (c *Client) Lists(ctx context.Context) ([]TaskList, error) {
	var (
		lists []TaskList
		page  struct {
			Value    []TaskList `json:"value"`
			NextLink string     `json:"@odata.nextLink"`
		}
	)

	next := c.config.BaseURL + "/me/todo/lists"
	for next != "" {
		page.Value = nil
		page.NextLink = ""
		if err := c.doURL(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list task lists: %w", err)
		}
		lists = append(lists, page.Value...)
		next = page.NextLink
	}

	return lists, nil
}

// DefaultListID resolves the list that holds tasks when the user names no
// list: the well-known default list, or the first list if the provider did
// not mark one.
func (c *Client) DefaultListID(ctx context.Context) (string, error) {
	lists, err := c.Lists(ctx)
	if err != nil {
		return "", err
	}
	if len(lists) == 0 {
		return "", fmt.Errorf("account has no task lists")
	}

	for _, list := range lists {
		if list.WellknownListName == "defaultList" {
			return list.ID, nil
		}
	}
	return lists[0].ID, nil
}

// GetTask fetches a single task by ID.
func (c *Client) GetTask(ctx context.Context, listID, taskID string) (*Task, error) {
	var task Task
	path := fmt.Sprintf("/me/todo/lists/%s/tasks/%s", url.PathEscape(listID), url.PathEscape(taskID))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a task in the given list and returns the created task
// with its server-assigned ID.
func (c *Client) CreateTask(ctx context.Context, listID string, task *Task) (*Task, error) {
	if task.Title == "" {
		return nil, fmt.Errorf("task title is required")
	}

	var created Task
	path := fmt.Sprintf("/me/todo/lists/%s/tasks", url.PathEscape(listID))
	if err := c.do(ctx, http.MethodPost, path, nil, task, &created); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return &created, nil
}

// UpdateTask applies a partial update to a task. Only the non-nil fields
// are sent.
func (c *Client) UpdateTask(ctx context.Context, listID, taskID string, fields *TaskFields) (*Task, error) {
	if fields.Empty() {
		return nil, fmt.Errorf("no fields to update")
	}

	var updated Task
	path := fmt.Sprintf("/me/todo/lists/%s/tasks/%s", url.PathEscape(listID), url.PathEscape(taskID))
	if err := c.do(ctx, http.MethodPatch, path, nil, fields, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// CompleteTask marks a task as completed.
func (c *Client) CompleteTask(ctx context.Context, listID, taskID string) (*Task, error) {
	status := StatusCompleted
	return c.UpdateTask(ctx, listID, taskID, &TaskFields{Status: &status})
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, listID, taskID string) error {
	path := fmt.Sprintf("/me/todo/lists/%s/tasks/%s", url.PathEscape(listID), url.PathEscape(taskID))
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// OpenTasks returns a pager over the not-completed tasks of a list.
func (c *Client) OpenTasks(listID string) *TaskPager {
	query := url.Values{}
	query.Set("$filter", "status ne 'completed'")
	return c.newTaskPager(listID, query)
}

// AllTasks returns a pager over every task of a list, completed included.
func (c *Client) AllTasks(listID string) *TaskPager {
	return c.newTaskPager(listID, nil)
}

// ListTasks drains the pager and returns the tasks of a list in one slice.
func (c *Client) ListTasks(ctx context.Context, listID string, includeCompleted bool) ([]Task, error) {
	pager := c.OpenTasks(listID)
	if includeCompleted {
		pager = c.AllTasks(listID)
	}
	return pager.All(ctx)
}

// TasksDueBetween returns the open tasks of a list whose due date falls
// inside the half-open window [from, to). The window is evaluated remotely.
func (c *Client) TasksDueBetween(ctx context.Context, listID string, from, to time.Time) ([]Task, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf(
		"status ne 'completed' and dueDateTime/dateTime ge '%s' and dueDateTime/dateTime lt '%s'",
		from.UTC().Format(graphTimeLayout), to.UTC().Format(graphTimeLayout)))
	return c.newTaskPager(listID, query).All(ctx)
}

// SearchTasks returns the open tasks of a list whose titles contain the
// query. The remote filter narrows by status only; title matching happens
// here because the remote filter grammar does not cover substring matches
// on task titles reliably.
func (c *Client) SearchTasks(ctx context.Context, listID, query string) ([]Task, error) {
	pager := c.OpenTasks(listID)

	needle := strings.ToLower(strings.TrimSpace(query))
	var matches []Task
	for pager.More() {
		tasks, err := pager.Next(ctx)
		if err != nil {
			return nil, err
		}
		for _, task := range tasks {
			if needle == "" || strings.Contains(strings.ToLower(task.Title), needle) {
				matches = append(matches, task)
			}
		}
	}

	return matches, nil
}
