package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// TaskPager walks a task collection one page at a time, following the
// @odata.nextLink the server hands back. Reset rewinds it to the first
// page, which lets a caller re-run the same listing after a write.
type TaskPager struct {
	client   *Client
	firstURL string
	nextURL  string
	done     bool
}

func (c *Client) newTaskPager(listID string, query url.Values) *TaskPager {
	first := c.config.BaseURL + fmt.Sprintf("/me/todo/lists/%s/tasks", url.PathEscape(listID))
	if len(query) > 0 {
		first += "?" + query.Encode()
	}
	return &TaskPager{
		client:   c,
		firstURL: first,
		nextURL:  first,
	}
}

// More reports whether another page may be available.
func (p *TaskPager) More() bool {
	return !p.done
}

// Next fetches the next page of tasks. After the last page it returns an
// empty slice and More turns false.
func (p *TaskPager) Next(ctx context.Context) ([]Task, error) {
	if p.done {
		return nil, nil
	}

	var page struct {
		Value    []Task `json:"value"`
		NextLink string `json:"@odata.nextLink"`
	}
	if err := p.client.doURL(ctx, http.MethodGet, p.nextURL, nil, &page); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	p.nextURL = page.NextLink
	if p.nextURL == "" {
		p.done = true
	}

	return page.Value, nil
}

// Reset rewinds the pager to the first page.
func (p *TaskPager) Reset() {
	p.nextURL = p.firstURL
	p.done = false
}

// All drains the pager and returns every remaining task.
func (p *TaskPager) All(ctx context.Context) ([]Task, error) {
	var tasks []Task
	for p.More() {
		page, err := p.Next(ctx)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, page...)
	}
	return tasks, nil
}
