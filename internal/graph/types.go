package graph

import (
	"fmt"
	"time"
)

// Task status values used by the To Do API.
const (
	StatusNotStarted = "notStarted"
	StatusInProgress = "inProgress"
	StatusCompleted  = "completed"
)

// Task importance values.
const (
	ImportanceLow    = "low"
	ImportanceNormal = "normal"
	ImportanceHigh   = "high"
)

// graphTimeLayout is the fractional-seconds layout the API uses inside
// dateTimeTimeZone values (no zone suffix; the zone travels separately).
const graphTimeLayout = "2006-01-02T15:04:05.0000000"

// TaskList is a To Do task list.
type TaskList struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	WellknownListName string `json:"wellknownListName,omitempty"`
}

// Task is a To Do task as the API represents it.
type Task struct {
	ID                   string            `json:"id,omitempty"`
	Title                string            `json:"title"`
	Status               string            `json:"status,omitempty"`
	Importance           string            `json:"importance,omitempty"`
	Body                 *ItemBody         `json:"body,omitempty"`
	DueDateTime          *DateTimeTimeZone `json:"dueDateTime,omitempty"`
	ReminderDateTime     *DateTimeTimeZone `json:"reminderDateTime,omitempty"`
	CreatedDateTime      time.Time         `json:"createdDateTime,omitempty"`
	LastModifiedDateTime time.Time         `json:"lastModifiedDateTime,omitempty"`
}

// Completed reports whether the task is done.
func (t *Task) Completed() bool {
	return t.Status == StatusCompleted
}

// ItemBody is the free-text body of a task.
type ItemBody struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

// TextBody builds a plain-text item body.
func TextBody(content string) *ItemBody {
	return &ItemBody{Content: content, ContentType: "text"}
}

// DateTimeTimeZone is the API's split timestamp representation.
type DateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// NewDateTimeTimeZone converts a time.Time into the wire representation,
// normalized to UTC.
func NewDateTimeTimeZone(t time.Time) *DateTimeTimeZone {
	return &DateTimeTimeZone{
		DateTime: t.UTC().Format(graphTimeLayout),
		TimeZone: "UTC",
	}
}

// Time parses the wire representation back into a time.Time.
func (d *DateTimeTimeZone) Time() (time.Time, error) {
	loc := time.UTC
	if d.TimeZone != "" && d.TimeZone != "UTC" {
		parsed, err := time.LoadLocation(d.TimeZone)
		if err != nil {
			return time.Time{}, fmt.Errorf("unknown time zone %q: %w", d.TimeZone, err)
		}
		loc = parsed
	}
	t, err := time.ParseInLocation(graphTimeLayout, d.DateTime, loc)
	if err != nil {
		// Some responses omit the fractional part.
		t, err = time.ParseInLocation("2006-01-02T15:04:05", d.DateTime, loc)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse due date %q: %w", d.DateTime, err)
	}
	return t, nil
}

// TaskFields is a partial update. Nil fields are left untouched on the
// remote task.
type TaskFields struct {
	Title            *string           `json:"title,omitempty"`
	Status           *string           `json:"status,omitempty"`
	Importance       *string           `json:"importance,omitempty"`
	Body             *ItemBody         `json:"body,omitempty"`
	DueDateTime      *DateTimeTimeZone `json:"dueDateTime,omitempty"`
	ReminderDateTime *DateTimeTimeZone `json:"reminderDateTime,omitempty"`
}

// Empty reports whether the update carries no changes.
func (f *TaskFields) Empty() bool {
	return f.Title == nil && f.Status == nil && f.Importance == nil &&
		f.Body == nil && f.DueDateTime == nil && f.ReminderDateTime == nil
}
