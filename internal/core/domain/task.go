package domain

import "sort"

// Priority is a task priority in the task manager's scale (1 = normal, 4 = urgent).
type Priority int

// Priority bounds.
const (
	PriorityLowest  Priority = 1
	PriorityHighest Priority = 4
)

// IsValid returns true if the priority is within 1..4.
func (p Priority) IsValid() bool {
	return p >= PriorityLowest && p <= PriorityHighest
}

// Subtask is one unit of work produced by decomposing a feature request.
type Subtask struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	Order       int      `json:"order"`
}

// TaskBreakdown is the decomposition of one user request.
type TaskBreakdown struct {
	MainTask  string    `json:"mainTask"`
	Subtasks  []Subtask `json:"subtasks"`
	ProjectID string    `json:"projectId,omitempty"`
}

// SortedSubtasks returns the subtasks ordered by Order. The sort is stable:
// subtasks sharing an order keep their relative position from the response.
func (b *TaskBreakdown) SortedSubtasks() []Subtask {
	out := make([]Subtask, len(b.Subtasks))
	copy(out, b.Subtasks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

// HasSequentialOrder reports whether orders are exactly 1..n in ascending sequence.
func (b *TaskBreakdown) HasSequentialOrder() bool {
	for i, st := range b.Subtasks {
		if st.Order != i+1 {
			return false
		}
	}
	return true
}

// TaskDue is the due information of a task.
type TaskDue struct {
	Date     string `json:"date,omitempty"`
	String   string `json:"string,omitempty"`
	Datetime string `json:"datetime,omitempty"`
}

// Task is a read-only view of a task in the external task manager.
type Task struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	Due         *TaskDue `json:"due,omitempty"`
	ProjectID   string   `json:"project_id,omitempty"`
	Order       int      `json:"order,omitempty"`
	IsCompleted bool     `json:"is_completed"`
}

// Project is a project in the external task manager.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TaskCreate describes a task to create.
type TaskCreate struct {
	Content     string
	ProjectID   string
	Description string
	Priority    Priority
	DueString   string
}

// TaskUpdate describes a partial task update. Nil fields are left unchanged.
type TaskUpdate struct {
	Content     *string
	Description *string
	Priority    *Priority
	DueString   *string
}

// IsEmpty reports whether the update changes nothing.
func (u TaskUpdate) IsEmpty() bool {
	return u.Content == nil && u.Description == nil && u.Priority == nil && u.DueString == nil
}

// TaskFilter narrows a task listing.
type TaskFilter struct {
	// Filter is a task-manager filter expression, e.g. "today | overdue".
	Filter string

	// Label restricts to tasks carrying the label.
	Label string
}

// PublishResult reports which subtasks were created in the task manager.
type PublishResult struct {
	ProjectID string
	TaskIDs   []string
	Failed    []string
}
