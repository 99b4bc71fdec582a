package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPriority_IsValid tests the 1..4 priority range
func TestPriority_IsValid(t *testing.T) {
	for p := Priority(1); p <= 4; p++ {
		assert.True(t, p.IsValid())
	}
	assert.False(t, Priority(0).IsValid())
	assert.False(t, Priority(5).IsValid())
}

// TestTaskBreakdown_JSONContract tests that a three-subtask breakdown keeps
// every field through the wire format
func TestTaskBreakdown_JSONContract(t *testing.T) {
	raw := `{
		"mainTask": "Add login page",
		"subtasks": [
			{"title": "Create form", "description": "email + password", "priority": 3, "order": 1},
			{"title": "Wire API", "priority": 4, "order": 2},
			{"title": "Write tests", "priority": 2, "order": 3}
		]
	}`

	var b TaskBreakdown
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	require.Len(t, b.Subtasks, 3)
	assert.Equal(t, "Add login page", b.MainTask)
	assert.Equal(t, "email + password", b.Subtasks[0].Description)
	assert.Equal(t, Priority(4), b.Subtasks[1].Priority)
	assert.True(t, b.HasSequentialOrder())

	out, err := json.Marshal(b)
	require.NoError(t, err)

	var again TaskBreakdown
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, b, again)
}

// TestTaskBreakdown_SortedSubtasks_Stable tests that equal orders keep
// their relative position
func TestTaskBreakdown_SortedSubtasks_Stable(t *testing.T) {
	b := TaskBreakdown{
		Subtasks: []Subtask{
			{Title: "c", Order: 2},
			{Title: "a", Order: 1},
			{Title: "d", Order: 2},
			{Title: "b", Order: 1},
			{Title: "e", Order: 3},
		},
	}

	sorted := b.SortedSubtasks()
	titles := make([]string, len(sorted))
	for i, st := range sorted {
		titles[i] = st.Title
	}

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, titles)
	assert.False(t, b.HasSequentialOrder())
	assert.Equal(t, "c", b.Subtasks[0].Title, "original slice must not be reordered")
}

// TestTaskBreakdown_SortedSubtasks_Property sorts many permutations and
// checks that ties always preserve input order
func TestTaskBreakdown_SortedSubtasks_Property(t *testing.T) {
	orders := [][]int{
		{1, 1, 1, 1},
		{3, 2, 1},
		{2, 1, 2, 1, 2},
		{5, 5, 4, 4, 1},
	}

	for _, in := range orders {
		b := TaskBreakdown{}
		for i, o := range in {
			b.Subtasks = append(b.Subtasks, Subtask{Title: string(rune('a' + i)), Order: o})
		}

		sorted := b.SortedSubtasks()
		require.Len(t, sorted, len(in))
		for i := 1; i < len(sorted); i++ {
			prev, cur := sorted[i-1], sorted[i]
			assert.LessOrEqual(t, prev.Order, cur.Order)
			if prev.Order == cur.Order {
				assert.Less(t, prev.Title, cur.Title, "tie broke input order for %v", in)
			}
		}
	}
}

// TestTaskUpdate_IsEmpty tests partial update detection
func TestTaskUpdate_IsEmpty(t *testing.T) {
	assert.True(t, TaskUpdate{}.IsEmpty())

	content := "new"
	assert.False(t, TaskUpdate{Content: &content}.IsEmpty())
}

// TestTask_JSON tests decoding a task-manager task
func TestTask_JSON(t *testing.T) {
	raw := `{"id":"42","content":"Fix bug","priority":2,"project_id":"p1","is_completed":false,"due":{"date":"2026-03-01"},"labels":["x"]}`

	var task Task
	require.NoError(t, json.Unmarshal([]byte(raw), &task))
	assert.Equal(t, "42", task.ID)
	assert.Equal(t, "p1", task.ProjectID)
	require.NotNil(t, task.Due)
	assert.Equal(t, "2026-03-01", task.Due.Date)
}
