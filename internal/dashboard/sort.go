package dashboard

import (
	"cmp"
	"slices"
	"strings"

	"todo-planner/internal/models"
)

type SortKey string

const (
	SortByDueDate  SortKey = "DueDate"
	SortByPriority SortKey = "Priority"
	SortByStatus   SortKey = "Status"
)

// Label is the human readable name shown next to the sorted list.
func (k SortKey) Label() string {
	switch k {
	case SortByPriority:
		return "Priority"
	case SortByStatus:
		return "Status"
	default:
		return "Due Date"
	}
}

// Known reports whether k is one of the defined keys.
func (k SortKey) Known() bool {
	return k == SortByDueDate || k == SortByPriority || k == SortByStatus
}

// ParseSortKey maps a query value onto a key. Unrecognised input,
// including the empty string, yields SortByDueDate.
func ParseSortKey(raw string) SortKey {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "duedate", "due_date":
		return SortByDueDate
	case "priority":
		return SortByPriority
	case "status":
		return SortByStatus
	default:
		return SortByDueDate
	}
}

func compareDue(a, b models.Task) int {
	return a.DueDate.Compare(b.DueDate)
}

func comparator(key SortKey) func(a, b models.Task) int {
	switch key {
	case SortByPriority:
		return func(a, b models.Task) int {
			return cmp.Or(cmp.Compare(a.Priority.Rank(), b.Priority.Rank()), compareDue(a, b))
		}
	case SortByStatus:
		return func(a, b models.Task) int {
			return cmp.Or(cmp.Compare(a.Status.Rank(), b.Status.Rank()), compareDue(a, b))
		}
	default:
		return compareDue
	}
}

// SortTasks returns a stably sorted copy of tasks. The input slice is not
// modified.
func SortTasks(tasks []models.Task, key SortKey) []models.Task {
	out := slices.Clone(tasks)
	if out == nil {
		out = []models.Task{}
	}
	slices.SortStableFunc(out, comparator(key))
	return out
}
