package dashboard

import (
	"time"

	"todo-planner/internal/models"
)

// Dashboard is one owner's task list sorted once and sliced into views.
// Every view keeps the order of All.
type Dashboard struct {
	SortKey      SortKey       `json:"sort_by"`
	SortLabel    string        `json:"sort_label"`
	All          []models.Task `json:"all"`
	Active       []models.Task `json:"active"`
	Completed    []models.Task `json:"completed"`
	HighPriority []models.Task `json:"high_priority"`
	DueToday     []models.Task `json:"due_today"`
}

func Build(tasks []models.Task, key SortKey, today time.Time) Dashboard {
	if !key.Known() {
		key = SortByDueDate
	}
	sorted := SortTasks(tasks, key)

	d := Dashboard{
		SortKey:      key,
		SortLabel:    key.Label(),
		All:          sorted,
		Active:       []models.Task{},
		Completed:    []models.Task{},
		HighPriority: []models.Task{},
		DueToday:     []models.Task{},
	}

	for _, t := range sorted {
		if !t.IsActive() {
			d.Completed = append(d.Completed, t)
			continue
		}
		d.Active = append(d.Active, t)
		if t.IsImportant() {
			d.HighPriority = append(d.HighPriority, t)
		}
		if models.SameDay(t.DueDate, today) {
			d.DueToday = append(d.DueToday, t)
		}
	}
	return d
}
