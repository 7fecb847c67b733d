package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type Task struct {
	ID          uuid.UUID    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      uuid.UUID    `json:"user_id" gorm:"type:uuid;not null;index"`
	Title       string       `json:"title" gorm:"size:100;not null"`
	Description string       `json:"description" gorm:"size:500"`
	DueDate     time.Time    `json:"due_date" gorm:"type:date;not null"`
	Priority    TaskPriority `json:"priority" gorm:"size:16;not null;default:'medium'"`
	Status      TaskStatus   `json:"status" gorm:"size:16;not null;default:'pending'"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty" gorm:"autoUpdateTime:false"`
}

// DueDateOf truncates t to its calendar day at midnight UTC, which is how
// due dates are stored.
func DueDateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar day, each read
// in its own location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (t *Task) IsActive() bool {
	return t.Status != StatusCompleted
}

func (t *Task) IsImportant() bool {
	return t.Priority == PriorityHigh
}

// IsOverdue reports whether the task is still open and its due day is
// before today.
func (t *Task) IsOverdue(today time.Time) bool {
	if !t.IsActive() {
		return false
	}
	return DueDateOf(t.DueDate).Before(DueDateOf(today))
}
