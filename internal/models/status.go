package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown task status")
	ErrNilTask           = errors.New("no task supplied")
)

// InvalidTransitionError is returned when the requested status is not
// reachable from the current one. It matches ErrInvalidTransition.
type InvalidTransitionError struct {
	From TaskStatus
	To   TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition task from %s to %s", e.From.DisplayName(), e.To.DisplayName())
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// StatusDescriptor is the static per-state data: presentation tags, the
// allowed next states and the hook run when a task enters the state.
type StatusDescriptor struct {
	Status  TaskStatus
	Name    string
	Color   string
	Icon    string
	Rank    int
	Next    []TaskStatus
	OnEnter func(t *Task, now time.Time)
}

func touch(t *Task, now time.Time) {
	t.UpdatedAt = &now
}

var statusTable = map[TaskStatus]StatusDescriptor{
	StatusPending: {
		Status:  StatusPending,
		Name:    "Pending",
		Color:   "yellow",
		Icon:    "fas fa-clock",
		Rank:    1,
		Next:    []TaskStatus{StatusInProgress, StatusCompleted},
		OnEnter: touch,
	},
	StatusInProgress: {
		Status:  StatusInProgress,
		Name:    "In Progress",
		Color:   "blue",
		Icon:    "fas fa-spinner",
		Rank:    2,
		Next:    []TaskStatus{StatusCompleted, StatusPending},
		OnEnter: touch,
	},
	StatusCompleted: {
		Status:  StatusCompleted,
		Name:    "Completed",
		Color:   "green",
		Icon:    "fas fa-check-circle",
		Rank:    3,
		Next:    []TaskStatus{StatusPending, StatusInProgress},
		OnEnter: touch,
	},
}

// Statuses lists every status in rank order.
func Statuses() []TaskStatus {
	return []TaskStatus{StatusPending, StatusInProgress, StatusCompleted}
}

// Descriptor looks up the static data for s.
func Descriptor(s TaskStatus) (StatusDescriptor, error) {
	d, ok := statusTable[s]
	if !ok {
		return StatusDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownStatus, string(s))
	}
	return d, nil
}

func (s TaskStatus) IsValid() bool {
	_, ok := statusTable[s]
	return ok
}

func (s TaskStatus) DisplayName() string {
	if d, ok := statusTable[s]; ok {
		return d.Name
	}
	return string(s)
}

func (s TaskStatus) Color() string {
	return statusTable[s].Color
}

func (s TaskStatus) Icon() string {
	return statusTable[s].Icon
}

// Rank orders statuses for sorting: Pending=1, InProgress=2, Completed=3.
// Unknown values sort last.
func (s TaskStatus) Rank() int {
	if d, ok := statusTable[s]; ok {
		return d.Rank
	}
	return len(statusTable) + 1
}

func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	d, ok := statusTable[s]
	if !ok {
		return false
	}
	for _, allowed := range d.Next {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseTaskStatus accepts the stored values and the display spellings,
// ignoring case, spaces, dashes and underscores.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	switch normalizeEnum(raw) {
	case "pending":
		return StatusPending, nil
	case "inprogress":
		return StatusInProgress, nil
	case "completed":
		return StatusCompleted, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

// RequestTransition moves the task to the requested status when the
// transition table allows it. Requesting the current status is a no-op.
// On error the task is left untouched.
func (t *Task) RequestTransition(to TaskStatus, now time.Time) error {
	if t == nil {
		return ErrNilTask
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: current status %q", ErrUnknownStatus, string(t.Status))
	}
	target, err := Descriptor(to)
	if err != nil {
		return err
	}
	if to == t.Status {
		return nil
	}
	if !t.Status.CanTransitionTo(to) {
		return &InvalidTransitionError{From: t.Status, To: to}
	}

	t.Status = to
	if target.OnEnter != nil {
		target.OnEnter(t, now)
	}
	return nil
}

func normalizeEnum(raw string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(raw)))
}
