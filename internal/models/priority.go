package models

import (
	"errors"
	"fmt"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

var ErrUnknownPriority = errors.New("unknown task priority")

var priorityRanks = map[TaskPriority]int{
	PriorityHigh:   1,
	PriorityMedium: 2,
	PriorityLow:    3,
}

var priorityNames = map[TaskPriority]string{
	PriorityHigh:   "High",
	PriorityMedium: "Medium",
	PriorityLow:    "Low",
}

func (p TaskPriority) IsValid() bool {
	_, ok := priorityRanks[p]
	return ok
}

// Rank orders priorities for sorting: High=1, Medium=2, Low=3. Unknown
// values sort last.
func (p TaskPriority) Rank() int {
	if r, ok := priorityRanks[p]; ok {
		return r
	}
	return len(priorityRanks) + 1
}

func (p TaskPriority) DisplayName() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return string(p)
}

func ParseTaskPriority(raw string) (TaskPriority, error) {
	switch normalizeEnum(raw) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPriority, raw)
}
