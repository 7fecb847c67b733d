package services

import (
	"context"
	"time"

	"github.com/gofrs/uuid"

	"todo-planner/internal/models"
	"todo-planner/internal/worker"
)

// StatusChange is published after a status transition has been stored.
type StatusChange struct {
	TaskID uuid.UUID         `json:"task_id"`
	UserID uuid.UUID         `json:"user_id"`
	Title  string            `json:"title"`
	From   models.TaskStatus `json:"from"`
	To     models.TaskStatus `json:"to"`
	At     time.Time         `json:"at"`
}

type TaskEvents interface {
	TaskStatusChanged(ctx context.Context, change StatusChange) error
}

type NoopTaskEvents struct{}

func (NoopTaskEvents) TaskStatusChanged(context.Context, StatusChange) error { return nil }

// QueueTaskEvents turns events into background jobs.
type QueueTaskEvents struct {
	queue *worker.JobQueue
}

func NewQueueTaskEvents(queue *worker.JobQueue) *QueueTaskEvents {
	return &QueueTaskEvents{queue: queue}
}

func (e *QueueTaskEvents) TaskStatusChanged(ctx context.Context, change StatusChange) error {
	_, err := e.queue.Enqueue(ctx, worker.DefaultQueue, worker.JobTypeTaskStatusChanged, change)
	return err
}
