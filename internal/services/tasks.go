package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"

	"todo-planner/internal/clock"
	"todo-planner/internal/dashboard"
	"todo-planner/internal/models"
	"todo-planner/internal/repositories"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 500
)

// TaskInput carries the editable fields of a task. An empty Status leaves
// the status unchanged on update and is ignored on create.
type TaskInput struct {
	Title       string
	Description string
	DueDate     time.Time
	Priority    models.TaskPriority
	Status      models.TaskStatus
}

type TaskService interface {
	CreateTask(ctx context.Context, userID uuid.UUID, input TaskInput) (*models.Task, error)
	GetTask(ctx context.Context, userID, id uuid.UUID) (*models.Task, error)
	ListTasks(ctx context.Context, userID uuid.UUID) ([]models.Task, error)
	UpdateTask(ctx context.Context, userID, id uuid.UUID, input TaskInput) (*models.Task, error)
	// ChangeStatus returns the stored task on success. On a rejected
	// transition it returns the task as it was together with the error.
	ChangeStatus(ctx context.Context, userID, id uuid.UUID, status models.TaskStatus) (*models.Task, error)
	DeleteTask(ctx context.Context, userID, id uuid.UUID) error
	GetDashboard(ctx context.Context, userID uuid.UUID, sortBy string) (dashboard.Dashboard, error)
}

type TaskServiceImpl struct {
	tasks  repositories.TaskRepository
	clock  clock.Clock
	events TaskEvents
	log    zerolog.Logger
}

func NewTaskService(tasks repositories.TaskRepository, c clock.Clock, events TaskEvents, log zerolog.Logger) *TaskServiceImpl {
	if events == nil {
		events = NoopTaskEvents{}
	}
	return &TaskServiceImpl{tasks: tasks, clock: c, events: events, log: log}
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, userID uuid.UUID, input TaskInput) (*models.Task, error) {
	input, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:          uuid.Must(uuid.NewV4()),
		UserID:      userID,
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		Priority:    input.Priority,
		Status:      models.StatusPending,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	s.log.Info().Str("task_id", task.ID.String()).Str("user_id", userID.String()).Msg("task created")
	return task, nil
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, userID, id uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return task, nil
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, userID uuid.UUID) ([]models.Task, error) {
	return s.tasks.ListByUser(ctx, userID)
}

func (s *TaskServiceImpl) UpdateTask(ctx context.Context, userID, id uuid.UUID, input TaskInput) (*models.Task, error) {
	input, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}

	current, err := s.GetTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	updated := *current
	updated.Title = input.Title
	updated.Description = input.Description
	updated.DueDate = input.DueDate
	updated.Priority = input.Priority
	if input.Status != "" {
		if err := updated.RequestTransition(input.Status, now); err != nil {
			return current, err
		}
	}
	updated.UpdatedAt = &now

	if err := s.tasks.Save(ctx, &updated); err != nil {
		return current, notFound(err)
	}

	s.publishTransition(ctx, current, &updated, now)
	return &updated, nil
}

func (s *TaskServiceImpl) ChangeStatus(ctx context.Context, userID, id uuid.UUID, status models.TaskStatus) (*models.Task, error) {
	current, err := s.GetTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	updated := *current
	if err := updated.RequestTransition(status, now); err != nil {
		return current, err
	}
	if updated.Status == current.Status {
		return current, nil
	}

	if err := s.tasks.Save(ctx, &updated); err != nil {
		return current, notFound(err)
	}

	s.publishTransition(ctx, current, &updated, now)
	return &updated, nil
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.tasks.DeleteForUser(ctx, id, userID); err != nil {
		return notFound(err)
	}
	s.log.Info().Str("task_id", id.String()).Str("user_id", userID.String()).Msg("task deleted")
	return nil
}

func (s *TaskServiceImpl) GetDashboard(ctx context.Context, userID uuid.UUID, sortBy string) (dashboard.Dashboard, error) {
	tasks, err := s.ListTasks(ctx, userID)
	if err != nil {
		return dashboard.Dashboard{}, err
	}
	return dashboard.Build(tasks, dashboard.ParseSortKey(sortBy), clock.Today(s.clock)), nil
}

func (s *TaskServiceImpl) publishTransition(ctx context.Context, before, after *models.Task, now time.Time) {
	if before.Status == after.Status {
		return
	}
	err := s.events.TaskStatusChanged(ctx, StatusChange{
		TaskID: after.ID,
		UserID: after.UserID,
		Title:  after.Title,
		From:   before.Status,
		To:     after.Status,
		At:     now,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("task_id", after.ID.String()).Msg("failed to publish status change")
	}
}

func notFound(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrTaskNotFound
	}
	return err
}

func normalizeInput(in TaskInput) (TaskInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	switch {
	case in.Title == "":
		return in, fmt.Errorf("%w: title is required", ErrInvalidTask)
	case utf8.RuneCountInString(in.Title) > maxTitleLength:
		return in, fmt.Errorf("%w: title cannot exceed %d characters", ErrInvalidTask, maxTitleLength)
	case utf8.RuneCountInString(in.Description) > maxDescriptionLength:
		return in, fmt.Errorf("%w: description cannot exceed %d characters", ErrInvalidTask, maxDescriptionLength)
	case in.DueDate.IsZero():
		return in, fmt.Errorf("%w: due date is required", ErrInvalidTask)
	}

	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.IsValid() {
		return in, fmt.Errorf("%w: %w", ErrInvalidTask, models.ErrUnknownPriority)
	}
	in.DueDate = models.DueDateOf(in.DueDate)
	return in, nil
}
