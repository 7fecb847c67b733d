package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"todo-planner/internal/models"
)

// TaskRepository reads and writes tasks. Every lookup is scoped to the
// owning user; a task owned by someone else is reported as ErrNotFound.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Task, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Task, error)
	ListDueOn(ctx context.Context, day time.Time) ([]models.Task, error)
	Save(ctx context.Context, task *models.Task) error
	DeleteForUser(ctx context.Context, id, userID uuid.UUID) error
}

type GormTaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.Must(uuid.NewV4())
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *GormTaskRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&task).Error
	if err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

// ListByUser returns the owner's tasks in creation order.
func (r *GormTaskRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Task, error) {
	tasks := []models.Task{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListDueOn returns active tasks of every user whose due date is day.
func (r *GormTaskRepository) ListDueOn(ctx context.Context, day time.Time) ([]models.Task, error) {
	tasks := []models.Task{}
	err := r.db.WithContext(ctx).
		Where("due_date = ? AND status <> ?", models.DueDateOf(day), models.StatusCompleted).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list tasks due: %w", err)
	}
	return tasks, nil
}

// Save writes every column of task, replacing the stored record.
func (r *GormTaskRepository) Save(ctx context.Context, task *models.Task) error {
	res := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ? AND user_id = ?", task.ID, task.UserID).
		Select("*").
		Omit("id", "user_id", "created_at").
		Updates(task)
	if res.Error != nil {
		return fmt.Errorf("save task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormTaskRepository) DeleteForUser(ctx context.Context, id, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
