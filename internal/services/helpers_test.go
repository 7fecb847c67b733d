package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"todo-planner/internal/clock"
	"todo-planner/internal/models"
	"todo-planner/internal/repositories"
	"todo-planner/internal/services"
)

var testNow = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Task{}, &models.Token{}))
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func newUser(t *testing.T, users repositories.UserRepository, email string) *models.User {
	t.Helper()
	user := &models.User{Name: "Test", Email: email, PasswordHash: "x"}
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

type recordingEvents struct {
	mu      sync.Mutex
	changes []services.StatusChange
	err     error
}

func (r *recordingEvents) TaskStatusChanged(_ context.Context, change services.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return r.err
}

type taskFixture struct {
	db      *gorm.DB
	users   *repositories.GormUserRepository
	tasks   *repositories.GormTaskRepository
	events  *recordingEvents
	service *services.TaskServiceImpl
	owner   *models.User
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()
	db := newTestDB(t)
	f := &taskFixture{
		db:     db,
		users:  repositories.NewUserRepository(db),
		tasks:  repositories.NewTaskRepository(db),
		events: &recordingEvents{},
	}
	f.service = services.NewTaskService(f.tasks, clock.Fixed(testNow), f.events, zerolog.Nop())
	f.owner = newUser(t, f.users, "owner@example.com")
	return f
}
