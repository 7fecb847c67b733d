package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"todo-planner/internal/models"
	"todo-planner/internal/repositories"
)

type RepositorySuite struct {
	suite.Suite
	db     *gorm.DB
	users  *repositories.GormUserRepository
	tasks  *repositories.GormTaskRepository
	tokens *repositories.GormTokenRepository
	ctx    context.Context
	owner  *models.User
}

func (s *RepositorySuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(db.AutoMigrate(&models.User{}, &models.Task{}, &models.Token{}))

	s.db = db
	s.users = repositories.NewUserRepository(db)
	s.tasks = repositories.NewTaskRepository(db)
	s.tokens = repositories.NewTokenRepository(db)
	s.ctx = context.Background()

	s.owner = &models.User{Name: "Owner", Email: "owner@example.com", PasswordHash: "hash"}
	s.Require().NoError(s.users.Create(s.ctx, s.owner))
}

func (s *RepositorySuite) TearDownTest() {
	sqlDB, _ := s.db.DB()
	sqlDB.Close()
}

func (s *RepositorySuite) newTask(title string, due time.Time) *models.Task {
	task := &models.Task{
		UserID:   s.owner.ID,
		Title:    title,
		DueDate:  models.DueDateOf(due),
		Priority: models.PriorityMedium,
		Status:   models.StatusPending,
	}
	s.Require().NoError(s.tasks.Create(s.ctx, task))
	return task
}

func (s *RepositorySuite) TestUser_CreateAndLookup() {
	s.NotEqual(uuid.Nil, s.owner.ID)

	byID, err := s.users.GetByID(s.ctx, s.owner.ID)
	s.Require().NoError(err)
	s.Equal("owner@example.com", byID.Email)

	byEmail, err := s.users.GetByEmail(s.ctx, "owner@example.com")
	s.Require().NoError(err)
	s.Equal(s.owner.ID, byEmail.ID)

	exists, err := s.users.ExistsByEmail(s.ctx, "owner@example.com")
	s.Require().NoError(err)
	s.True(exists)

	_, err = s.users.GetByEmail(s.ctx, "nobody@example.com")
	s.ErrorIs(err, repositories.ErrNotFound)
}

func (s *RepositorySuite) TestUser_DuplicateEmailRejected() {
	dup := &models.User{Name: "Other", Email: "owner@example.com", PasswordHash: "x"}
	s.Error(s.users.Create(s.ctx, dup))
}

func (s *RepositorySuite) TestTask_GetForUserIsOwnerScoped() {
	task := s.newTask("mine", time.Now())

	got, err := s.tasks.GetForUser(s.ctx, task.ID, s.owner.ID)
	s.Require().NoError(err)
	s.Equal("mine", got.Title)
	s.Equal(models.StatusPending, got.Status)

	_, err = s.tasks.GetForUser(s.ctx, task.ID, uuid.Must(uuid.NewV4()))
	s.ErrorIs(err, repositories.ErrNotFound)
}

func (s *RepositorySuite) TestTask_DueDateRoundTripsAsDate() {
	due := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	task := s.newTask("dated", due)

	got, err := s.tasks.GetForUser(s.ctx, task.ID, s.owner.ID)
	s.Require().NoError(err)
	s.True(models.SameDay(due, got.DueDate), "got %v", got.DueDate)
}

func (s *RepositorySuite) TestTask_ListByUser() {
	s.newTask("first", time.Now())
	s.newTask("second", time.Now())

	other := &models.User{Name: "Other", Email: "other@example.com", PasswordHash: "hash"}
	s.Require().NoError(s.users.Create(s.ctx, other))
	s.Require().NoError(s.tasks.Create(s.ctx, &models.Task{
		UserID: other.ID, Title: "theirs", DueDate: models.DueDateOf(time.Now()),
		Priority: models.PriorityLow, Status: models.StatusPending,
	}))

	tasks, err := s.tasks.ListByUser(s.ctx, s.owner.ID)
	s.Require().NoError(err)
	s.Len(tasks, 2)
	for _, t := range tasks {
		s.Equal(s.owner.ID, t.UserID)
	}

	empty, err := s.tasks.ListByUser(s.ctx, uuid.Must(uuid.NewV4()))
	s.Require().NoError(err)
	s.NotNil(empty)
	s.Empty(empty)
}

func (s *RepositorySuite) TestTask_SaveReplacesRecord() {
	task := s.newTask("draft", time.Now())

	now := time.Now().UTC()
	task.Title = "final"
	task.Description = ""
	task.Priority = models.PriorityHigh
	s.Require().NoError(task.RequestTransition(models.StatusCompleted, now))
	s.Require().NoError(s.tasks.Save(s.ctx, task))

	got, err := s.tasks.GetForUser(s.ctx, task.ID, s.owner.ID)
	s.Require().NoError(err)
	s.Equal("final", got.Title)
	s.Equal(models.PriorityHigh, got.Priority)
	s.Equal(models.StatusCompleted, got.Status)
	s.Require().NotNil(got.UpdatedAt)
}

func (s *RepositorySuite) TestTask_SaveForeignTaskNotFound() {
	task := s.newTask("mine", time.Now())

	stolen := *task
	stolen.UserID = uuid.Must(uuid.NewV4())
	stolen.Title = "hijacked"

	s.ErrorIs(s.tasks.Save(s.ctx, &stolen), repositories.ErrNotFound)
}

func (s *RepositorySuite) TestTask_DeleteForUser() {
	task := s.newTask("doomed", time.Now())

	s.ErrorIs(s.tasks.DeleteForUser(s.ctx, task.ID, uuid.Must(uuid.NewV4())), repositories.ErrNotFound)
	s.Require().NoError(s.tasks.DeleteForUser(s.ctx, task.ID, s.owner.ID))
	s.ErrorIs(s.tasks.DeleteForUser(s.ctx, task.ID, s.owner.ID), repositories.ErrNotFound)
}

func (s *RepositorySuite) TestTask_ListDueOn() {
	today := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s.newTask("today", today)
	s.newTask("tomorrow", today.AddDate(0, 0, 1))
	done := s.newTask("done today", today)
	s.Require().NoError(done.RequestTransition(models.StatusCompleted, time.Now()))
	s.Require().NoError(s.tasks.Save(s.ctx, done))

	due, err := s.tasks.ListDueOn(s.ctx, today.Add(15*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal("today", due[0].Title)
}

func (s *RepositorySuite) TestToken_Lifecycle() {
	now := time.Now().UTC()
	token := &models.Token{
		UserId:       s.owner.ID,
		RefreshToken: uuid.Must(uuid.NewV4()),
		ExpiresAt:    now.Add(time.Hour),
	}
	s.Require().NoError(s.tokens.Create(s.ctx, token))

	got, err := s.tokens.GetValid(s.ctx, token.RefreshToken, now)
	s.Require().NoError(err)
	s.Equal(s.owner.ID, got.UserId)

	_, err = s.tokens.GetValid(s.ctx, token.RefreshToken, now.Add(2*time.Hour))
	s.ErrorIs(err, repositories.ErrNotFound)

	s.Require().NoError(s.tokens.Delete(s.ctx, token.RefreshToken))
	s.ErrorIs(s.tokens.Delete(s.ctx, token.RefreshToken), repositories.ErrNotFound)
}

func (s *RepositorySuite) TestToken_DeleteExpired() {
	now := time.Now().UTC()
	for _, exp := range []time.Time{now.Add(-time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		s.Require().NoError(s.tokens.Create(s.ctx, &models.Token{
			UserId: s.owner.ID, RefreshToken: uuid.Must(uuid.NewV4()), ExpiresAt: exp,
		}))
	}

	removed, err := s.tokens.DeleteExpired(s.ctx, now)
	s.Require().NoError(err)
	s.Equal(int64(2), removed)
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func TestTranslateNotFound(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	_, err = repositories.NewUserRepository(db).GetByID(context.Background(), uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}
