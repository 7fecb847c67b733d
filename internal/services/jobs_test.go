package services_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-planner/internal/clock"
	"todo-planner/internal/models"
	"todo-planner/internal/repositories"
	"todo-planner/internal/services"
	"todo-planner/internal/worker"
)

func TestReminderHandler_LogsActiveTasksDueToday(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateTask(ctx, f.owner.ID, services.TaskInput{Title: "due-now", DueDate: testNow})
	require.NoError(t, err)
	_, err = f.service.CreateTask(ctx, f.owner.ID, services.TaskInput{Title: "due-later", DueDate: testNow.AddDate(0, 0, 1)})
	require.NoError(t, err)
	done, err := f.service.CreateTask(ctx, f.owner.ID, services.TaskInput{Title: "done-now", DueDate: testNow})
	require.NoError(t, err)
	_, err = f.service.ChangeStatus(ctx, f.owner.ID, done.ID, models.StatusCompleted)
	require.NoError(t, err)

	var buf bytes.Buffer
	handler := services.NewReminderHandler(f.tasks, clock.Fixed(testNow), zerolog.New(&buf))
	require.NoError(t, handler(ctx, &worker.Job{Type: worker.JobTypeTaskReminder}))

	out := buf.String()
	assert.Contains(t, out, "due-now")
	assert.NotContains(t, out, "due-later")
	assert.NotContains(t, out, "done-now")
}

func TestTokenCleanupHandler(t *testing.T) {
	db := newTestDB(t)
	tokens := repositories.NewTokenRepository(db)
	ctx := context.Background()
	userID := uuid.Must(uuid.NewV4())

	require.NoError(t, tokens.Create(ctx, &models.Token{UserId: userID, RefreshToken: uuid.Must(uuid.NewV4()), ExpiresAt: testNow.Add(-time.Hour)}))
	live := uuid.Must(uuid.NewV4())
	require.NoError(t, tokens.Create(ctx, &models.Token{UserId: userID, RefreshToken: live, ExpiresAt: testNow.Add(time.Hour)}))

	handler := services.NewTokenCleanupHandler(tokens, clock.Fixed(testNow), zerolog.Nop())
	require.NoError(t, handler(ctx, &worker.Job{Type: worker.JobTypeTokenCleanup}))

	_, err := tokens.GetValid(ctx, live, testNow)
	assert.NoError(t, err)
	removed, err := tokens.DeleteExpired(ctx, testNow)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestStatusChangedHandler_DecodesPayload(t *testing.T) {
	change := services.StatusChange{
		TaskID: uuid.Must(uuid.NewV4()),
		UserID: uuid.Must(uuid.NewV4()),
		From:   models.StatusPending,
		To:     models.StatusCompleted,
		At:     testNow,
	}
	payload, err := json.Marshal(change)
	require.NoError(t, err)

	var buf bytes.Buffer
	handler := services.NewStatusChangedHandler(zerolog.New(&buf))
	require.NoError(t, handler(context.Background(), &worker.Job{Payload: payload}))
	assert.Contains(t, buf.String(), `"to":"Completed"`)

	err = handler(context.Background(), &worker.Job{Payload: json.RawMessage(`{"task_id":42}`)})
	assert.Error(t, err)
}
