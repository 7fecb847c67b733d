package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func newTestWorker(client *redis.Client) *Worker {
	return NewWorker(WorkerConfig{
		RedisClient:  client,
		Concurrency:  1,
		PollInterval: 20 * time.Millisecond,
		BlockTimeout: 50 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})
}

type greeting struct {
	Name string `json:"name"`
}

func TestJobQueue_EnqueueImmediate(t *testing.T) {
	client, mr := setupRedis(t)
	q := NewJobQueue(client)

	job, err := q.Enqueue(context.Background(), DefaultQueue, JobTypeTaskStatusChanged, greeting{Name: "a"})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)

	items, err := mr.List(DefaultQueue)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var stored Job
	require.NoError(t, json.Unmarshal([]byte(items[0]), &stored))
	assert.Equal(t, JobTypeTaskStatusChanged, stored.Type)

	var payload greeting
	require.NoError(t, stored.Decode(&payload))
	assert.Equal(t, "a", payload.Name)
}

func TestJobQueue_EnqueueAtFutureGoesToScheduledSet(t *testing.T) {
	client, mr := setupRedis(t)
	q := NewJobQueue(client)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := q.EnqueueAt(ctx, DefaultQueue, JobTypeTaskReminder, nil, now.Add(time.Hour))
	require.NoError(t, err)

	size, err := q.GetQueueSize(ctx, ScheduledQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
	assert.False(t, mr.Exists(DefaultQueue))

	n, err := q.PromoteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	now = now.Add(2 * time.Hour)
	n, err = q.PromoteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	size, err = q.GetQueueSize(ctx, DefaultQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
	size, err = q.GetQueueSize(ctx, ScheduledQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestJobQueue_ClaimPeriodic(t *testing.T) {
	client, mr := setupRedis(t)
	q := NewJobQueue(client)
	ctx := context.Background()

	ok, err := q.ClaimPeriodic(ctx, JobTypeTokenCleanup, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.ClaimPeriodic(ctx, JobTypeTokenCleanup, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Hour)
	ok, err = q.ClaimPeriodic(ctx, JobTypeTokenCleanup, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWorker_ProcessesJob(t *testing.T) {
	client, _ := setupRedis(t)
	w := newTestWorker(client)

	received := make(chan string, 1)
	w.RegisterHandler(JobTypeTaskStatusChanged, func(ctx context.Context, job *Job) error {
		var g greeting
		if err := job.Decode(&g); err != nil {
			return err
		}
		received <- g.Name
		return nil
	})

	w.Start()
	defer w.Stop()

	_, err := w.Queue().Enqueue(context.Background(), DefaultQueue, JobTypeTaskStatusChanged, greeting{Name: "hello"})
	require.NoError(t, err)

	select {
	case name := <-received:
		assert.Equal(t, "hello", name)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}
}

func TestWorker_FailedJobIsScheduledForRetry(t *testing.T) {
	client, _ := setupRedis(t)
	w := newTestWorker(client)
	ctx := context.Background()

	job, err := newJob(DefaultQueue, JobTypeTaskStatusChanged, nil, time.Now(), time.Now())
	require.NoError(t, err)

	w.RegisterHandler(JobTypeTaskStatusChanged, func(ctx context.Context, job *Job) error {
		return errors.New("downstream unavailable")
	})

	require.NoError(t, w.executeJob(ctx, job))

	members, err := client.ZRange(ctx, ScheduledQueue, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, members, 1)

	var retried Job
	require.NoError(t, json.Unmarshal([]byte(members[0]), &retried))
	assert.Equal(t, 1, retried.Attempts)
	assert.Equal(t, RetryQueue, retried.Queue)
	assert.True(t, retried.ProcessAt.After(time.Now()))
}

func TestWorker_ExhaustedJobGoesToDeadQueue(t *testing.T) {
	client, _ := setupRedis(t)
	w := newTestWorker(client)
	ctx := context.Background()

	job, err := newJob(DefaultQueue, JobTypeTaskStatusChanged, nil, time.Now(), time.Now())
	require.NoError(t, err)
	job.MaxTries = 1

	w.RegisterHandler(JobTypeTaskStatusChanged, func(ctx context.Context, job *Job) error {
		return errors.New("broken")
	})

	require.NoError(t, w.executeJob(ctx, job))

	dead, err := w.Queue().DeadJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "broken", dead[0].Error)
	assert.Equal(t, job.ID, dead[0].Job.ID)
}

func TestWorker_UnknownJobTypeGoesToDeadQueue(t *testing.T) {
	client, _ := setupRedis(t)
	w := newTestWorker(client)
	ctx := context.Background()

	job, err := newJob(DefaultQueue, JobType("mystery"), nil, time.Now(), time.Now())
	require.NoError(t, err)

	require.NoError(t, w.executeJob(ctx, job))

	dead, err := w.Queue().DeadJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, JobType("mystery"), dead[0].Job.Type)
}

func TestWorker_PeriodicJobReschedulesItself(t *testing.T) {
	client, mr := setupRedis(t)
	w := newTestWorker(client)
	ctx := context.Background()

	var runs atomic.Int32
	w.RegisterPeriodic(Periodic{Type: JobTypeTokenCleanup, Next: Every(time.Hour)}, func(ctx context.Context, job *Job) error {
		runs.Add(1)
		return nil
	})

	w.Start()
	defer w.Stop()

	size, err := w.Queue().GetQueueSize(ctx, ScheduledQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size, "start seeds the first run")

	job, err := newJob(DefaultQueue, JobTypeTokenCleanup, nil, time.Now(), time.Now())
	require.NoError(t, err)
	mr.FastForward(time.Hour)
	require.NoError(t, w.executeJob(ctx, job))

	assert.Equal(t, int32(1), runs.Load())
	size, err = w.Queue().GetQueueSize(ctx, ScheduledQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(2), size, "the run claims and schedules the next one")
}

func TestNextMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	next := NextMidnight(loc)(time.Date(2025, 1, 31, 23, 30, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2025, 2, 2, 0, 0, 0, 0, loc), next)
}

func TestJob_DecodeWithoutPayload(t *testing.T) {
	job := &Job{ID: "x"}
	assert.Error(t, job.Decode(&greeting{}))
}

func TestJobQueue_SetMaxTries(t *testing.T) {
	client, _ := setupRedis(t)
	q := NewJobQueue(client)

	q.SetMaxTries(0)
	job, err := q.Enqueue(context.Background(), DefaultQueue, JobTypeTokenCleanup, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultMaxTries, job.MaxTries)

	q.SetMaxTries(5)
	job, err = q.Enqueue(context.Background(), DefaultQueue, JobTypeTokenCleanup, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, job.MaxTries)
}
