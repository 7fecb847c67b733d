package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobQueue pushes jobs onto Redis lists. Jobs due in the future wait in a
// sorted set scored by their due time until PromoteDue moves them.
type JobQueue struct {
	client   *redis.Client
	maxTries int
	now      func() time.Time
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client, maxTries: defaultMaxTries, now: time.Now}
}

// SetMaxTries sets how many attempts new jobs get before they are moved to
// the dead-letter queue.
func (q *JobQueue) SetMaxTries(n int) {
	if n > 0 {
		q.maxTries = n
	}
}

func (q *JobQueue) Enqueue(ctx context.Context, queue string, jobType JobType, payload interface{}) (*Job, error) {
	return q.EnqueueAt(ctx, queue, jobType, payload, q.now())
}

func (q *JobQueue) EnqueueAt(ctx context.Context, queue string, jobType JobType, payload interface{}, processAt time.Time) (*Job, error) {
	job, err := newJob(queue, jobType, payload, q.now(), processAt)
	if err != nil {
		return nil, err
	}
	job.MaxTries = q.maxTries
	if err := q.push(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (q *JobQueue) push(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if job.ProcessAt.After(q.now()) {
		return q.client.ZAdd(ctx, ScheduledQueue, redis.Z{
			Score:  float64(job.ProcessAt.UnixMilli()),
			Member: data,
		}).Err()
	}
	return q.client.RPush(ctx, job.Queue, data).Err()
}

// PromoteDue moves every scheduled job whose time has come onto its queue.
// ZREM decides ownership, so concurrent promoters never double-push.
func (q *JobQueue) PromoteDue(ctx context.Context) (int, error) {
	members, err := q.client.ZRangeByScore(ctx, ScheduledQueue, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(q.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read scheduled jobs: %w", err)
	}

	promoted := 0
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, ScheduledQueue, member).Result()
		if err != nil {
			return promoted, err
		}
		if removed == 0 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			if pushErr := q.pushDead(ctx, DeadJob{Error: err.Error(), FailedAt: q.now()}); pushErr != nil {
				return promoted, pushErr
			}
			continue
		}
		if err := q.client.RPush(ctx, job.Queue, member).Err(); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

func (q *JobQueue) pushDead(ctx context.Context, dead DeadJob) error {
	data, err := json.Marshal(dead)
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}
	return q.client.RPush(ctx, DeadQueue, data).Err()
}

// ClaimPeriodic takes the scheduling slot for jobType until the given time.
// Only the caller that gets true should enqueue the next run.
func (q *JobQueue) ClaimPeriodic(ctx context.Context, jobType JobType, until time.Time) (bool, error) {
	// Release the slot slightly before the run so the run itself can
	// claim the one after it.
	ttl := until.Sub(q.now()) - time.Second
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	ok, err := q.client.SetNX(ctx, "periodic:"+string(jobType), until.Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim periodic job %s: %w", jobType, err)
	}
	return ok, nil
}

func (q *JobQueue) GetQueueSize(ctx context.Context, queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if queue == ScheduledQueue {
		return q.client.ZCard(ctx, queue).Result()
	}
	return q.client.LLen(ctx, queue).Result()
}

// DeadJobs returns up to limit entries from the dead-letter queue.
func (q *JobQueue) DeadJobs(ctx context.Context, limit int64) ([]DeadJob, error) {
	raw, err := q.client.LRange(ctx, DeadQueue, 0, limit-1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	out := make([]DeadJob, 0, len(raw))
	for _, item := range raw {
		var dead DeadJob
		if err := json.Unmarshal([]byte(item), &dead); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dead job: %w", err)
		}
		out = append(out, dead)
	}
	return out, nil
}
