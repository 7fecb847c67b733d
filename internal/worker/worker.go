package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type JobHandler func(ctx context.Context, job *Job) error

// Periodic describes a job that re-enqueues itself. Next returns the time
// of the run after now.
type Periodic struct {
	Type  JobType
	Queue string
	Next  func(now time.Time) time.Time
}

type Worker struct {
	client       *redis.Client
	queue        *JobQueue
	handlers     map[JobType]JobHandler
	periodic     map[JobType]Periodic
	queues       []string
	concurrency  int
	pollInterval time.Duration
	blockTimeout time.Duration
	retryBackoff time.Duration
	jobTimeout   time.Duration
	log          zerolog.Logger

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type WorkerConfig struct {
	RedisClient  *redis.Client
	Concurrency  int
	PollInterval time.Duration
	BlockTimeout time.Duration
	RetryBackoff time.Duration
	JobTimeout   time.Duration
	MaxTries     int
	Queues       []string
	Logger       zerolog.Logger
}

func NewWorker(config WorkerConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BlockTimeout <= 0 {
		config.BlockTimeout = 5 * time.Second
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = time.Minute
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Second
	}
	if len(config.Queues) == 0 {
		config.Queues = []string{DefaultQueue, RetryQueue}
	}

	queue := NewJobQueue(config.RedisClient)
	queue.SetMaxTries(config.MaxTries)

	return &Worker{
		client:       config.RedisClient,
		queue:        queue,
		handlers:     make(map[JobType]JobHandler),
		periodic:     make(map[JobType]Periodic),
		queues:       config.Queues,
		concurrency:  config.Concurrency,
		pollInterval: config.PollInterval,
		blockTimeout: config.BlockTimeout,
		retryBackoff: config.RetryBackoff,
		jobTimeout:   config.JobTimeout,
		log:          config.Logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Queue returns the producer side sharing this worker's Redis client.
func (w *Worker) Queue() *JobQueue {
	return w.queue
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

func (w *Worker) RegisterPeriodic(p Periodic, handler JobHandler) {
	if p.Queue == "" {
		p.Queue = DefaultQueue
	}
	w.mu.Lock()
	w.periodic[p.Type] = p
	w.mu.Unlock()
	w.RegisterHandler(p.Type, handler)
}

// Start launches the consumers and the scheduler loop, and seeds the first
// run of every periodic job unless another instance already has.
func (w *Worker) Start() {
	w.log.Info().Int("concurrency", w.concurrency).Strs("queues", w.queues).Msg("starting worker")

	w.mu.RLock()
	for _, p := range w.periodic {
		w.scheduleNext(w.ctx, p)
	}
	w.mu.RUnlock()

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop()
	}

	w.wg.Add(1)
	go w.schedulerLoop()
}

func (w *Worker) Stop() {
	w.log.Info().Msg("stopping worker")
	w.cancel()
	w.wg.Wait()
	w.log.Info().Msg("worker stopped")
}

func (w *Worker) workerLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		if err := w.processNextJob(w.ctx); err != nil {
			if w.ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("error processing job")
			select {
			case <-time.After(time.Second):
			case <-w.ctx.Done():
				return
			}
		}
	}
}

func (w *Worker) schedulerLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			n, err := w.queue.PromoteDue(w.ctx)
			if err != nil && w.ctx.Err() == nil {
				w.log.Error().Err(err).Msg("failed to promote scheduled jobs")
			}
			if n > 0 {
				w.log.Debug().Int("count", n).Msg("promoted scheduled jobs")
			}
		}
	}
}

func (w *Worker) processNextJob(ctx context.Context) error {
	result, err := w.client.BLPop(ctx, w.blockTimeout, w.queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return w.queue.pushDead(ctx, DeadJob{Error: "unreadable job: " + err.Error(), FailedAt: time.Now()})
	}

	return w.executeJob(ctx, &job)
}

func (w *Worker) executeJob(ctx context.Context, job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	periodic, isPeriodic := w.periodic[job.Type]
	w.mu.RUnlock()

	log := w.log.With().Str("job_id", job.ID).Str("job_type", string(job.Type)).Logger()

	if !exists {
		log.Error().Msg("no handler registered for job type")
		return w.queue.pushDead(ctx, DeadJob{Job: *job, Error: "no handler registered", FailedAt: time.Now()})
	}

	if isPeriodic {
		defer w.scheduleNext(ctx, periodic)
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	err := handler(jobCtx, job)
	if err == nil {
		log.Debug().Msg("job completed")
		return nil
	}

	job.Attempts++
	if job.Attempts < job.MaxTries {
		log.Warn().Err(err).Int("attempt", job.Attempts).Int("max_tries", job.MaxTries).Msg("job failed, retrying")
		return w.retryJob(ctx, job)
	}

	log.Error().Err(err).Int("attempts", job.Attempts).Msg("job failed permanently")
	return w.queue.pushDead(ctx, DeadJob{Job: *job, Error: err.Error(), FailedAt: time.Now()})
}

// retryJob re-schedules the job on the retry queue with an exponential
// delay.
func (w *Worker) retryJob(ctx context.Context, job *Job) error {
	delay := w.retryBackoff * time.Duration(1<<(job.Attempts-1))
	job.ProcessAt = w.queue.now().Add(delay)
	job.Queue = RetryQueue
	return w.queue.push(ctx, job)
}

func (w *Worker) scheduleNext(ctx context.Context, p Periodic) {
	next := p.Next(w.queue.now())
	claimed, err := w.queue.ClaimPeriodic(ctx, p.Type, next)
	if err != nil {
		w.log.Error().Err(err).Str("job_type", string(p.Type)).Msg("failed to schedule periodic job")
		return
	}
	if !claimed {
		return
	}
	if _, err := w.queue.EnqueueAt(ctx, p.Queue, p.Type, nil, next); err != nil {
		w.log.Error().Err(err).Str("job_type", string(p.Type)).Msg("failed to enqueue periodic job")
		return
	}
	w.log.Info().Str("job_type", string(p.Type)).Time("process_at", next).Msg("scheduled periodic job")
}

// NextMidnight returns a Next func running at 00:00 of the following day
// in loc.
func NextMidnight(loc *time.Location) func(time.Time) time.Time {
	return func(now time.Time) time.Time {
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}
}

// Every returns a Next func running interval after now.
func Every(interval time.Duration) func(time.Time) time.Time {
	return func(now time.Time) time.Time {
		return now.Add(interval)
	}
}
