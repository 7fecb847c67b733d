package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"

	"todo-planner/internal/cache"
	"todo-planner/internal/clock"
	"todo-planner/internal/dashboard"
	"todo-planner/internal/models"
)

// CachedTaskService caches each owner's task list. Any write for an owner
// drops that owner's entry. Dashboards are rebuilt from the list on every
// call so the due-today view follows the clock.
//
// Each owner has a generation that every write bumps. A list loaded under
// an older generation is returned to its caller but never stored.
type CachedTaskService struct {
	taskService TaskService
	cache       cache.Cache
	clock       clock.Clock
	ttl         time.Duration
	log         zerolog.Logger

	mu          sync.Mutex
	generations map[uuid.UUID]*ownerGeneration
}

type ownerGeneration struct {
	mu  sync.Mutex
	gen uint64
}

func NewCachedTaskService(taskService TaskService, cacheInstance cache.Cache, c clock.Clock, ttl time.Duration, log zerolog.Logger) *CachedTaskService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedTaskService{
		taskService: taskService,
		cache:       cacheInstance,
		clock:       c,
		ttl:         ttl,
		log:         log,
		generations: make(map[uuid.UUID]*ownerGeneration),
	}
}

func (s *CachedTaskService) generation(userID uuid.UUID) *ownerGeneration {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[userID]
	if !ok {
		g = &ownerGeneration{}
		s.generations[userID] = g
	}
	return g
}

func userTasksKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_tasks:%s", userID.String())
}

func (s *CachedTaskService) invalidate(ctx context.Context, userID uuid.UUID) {
	g := s.generation(userID)
	g.mu.Lock()
	g.gen++
	g.mu.Unlock()

	if err := s.cache.Delete(ctx, userTasksKey(userID)); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to invalidate task cache")
	}
}

func (s *CachedTaskService) CreateTask(ctx context.Context, userID uuid.UUID, input TaskInput) (*models.Task, error) {
	task, err := s.taskService.CreateTask(ctx, userID, input)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return task, nil
}

func (s *CachedTaskService) GetTask(ctx context.Context, userID, id uuid.UUID) (*models.Task, error) {
	return s.taskService.GetTask(ctx, userID, id)
}

func (s *CachedTaskService) ListTasks(ctx context.Context, userID uuid.UUID) ([]models.Task, error) {
	key := userTasksKey(userID)

	var cached []models.Task
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn().Err(err).Str("key", key).Msg("task cache read failed")
	}

	g := s.generation(userID)
	g.mu.Lock()
	loadedAt := g.gen
	g.mu.Unlock()

	tasks, err := s.taskService.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.store(ctx, g, loadedAt, key, tasks)
	return tasks, nil
}

// store writes tasks unless a write for the owner happened since they were
// loaded. The generation lock is held across the cache write, so an
// invalidation either skips this store or deletes after it.
func (s *CachedTaskService) store(ctx context.Context, g *ownerGeneration, loadedAt uint64, key string, tasks []models.Task) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != loadedAt {
		s.log.Debug().Str("key", key).Msg("task list changed while loading, not caching")
		return
	}
	if err := s.cache.Set(ctx, key, tasks, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("task cache write failed")
	}
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, userID, id uuid.UUID, input TaskInput) (*models.Task, error) {
	task, err := s.taskService.UpdateTask(ctx, userID, id, input)
	if err == nil {
		s.invalidate(ctx, userID)
	}
	return task, err
}

func (s *CachedTaskService) ChangeStatus(ctx context.Context, userID, id uuid.UUID, status models.TaskStatus) (*models.Task, error) {
	task, err := s.taskService.ChangeStatus(ctx, userID, id, status)
	if err == nil {
		s.invalidate(ctx, userID)
	}
	return task, err
}

func (s *CachedTaskService) DeleteTask(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.taskService.DeleteTask(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CachedTaskService) GetDashboard(ctx context.Context, userID uuid.UUID, sortBy string) (dashboard.Dashboard, error) {
	tasks, err := s.ListTasks(ctx, userID)
	if err != nil {
		return dashboard.Dashboard{}, err
	}
	return dashboard.Build(tasks, dashboard.ParseSortKey(sortBy), clock.Today(s.clock)), nil
}

func (s *CachedTaskService) GetCacheStats() map[string]interface{} {
	return s.cache.Stats()
}
