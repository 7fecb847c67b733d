package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"todo-planner/internal/cache"
	"todo-planner/internal/clock"
	"todo-planner/internal/config"
	"todo-planner/internal/database"
	"todo-planner/internal/logger"
	"todo-planner/internal/middleware"
	"todo-planner/internal/monitoring"
	"todo-planner/internal/repositories"
	"todo-planner/internal/services"
	"todo-planner/internal/worker"
)

// App owns every long-lived component of the server.
type App struct {
	cfg   *config.Config
	log   zerolog.Logger
	clock clock.System

	db      *database.DatabasePool
	redis   *redis.Client
	cache   *cache.MultiLevelCache
	worker  *worker.Worker
	monitor *monitoring.Monitor
	limiter *middleware.RateLimiter
	router  *gin.Engine
}

// New connects to the database and, when enabled, Redis, then wires the
// services, the background worker and the router.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	sysClock, err := clock.LoadSystem(cfg.Server.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Server.Timezone, err)
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		clock:   sysClock,
		monitor: monitoring.NewMonitor(),
	}

	if err := a.connectDatabase(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.connectRedis(); err != nil {
		a.Close()
		return nil, err
	}

	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) connectDatabase() error {
	poolCfg := database.DefaultPoolConfig()
	poolCfg.Driver = a.cfg.Database.Driver
	poolCfg.DSN = a.cfg.GetDatabaseDSN()
	poolCfg.MaxOpenConns = a.cfg.Database.MaxOpenConns
	poolCfg.MaxIdleConns = a.cfg.Database.MaxIdleConns
	poolCfg.ConnMaxLifetime = a.cfg.Database.ConnMaxLifetime
	poolCfg.ConnMaxIdleTime = a.cfg.Database.ConnMaxIdleTime
	poolCfg.LogLevel = gormlogger.Warn
	if a.log.GetLevel() <= zerolog.DebugLevel {
		poolCfg.LogLevel = gormlogger.Info
	}

	pool, err := database.NewDatabasePool(poolCfg)
	if err != nil {
		return err
	}
	a.db = pool

	if a.cfg.Database.AutoMigrate {
		if err := pool.Migrate(); err != nil {
			return err
		}
	}

	a.log.Info().Str("driver", poolCfg.Driver).Msg("connected to database")
	a.monitor.RegisterHealthCheck("database", func(ctx context.Context) error {
		return pool.Health()
	})
	a.monitor.RegisterStats("database", func(ctx context.Context) interface{} {
		return pool.Stats()
	})
	return nil
}

func (a *App) connectRedis() error {
	if !a.cfg.Redis.Enabled {
		a.log.Info().Msg("redis disabled, running without shared cache and background jobs")
		return nil
	}

	client := cache.NewRedisClient(&cache.RedisConfig{
		Addr:         a.cfg.GetRedisAddr(),
		Password:     a.cfg.Redis.Password,
		DB:           a.cfg.Redis.DB,
		PoolSize:     a.cfg.Redis.PoolSize,
		MinIdleConns: a.cfg.Redis.MinIdleConns,
		MaxRetries:   a.cfg.Redis.MaxRetries,
		DialTimeout:  a.cfg.Redis.DialTimeout,
		ReadTimeout:  a.cfg.Redis.ReadTimeout,
		WriteTimeout: a.cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Redis.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to redis at %s: %w", a.cfg.GetRedisAddr(), err)
	}

	a.redis = client
	a.log.Info().Str("addr", a.cfg.GetRedisAddr()).Msg("connected to redis")
	a.monitor.RegisterHealthCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return nil
}

func (a *App) wire() error {
	users := repositories.NewUserRepository(a.db.DB)
	tasks := repositories.NewTaskRepository(a.db.DB)
	tokens := repositories.NewTokenRepository(a.db.DB)

	hasher, err := services.NewPasswordHasher(a.cfg.Auth.PasswordHasher, a.cfg.Auth.BCryptCost)
	if err != nil {
		return err
	}

	var events services.TaskEvents = services.NoopTaskEvents{}
	if a.redis != nil {
		queue := worker.NewJobQueue(a.redis)
		queue.SetMaxTries(a.cfg.Worker.MaxRetries)
		events = services.NewQueueTaskEvents(queue)
	}

	var taskService services.TaskService = services.NewTaskService(
		tasks, a.clock, events, logger.Component(a.log, "tasks"),
	)
	if a.cfg.Cache.Enabled {
		var l2 cache.Cache
		if a.redis != nil {
			l2 = cache.NewRedisCacheFromClient(a.redis)
		}
		a.cache = cache.NewMultiLevelCache(l2, cache.MultiLevelConfig{L1TTL: a.cfg.Cache.L1TTL}, logger.Component(a.log, "cache"))
		if a.redis != nil {
			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Redis.DialTimeout)
			err := a.cache.EnableInvalidation(ctx, a.redis)
			cancel()
			if err != nil {
				return err
			}
		}
		taskService = services.NewCachedTaskService(taskService, a.cache, a.clock, a.cfg.Cache.TaskTTL, logger.Component(a.log, "tasks_cache"))

		a.monitor.RegisterStats("cache", func(ctx context.Context) interface{} {
			return a.cache.Stats()
		})
	}

	authService := services.NewAuthService(users, tokens, hasher, a.clock, services.AuthConfig{
		Secret:          []byte(a.cfg.Auth.JWTSecret),
		Issuer:          a.cfg.Auth.Issuer,
		AccessTokenTTL:  a.cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: a.cfg.Auth.RefreshTokenTTL,
	}, logger.Component(a.log, "auth"))
	registerService := services.NewRegisterService(users, hasher, a.clock, logger.Component(a.log, "register"))
	userService := services.NewUserService(users)

	if a.redis != nil && a.cfg.Worker.Enabled {
		a.worker = a.newWorker(tasks, tokens)
	}

	if a.cfg.RateLimit.Enabled {
		a.limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMin: a.cfg.RateLimit.RequestsPerMin,
			BurstSize:      a.cfg.RateLimit.BurstSize,
			IdleTTL:        a.cfg.RateLimit.CleanupInterval,
		})
	}

	a.router = a.newRouter(routeServices{
		tasks:    taskService,
		auth:     authService,
		register: registerService,
		users:    userService,
	})
	return nil
}

func (a *App) newWorker(tasks repositories.TaskRepository, tokens repositories.TokenRepository) *worker.Worker {
	jobLog := logger.Component(a.log, "worker")
	w := worker.NewWorker(worker.WorkerConfig{
		RedisClient:  a.redis,
		Concurrency:  a.cfg.Worker.Concurrency,
		PollInterval: a.cfg.Worker.PollInterval,
		BlockTimeout: a.cfg.Worker.BlockTimeout,
		MaxTries:     a.cfg.Worker.MaxRetries,
		Queues:       a.cfg.Worker.Queues,
		Logger:       jobLog,
	})

	w.RegisterHandler(worker.JobTypeTaskStatusChanged, services.NewStatusChangedHandler(jobLog))
	w.RegisterPeriodic(worker.Periodic{
		Type: worker.JobTypeTaskReminder,
		Next: worker.NextMidnight(a.clock.Location),
	}, services.NewReminderHandler(tasks, a.clock, jobLog))
	w.RegisterPeriodic(worker.Periodic{
		Type: worker.JobTypeTokenCleanup,
		Next: worker.Every(time.Hour),
	}, services.NewTokenCleanupHandler(tokens, a.clock, jobLog))

	queue := w.Queue()
	a.monitor.RegisterStats("queues", func(ctx context.Context) interface{} {
		sizes := map[string]int64{}
		for _, name := range []string{worker.DefaultQueue, worker.RetryQueue, worker.ScheduledQueue, worker.DeadQueue} {
			n, err := queue.GetQueueSize(ctx, name)
			if err != nil {
				n = -1
			}
			sizes[name] = n
		}
		return sizes
	})
	return w
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() *gin.Engine {
	return a.router
}

// Close releases every resource New acquired. The worker is stopped before
// the Redis client it consumes from is closed.
func (a *App) Close() {
	if a.worker != nil {
		a.worker.Stop()
	}
	redisClosed := false
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Error().Err(err).Msg("failed to close cache")
		}
		redisClosed = a.redis != nil
	}
	if a.redis != nil && !redisClosed {
		if err := a.redis.Close(); err != nil {
			a.log.Error().Err(err).Msg("failed to close redis")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error().Err(err).Msg("failed to close database")
		}
	}
}
