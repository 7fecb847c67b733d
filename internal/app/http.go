package app

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"todo-planner/internal/handlers"
	"todo-planner/internal/logger"
	"todo-planner/internal/middleware"
	"todo-planner/internal/services"
)

type routeServices struct {
	tasks    services.TaskService
	auth     services.AuthService
	register services.RegisterService
	users    services.UserService
}

func (a *App) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if slices.Contains(a.cfg.Server.AllowedOrigins, "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = a.cfg.Server.AllowedOrigins
	}
	return cfg
}

func (a *App) newRouter(svc routeServices) *gin.Engine {
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	httpLog := logger.Component(a.log, "http")

	router := gin.New()
	router.Use(middleware.RecoveryWithLog(httpLog))
	router.Use(middleware.RequestLogger(httpLog))
	router.Use(a.monitor.Middleware())
	router.Use(cors.New(a.corsConfig()))

	router.GET("/health", a.monitor.HealthHandler())
	router.GET("/ready", a.monitor.ReadinessHandler())
	router.GET("/live", a.monitor.LivenessHandler())
	router.GET("/metrics", a.monitor.MetricsHandler())

	api := router.Group("/api/v1")
	if a.limiter != nil {
		api.Use(a.limiter.Middleware())
	}

	authHandler := handlers.NewAuthHandler(svc.auth, httpLog)
	registerHandler := handlers.NewRegisterHandler(svc.register, httpLog)
	refreshHandler := handlers.NewRefreshHandler(svc.auth, httpLog)
	logoutHandler := handlers.NewLogoutHandler(svc.auth, httpLog)
	userHandler := handlers.NewUserHandler(svc.users, httpLog)
	taskHandler := handlers.NewTaskHandler(svc.tasks, a.clock, httpLog)

	authRouter := api.Group("/auth")
	authRouter.POST("/register", registerHandler.Registration)
	authRouter.POST("/token", authHandler.Token)
	authRouter.POST("/refresh", refreshHandler.Refresh)
	authRouter.POST("/logout", logoutHandler.Logout)

	protected := api.Group("")
	protected.Use(middleware.AuthzMiddleware(middleware.AuthzConfig{
		Secret: []byte(a.cfg.Auth.JWTSecret),
		Issuer: a.cfg.Auth.Issuer,
	}))
	protected.GET("/users/me", userHandler.GetUserProfile)

	tasks := protected.Group("/tasks")
	tasks.GET("", taskHandler.GetDashboard)
	tasks.POST("", taskHandler.CreateTask)
	tasks.GET("/:id", taskHandler.GetTaskByID)
	tasks.PUT("/:id", taskHandler.UpdateTask)
	tasks.PATCH("/:id/status", taskHandler.UpdateTaskStatus)
	tasks.DELETE("/:id", taskHandler.DeleteTask)

	return router
}

// Run serves HTTP and runs the background worker until ctx is cancelled,
// then shuts down gracefully and releases all resources.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	server := &http.Server{
		Addr:         a.cfg.GetServerAddr(),
		Handler:      a.router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	if a.worker != nil {
		a.worker.Start()
	}
	if a.limiter != nil {
		go a.sweepRateLimiter(ctx)
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().
			Str("addr", server.Addr).
			Str("environment", a.cfg.Server.Environment).
			Msg("setting up http server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			a.log.Error().Err(err).Msg("failed to listen and serve http")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("failed to shutdown http server")
		return err
	}
	a.log.Info().Msg("shut down http server")
	return nil
}

func (a *App) sweepRateLimiter(ctx context.Context) {
	interval := a.cfg.RateLimit.CleanupInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Cleanup(); n > 0 {
				a.log.Debug().Int("removed", n).Msg("rate limiter visitors expired")
			}
		}
	}
}
