package server

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskflow-api/core/cache"
	"taskflow-api/core/config"
	"taskflow-api/core/constants"
	"taskflow-api/core/database"
	"taskflow-api/core/logger"
	"taskflow-api/core/middleware"
	"taskflow-api/core/queue"
	"taskflow-api/core/storage"
	"taskflow-api/modules/calendar"
	calendarService "taskflow-api/modules/calendar/service"
	"taskflow-api/modules/notification"
	notifRepository "taskflow-api/modules/notification/repository"
	notifService "taskflow-api/modules/notification/service"
	"taskflow-api/modules/task"
	taskRepository "taskflow-api/modules/task/repository"
	userRepository "taskflow-api/modules/user/repository"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

const (
	shutdownTimeout   = 30 * time.Second
	workerConcurrency = 5
)

// app holds the shared infrastructure every command needs.
type app struct {
	cfg   *config.Config
	db    database.Database
	cache cache.Cache
	queue *queue.Client
	store storage.ObjectStore
	users *userRepository.UserRepository
	tasks *taskRepository.TaskRepository
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})

	db, err := database.InitDB(database.DatabaseConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	a := &app{cfg: cfg, db: db}
	a.users = userRepository.NewUserRepository(&a.db)
	a.tasks = taskRepository.NewTaskRepository(&a.db)

	if cfg.Redis.Addr != "" {
		c, err := cache.NewRedisCache(cache.RedisConfig{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			logger.Warn("Server:Cache:RedisUnavailable", "error", err)
			a.cache = cache.NewMemoryCache()
		} else {
			a.cache = c
			a.queue = queue.NewClient(queue.RedisConfig{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		}
	} else {
		a.cache = cache.NewMemoryCache()
	}

	if cfg.Storage.S3Bucket != "" {
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.Storage.S3Bucket,
			Region:    cfg.Storage.S3Region,
			Endpoint:  cfg.Storage.S3Endpoint,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
			Prefix:    cfg.Storage.S3Prefix,
		})
		if err != nil {
			logger.Warn("Server:Storage:Unavailable", "error", err)
		} else {
			a.store = store
		}
	}

	return a, nil
}

func (a *app) close() {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
	a.db.Close()
}

func (a *app) calendarOptions(notifier calendarService.Notifier) calendar.Options {
	return calendar.Options{
		Config:   a.cfg,
		DB:       &a.db,
		Cache:    a.cache,
		Users:    a.users,
		Tasks:    a.tasks,
		Notifier: notifier,
		Store:    a.store,
		Queue:    a.queue,
	}
}

// Run serves the HTTP API, the push worker and the sync scheduler until
// SIGINT or SIGTERM.
func Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(echoMiddleware.CORS())

	e.GET("/health", func(c echo.Context) error {
		pingCtx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{"status": "ok", "database": "ok", "cache": "ok"}
		code := http.StatusOK
		if err := a.db.SQLx().PingContext(pingCtx); err != nil {
			status["database"], status["status"], code = err.Error(), "degraded", http.StatusServiceUnavailable
		}
		if err := a.cache.Ping(pingCtx); err != nil {
			status["cache"], status["status"], code = err.Error(), "degraded", http.StatusServiceUnavailable
		}
		return c.JSON(code, status)
	})

	mw := middleware.NewMiddleware()
	notifSvc := notification.Init(e.Group("/api/v1/private"), &a.db, mw)

	calMod, err := calendar.Init(e, mw, a.calendarOptions(notifSvc))
	if err != nil {
		return err
	}
	task.Init(e, a.tasks, mw, calMod.Pusher)

	var w *queue.Worker
	if a.queue != nil {
		w = queue.NewWorker(queue.RedisConfig{Addr: a.cfg.Redis.Addr, Password: a.cfg.Redis.Password, DB: a.cfg.Redis.DB}, workerConcurrency)
		w.Handle(constants.TaskTypeCalendarPushTask, calMod.PushHandler)
		if err := w.Start(); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
	}

	if err := calMod.Scheduler.Start(ctx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
		logger.Info("Server:Start", "addr", addr, "env", a.cfg.Server.Env)
		if err := e.Start(addr); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Server:Shutdown:Signal")
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server:Start:Error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	select {
	case <-calMod.Scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("Server:Shutdown:SchedulerTimeout")
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server:Shutdown:Error", "error", err)
	}
	if w != nil {
		w.Shutdown()
	}
	logger.Info("Server:Shutdown:Complete")
	return nil
}

// RunSync runs one sync from the command line, for a single user or for every
// active user, and writes the result as JSON to stdout.
func RunSync(ctx context.Context, userID string, all bool) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	notifier := notifService.NewNotificationService(notifRepository.NewNotificationRepository(&a.db))
	calMod, err := calendar.Build(a.calendarOptions(notifier))
	if err != nil {
		return err
	}

	var result any
	if all {
		result = calMod.Scheduler.RunPass(ctx, calendarService.TriggerCLI)
	} else {
		id, err := uuid.Parse(userID)
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", userID, err)
		}
		outcome, err := calMod.Engine.ManualSync(ctx, id, "")
		if err != nil {
			return err
		}
		result = outcome
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
