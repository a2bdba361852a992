package calendar

import (
	"fmt"
	"time"

	"taskflow-api/core/cache"
	"taskflow-api/core/config"
	"taskflow-api/core/database"
	"taskflow-api/core/logger"
	"taskflow-api/core/middleware"
	"taskflow-api/core/queue"
	"taskflow-api/core/storage"
	"taskflow-api/modules/calendar/controller"
	"taskflow-api/modules/calendar/provider"
	"taskflow-api/modules/calendar/repository"
	"taskflow-api/modules/calendar/router"
	"taskflow-api/modules/calendar/service"
	"taskflow-api/modules/calendar/worker"
	taskRepository "taskflow-api/modules/task/repository"
	taskService "taskflow-api/modules/task/service"
	userRepository "taskflow-api/modules/user/repository"

	"github.com/labstack/echo/v4"
)

type Options struct {
	Config   *config.Config
	DB       database.IDatabase
	Cache    cache.Cache
	Users    *userRepository.UserRepository
	Tasks    *taskRepository.TaskRepository
	Notifier service.Notifier    // optional
	Store    storage.ObjectStore // optional
	Queue    *queue.Client       // optional, pushes run inline without it
}

type Module struct {
	Engine      *service.SyncEngine
	Scheduler   *service.Scheduler
	PushHandler *worker.PushTaskHandler
	Pusher      taskService.CalendarPusher
	Connector   *service.ConnectService // nil unless the provider is google
}

// Build wires the sync engine, scheduler and push worker without HTTP routes.
func Build(opts Options) (*Module, error) {
	cfg := opts.Config.Sync

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	connections := repository.NewCalendarRepository(opts.DB)
	records := repository.NewSyncRecordRepository(opts.DB, opts.Tasks)

	prov, err := NewProvider(opts.Config, connections)
	if err != nil {
		return nil, err
	}

	emitters := service.MultiEmitter{service.LogEmitter{}}
	if opts.Notifier != nil && cfg.NotifyUsers {
		emitters = append(emitters, service.NewNotificationEmitter(opts.Notifier))
	}
	if opts.Store != nil {
		emitters = append(emitters, service.NewReportArchiver(opts.Store))
	}

	engine := service.NewSyncEngine(opts.Users, records, prov, opts.Cache, emitters, service.EngineConfig{
		DefaultCredentialID: cfg.CredentialID,
		CalendarID:          cfg.CalendarID,
		WindowDays:          cfg.WindowDays,
		EventLimit:          cfg.EventLimit,
		LockTTL:             lockTTL(cfg),
		Location:            loc,
		TaskTitlePrefix:     cfg.TaskTitlePrefix,
	})

	schedulerCredential := cfg.CredentialID
	if prov == nil {
		schedulerCredential = ""
	}
	scheduler := service.NewScheduler(opts.Users, engine, emitters, service.SchedulerConfig{
		CredentialID: schedulerCredential,
		Interval:     time.Duration(cfg.IntervalMinutes) * time.Minute,
		PassTimeout:  passTimeout(cfg),
	})

	handler := worker.NewPushTaskHandler(opts.Tasks, engine)

	m := &Module{Engine: engine, Scheduler: scheduler, PushHandler: handler}
	if google, ok := prov.(*provider.GoogleProvider); ok {
		states := repository.NewOAuthStateRepository(opts.DB)
		m.Connector = service.NewConnectService(google, states, connections, opts.Users)
	}
	switch {
	case prov == nil:
		// no provider, nothing to push to
	case opts.Queue != nil:
		m.Pusher = worker.NewQueuePusher(opts.Queue)
	default:
		m.Pusher = worker.NewInlinePusher(handler)
	}
	return m, nil
}

func passTimeout(cfg config.SyncConfig) time.Duration {
	if cfg.PassTimeoutMinutes <= 0 {
		return service.DefaultPassTimeout
	}
	return time.Duration(cfg.PassTimeoutMinutes) * time.Minute
}

// lockTTL never expires a user lock before the pass holding it can time out.
func lockTTL(cfg config.SyncConfig) time.Duration {
	ttl := time.Duration(cfg.LockTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = service.DefaultLockTTL
	}
	if pass := passTimeout(cfg); ttl < pass {
		logger.Warn("Calendar:Build:LockTTLRaised", "lock_ttl", ttl.String(), "pass_timeout", pass.String())
		ttl = pass
	}
	return ttl
}

// Init builds the module and registers its routes.
func Init(e *echo.Echo, mw *middleware.Middleware, opts Options) (*Module, error) {
	m, err := Build(opts)
	if err != nil {
		return nil, err
	}

	var connector controller.Connector
	if m.Connector != nil {
		connector = m.Connector
	}
	ctrl := controller.NewCalendarController(m.Engine, m.Scheduler, connector)
	router.NewCalendarRouter(ctrl).Setup(e, mw)
	return m, nil
}

// NewProvider returns the configured provider, or nil when its credentials
// are missing.
func NewProvider(cfg *config.Config, connections provider.ConnectionStore) (provider.Provider, error) {
	switch cfg.Sync.Provider {
	case "", "nylas":
		if cfg.Nylas.APIKey == "" {
			logger.Warn("Calendar:Provider:NotConfigured", "provider", "nylas")
			return nil, nil
		}
		return provider.NewNylasProvider(provider.NylasConfig{
			APIKey: cfg.Nylas.APIKey,
			APIURI: cfg.Nylas.APIURI,
		}), nil
	case "google":
		if cfg.GoogleAPI.ClientID == "" || cfg.GoogleAPI.ClientSecret == "" {
			logger.Warn("Calendar:Provider:NotConfigured", "provider", "google")
			return nil, nil
		}
		return provider.NewGoogleProvider(provider.GoogleConfig{
			ClientID:     cfg.GoogleAPI.ClientID,
			ClientSecret: cfg.GoogleAPI.ClientSecret,
			RedirectURI:  cfg.GoogleAPI.RedirectURI,
		}, connections), nil
	default:
		return nil, fmt.Errorf("unknown calendar provider %q", cfg.Sync.Provider)
	}
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}
