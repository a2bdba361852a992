package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"taskflow-api/core/logger"
	"taskflow-api/core/utils"
	"taskflow-api/modules/calendar/dto"
	userEntity "taskflow-api/modules/user/entity"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const (
	StateIdle  = "idle"
	StateArmed = "armed"

	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"

	DefaultInterval    = 15 * time.Minute
	DefaultPassTimeout = 10 * time.Minute
)

type UserLister interface {
	ListActiveUsers(ctx context.Context) ([]userEntity.User, error)
}

type UserSyncer interface {
	SyncUserCalendar(ctx context.Context, userID uuid.UUID, credentialID string) (*dto.SyncOutcome, error)
	ResolveCredential(user *userEntity.User) string
}

type SchedulerConfig struct {
	// CredentialID is the deployment credential; empty keeps the scheduler idle.
	CredentialID string
	Interval     time.Duration
	PassTimeout  time.Duration
}

// Scheduler runs a sync pass over all active users on a fixed interval.
// Passes never overlap: a tick that fires while a pass is running is skipped.
type Scheduler struct {
	users   UserLister
	syncer  UserSyncer
	emitter Emitter
	cfg     SchedulerConfig
	now     func() time.Time

	mu       sync.Mutex
	state    string
	cron     *cron.Cron
	cancel   context.CancelFunc
	initial  sync.WaitGroup
	lastPass *dto.PassSummary
}

func NewScheduler(users UserLister, syncer UserSyncer, emitter Emitter, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = DefaultPassTimeout
	}
	if emitter == nil {
		emitter = LogEmitter{}
	}
	return &Scheduler{
		users:   users,
		syncer:  syncer,
		emitter: emitter,
		cfg:     cfg,
		now:     time.Now,
		state:   StateIdle,
	}
}

func (s *Scheduler) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Interval() time.Duration {
	return s.cfg.Interval
}

func (s *Scheduler) LastPass() *dto.PassSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPass
}

// Start runs one pass in the background and arms the recurring job. Without
// a credential it logs a warning and stays idle.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateArmed {
		return nil
	}
	if s.cfg.CredentialID == "" || s.syncer == nil {
		logger.Warn("CalendarScheduler:Start:MissingCredential", "state", StateIdle)
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cl := cronLogger{}
	c := cron.New(cron.WithLogger(cl))

	// The startup pass and the ticks run the same wrapped job, so
	// SkipIfStillRunning gates them together.
	var startedOnce atomic.Bool
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
		trigger := TriggerSchedule
		if startedOnce.CompareAndSwap(false, true) {
			trigger = TriggerStartup
		}
		s.RunPass(runCtx, trigger)
	}))

	c.Schedule(cron.Every(s.cfg.Interval), job)
	c.Start()

	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		job.Run()
	}()

	s.cron = c
	s.cancel = cancel
	s.state = StateArmed
	logger.Info("CalendarScheduler:Start:Armed", "interval", s.cfg.Interval.String(), "pass_timeout", s.cfg.PassTimeout.String())
	return nil
}

// Stop cancels in-flight passes. The returned context is done once the
// running pass has returned.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.cancel()
	cronDone := s.cron.Stop()
	s.cron = nil
	s.state = StateIdle

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.initial.Wait()
		cancel()
	}()
	logger.Info("CalendarScheduler:Stop")
	return ctx
}

// RunPass syncs every active user sequentially and records the summary.
func (s *Scheduler) RunPass(ctx context.Context, trigger string) *dto.PassSummary {
	passCtx, cancel := context.WithTimeout(ctx, s.cfg.PassTimeout)
	defer cancel()

	started := s.now()
	summary := &dto.PassSummary{
		PassID:    utils.GenerateID(),
		Trigger:   trigger,
		StartedAt: started,
		Outcomes:  []*dto.SyncOutcome{},
	}
	logger.Info("CalendarScheduler:Pass:Start", "pass_id", summary.PassID, "trigger", trigger)

	users, err := s.users.ListActiveUsers(passCtx)
	if err != nil {
		logger.Error("CalendarScheduler:Pass:ListUsersFailed", "pass_id", summary.PassID, "error", err)
		summary.Error = fmt.Sprintf("failed to list users: %v", err)
		summary.ErrorCount++
		return s.finish(ctx, summary, started)
	}

	for i := range users {
		if passCtx.Err() != nil {
			summary.Error = fmt.Sprintf("pass stopped after %d of %d users: %v", i, len(users), passCtx.Err())
			summary.ErrorCount++
			logger.Warn("CalendarScheduler:Pass:Interrupted", "pass_id", summary.PassID, "error", passCtx.Err())
			break
		}
		summary.Add(s.syncOne(passCtx, &users[i]))
	}

	return s.finish(ctx, summary, started)
}

// syncOne converts hard failures and panics into a zero-result outcome.
func (s *Scheduler) syncOne(ctx context.Context, user *userEntity.User) (outcome *dto.SyncOutcome) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("CalendarScheduler:SyncUser:Panic", "user_id", user.ID, "panic", p)
			outcome = dto.NewSyncOutcome(user.ID.String())
			outcome.UserEmail = user.Email
			outcome.AddError(fmt.Sprintf("panic: %v", p))
		}
	}()

	outcome, err := s.syncer.SyncUserCalendar(ctx, user.ID, s.syncer.ResolveCredential(user))
	if outcome == nil {
		outcome = dto.NewSyncOutcome(user.ID.String())
		outcome.UserEmail = user.Email
	}
	if err != nil {
		logger.Warn("CalendarScheduler:SyncUser:Failed", "user_id", user.ID, "error", err)
		outcome.TasksCreated = 0
		if len(outcome.Errors) == 0 {
			outcome.AddError(err.Error())
		}
	}
	return outcome
}

func (s *Scheduler) finish(ctx context.Context, summary *dto.PassSummary, started time.Time) *dto.PassSummary {
	summary.Duration = s.now().Sub(started)

	s.mu.Lock()
	s.lastPass = summary
	s.mu.Unlock()

	s.emitter.Emit(context.WithoutCancel(ctx), SyncEvent{Type: EventPassCompleted, At: s.now(), Summary: summary})
	return summary
}

// cronLogger routes robfig/cron's logs through the package logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("CalendarScheduler:Cron:"+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("CalendarScheduler:Cron:"+msg, append(keysAndValues, "error", err)...)
}
