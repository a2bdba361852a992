package service

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"taskflow-api/core/cache"
	"taskflow-api/core/constants"
	"taskflow-api/core/errors"
	"taskflow-api/core/logger"
	"taskflow-api/modules/calendar/dto"
	"taskflow-api/modules/calendar/entity"
	"taskflow-api/modules/calendar/provider"
	"taskflow-api/modules/calendar/repository"
	taskEntity "taskflow-api/modules/task/entity"
	userEntity "taskflow-api/modules/user/entity"
	userRepository "taskflow-api/modules/user/repository"

	"github.com/google/uuid"
)

const (
	DefaultWindowDays   = 30
	DefaultEventLimit   = 100
	DefaultLockTTL      = 10 * time.Minute
	DefaultTitlePrefix  = "[Task]"
	pushedEventDuration = time.Hour
	untitledEventTitle  = "Untitled event"
)

var ErrSyncInProgress = stdErrors.New("sync already in progress")

type UserReader interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*userEntity.User, error)
}

type EngineConfig struct {
	// DefaultCredentialID is used for users without a stored grant.
	DefaultCredentialID string
	CalendarID          string
	WindowDays          int
	EventLimit          int
	LockTTL             time.Duration
	Location            *time.Location
	TaskTitlePrefix     string
}

func (c *EngineConfig) applyDefaults() {
	if c.WindowDays <= 0 {
		c.WindowDays = DefaultWindowDays
	}
	if c.EventLimit <= 0 {
		c.EventLimit = DefaultEventLimit
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultLockTTL
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.TaskTitlePrefix == "" {
		c.TaskTitlePrefix = DefaultTitlePrefix
	}
}

// SyncEngine turns upcoming external events into tasks, one user at a time,
// and pushes scheduled tasks back out to the user's calendar.
type SyncEngine struct {
	users    UserReader
	records  repository.SyncRecordRepositoryInterface
	provider provider.Provider
	locker   cache.Cache
	emitter  Emitter
	cfg      EngineConfig
	now      func() time.Time
}

func NewSyncEngine(
	users UserReader,
	records repository.SyncRecordRepositoryInterface,
	prov provider.Provider,
	locker cache.Cache,
	emitter Emitter,
	cfg EngineConfig,
) *SyncEngine {
	cfg.applyDefaults()
	if emitter == nil {
		emitter = LogEmitter{}
	}
	return &SyncEngine{
		users:    users,
		records:  records,
		provider: prov,
		locker:   locker,
		emitter:  emitter,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock overrides the engine's notion of now.
func (e *SyncEngine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *SyncEngine) ProviderName() string {
	if e.provider == nil {
		return ""
	}
	return e.provider.Name()
}

// ResolveCredential returns the user's own grant, else the configured default.
func (e *SyncEngine) ResolveCredential(user *userEntity.User) string {
	if user != nil {
		if grant := user.GrantID(); grant != "" {
			return grant
		}
	}
	return e.cfg.DefaultCredentialID
}

// CredentialOwner is implemented by providers that can tell which user a
// credential belongs to.
type CredentialOwner interface {
	OwnsCredential(ctx context.Context, userID uuid.UUID, credentialID string) (bool, error)
}

// ManualSync runs one synchronous sync for userID. An explicit credentialID
// must be the user's resolved credential or one the provider attributes to
// the user.
func (e *SyncEngine) ManualSync(ctx context.Context, userID uuid.UUID, credentialID string) (*dto.SyncOutcome, error) {
	if e.provider == nil {
		return nil, errors.NewAppError(errors.ErrProviderNotConfigured, "calendar provider is not configured", nil)
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if stdErrors.Is(err, userRepository.ErrUserNotFound) {
			return nil, errors.NewAppError(errors.ErrNotFound, "user not found", err)
		}
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load user", err)
	}

	resolved := e.ResolveCredential(user)
	if credentialID == "" {
		credentialID = resolved
	} else if credentialID != resolved {
		if appErr := e.checkOwnership(ctx, userID, credentialID); appErr != nil {
			return nil, appErr
		}
	}
	if credentialID == "" {
		return nil, errors.NewAppError(errors.ErrProviderNotConfigured, "no calendar credential for user", nil)
	}

	return e.SyncUserCalendar(ctx, userID, credentialID)
}

func (e *SyncEngine) checkOwnership(ctx context.Context, userID uuid.UUID, credentialID string) *errors.AppError {
	owner, ok := e.provider.(CredentialOwner)
	if !ok {
		logger.Warn("SyncEngine:ManualSync:ForeignCredential", "user_id", userID)
		return errors.NewAppError(errors.ErrForbidden, "credential does not belong to user", nil)
	}

	owns, err := owner.OwnsCredential(ctx, userID, credentialID)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to verify credential", err)
	}
	if !owns {
		logger.Warn("SyncEngine:ManualSync:ForeignCredential", "user_id", userID)
		return errors.NewAppError(errors.ErrForbidden, "credential does not belong to user", nil)
	}
	return nil
}

// Calendars lists the calendars visible to the user's credential.
func (e *SyncEngine) Calendars(ctx context.Context, userID uuid.UUID) ([]provider.Calendar, error) {
	if e.provider == nil {
		return nil, errors.NewAppError(errors.ErrProviderNotConfigured, "calendar provider is not configured", nil)
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if stdErrors.Is(err, userRepository.ErrUserNotFound) {
			return nil, errors.NewAppError(errors.ErrNotFound, "user not found", err)
		}
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load user", err)
	}
	credentialID := e.ResolveCredential(user)
	if credentialID == "" {
		return nil, errors.NewAppError(errors.ErrProviderNotConfigured, "no calendar credential for user", nil)
	}

	calendars, err := e.provider.ListCalendars(ctx, credentialID)
	if err != nil {
		logger.Error("SyncEngine:Calendars:Error", "user_id", userID, "error", err)
		return nil, errors.NewAppError(errors.ErrProviderUnavailable, "failed to list calendars", err)
	}
	return calendars, nil
}

// SyncUserCalendar materializes the user's upcoming events as tasks. A
// missing user is reported in the outcome with a nil error. A failed provider
// read or a concurrent sync for the same user returns an error alongside the
// outcome.
func (e *SyncEngine) SyncUserCalendar(ctx context.Context, userID uuid.UUID, credentialID string) (*dto.SyncOutcome, error) {
	outcome := dto.NewSyncOutcome(userID.String())

	if e.provider == nil {
		return outcome, errors.NewAppError(errors.ErrProviderNotConfigured, "calendar provider is not configured", nil)
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if stdErrors.Is(err, userRepository.ErrUserNotFound) {
			outcome.AddError(fmt.Sprintf("user not found: %s", userID))
		} else {
			outcome.AddError(fmt.Sprintf("failed to load user %s: %v", userID, err))
		}
		logger.Warn("SyncEngine:SyncUserCalendar:UserLookupFailed", "user_id", userID, "error", err)
		e.emitUserCompleted(ctx, outcome)
		return outcome, nil
	}
	outcome.UserEmail = user.Email

	release, err := e.acquire(ctx, userID)
	if err != nil {
		outcome.AddError(err.Error())
		return outcome, errors.NewAppError(errors.ErrSyncInProgress, "calendar sync already in progress for user", err)
	}
	defer release()

	now := e.now()
	windowEnd := now.Add(time.Duration(e.cfg.WindowDays) * 24 * time.Hour)

	events, err := e.provider.ListEvents(ctx, credentialID, provider.EventQuery{
		CalendarID: e.cfg.CalendarID,
		Start:      now,
		End:        windowEnd,
		Limit:      e.cfg.EventLimit,
	})
	if err != nil {
		logger.Error("SyncEngine:SyncUserCalendar:ListEventsFailed", "user_id", userID, "error", err)
		outcome.AddError(fmt.Sprintf("failed to fetch events: %v", err))
		e.emitUserCompleted(ctx, outcome)
		return outcome, errors.NewAppError(errors.ErrProviderUnavailable, "failed to fetch calendar events", err)
	}
	outcome.TotalEventsSeen = len(events)

	for _, ev := range events {
		reason, task, err := e.processEvent(ctx, user, credentialID, ev, now, windowEnd)
		switch {
		case err != nil:
			msg := fmt.Sprintf("event %s (%s): %v", ev.ID, ev.Title, err)
			outcome.AddError(msg)
			e.emitter.Emit(ctx, SyncEvent{Type: EventEventFailed, At: e.now(), UserID: outcome.UserID, EventID: ev.ID, Err: msg})
		case task != nil:
			outcome.TasksCreated++
			e.emitter.Emit(ctx, SyncEvent{Type: EventTaskCreated, At: e.now(), UserID: outcome.UserID, EventID: ev.ID, TaskID: task.ID.String()})
		default:
			countSkip(outcome, reason)
			e.emitter.Emit(ctx, SyncEvent{Type: EventEventSkipped, At: e.now(), UserID: outcome.UserID, EventID: ev.ID, Reason: reason})
		}
	}

	e.emitUserCompleted(ctx, outcome)
	return outcome, nil
}

// processEvent returns a skip reason, the created task, or an error. Panics
// are recovered into errors so one event cannot abort the run.
func (e *SyncEngine) processEvent(
	ctx context.Context,
	user *userEntity.User,
	credentialID string,
	ev provider.ExternalEvent,
	now, windowEnd time.Time,
) (reason string, task *taskEntity.Task, err error) {
	defer func() {
		if p := recover(); p != nil {
			reason, task, err = "", nil, fmt.Errorf("panic: %v", p)
		}
	}()

	existing, err := e.records.FindByEventAndUser(ctx, ev.ID, user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("dedup lookup failed: %w", err)
	}
	if existing != nil {
		return ReasonExisting, nil, nil
	}

	start, ok := e.resolveStart(ev)
	if !ok {
		return ReasonMissingStart, nil, nil
	}
	if start.Before(now) {
		return ReasonPast, nil, nil
	}
	if start.After(windowEnd) {
		return ReasonOutOfWindow, nil, nil
	}

	title := strings.TrimSpace(ev.Title)
	if title == "" {
		title = untitledEventTitle
	}

	task = &taskEntity.Task{
		Title:       title,
		Description: BuildTaskDescription(ev),
		Status:      taskEntity.TaskStatusPending,
		Priority:    taskEntity.PriorityMedium,
		DueDate:     &start,
		CreatorID:   user.ID,
		Source:      taskEntity.SourceCalendar,
	}
	if !user.IsOrganisation() {
		assignee := user.ID
		task.AssigneeID = &assignee
	}

	record := &entity.SyncRecord{
		ExternalEventID:    ev.ID,
		ExternalCalendarID: ev.CalendarID,
		UserID:             user.ID,
		GrantID:            credentialID,
		EventTitle:         ev.Title,
		EventStart:         &start,
		EventEnd:           e.resolveEnd(ev),
		Direction:          entity.DirectionExternalToTask,
	}

	if err := e.records.MaterializeTask(ctx, task, record); err != nil {
		if stdErrors.Is(err, repository.ErrAlreadySynced) {
			return "", nil, fmt.Errorf("already synced by a concurrent run")
		}
		return "", nil, fmt.Errorf("failed to create task: %w", err)
	}
	return "", task, nil
}

// resolveStart prefers the precise start, then the start date at midnight in
// the configured location.
func (e *SyncEngine) resolveStart(ev provider.ExternalEvent) (time.Time, bool) {
	if ev.StartTime != nil && !ev.StartTime.IsZero() {
		return *ev.StartTime, true
	}
	return parseDate(ev.StartDate, e.cfg.Location)
}

func (e *SyncEngine) resolveEnd(ev provider.ExternalEvent) *time.Time {
	if ev.EndTime != nil && !ev.EndTime.IsZero() {
		end := *ev.EndTime
		return &end
	}
	if end, ok := parseDate(ev.EndDate, e.cfg.Location); ok {
		return &end
	}
	return nil
}

func parseDate(value string, loc *time.Location) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// BuildTaskDescription joins the event description (or a placeholder), the
// location and the participants with blank lines.
func BuildTaskDescription(ev provider.ExternalEvent) string {
	sections := make([]string, 0, 3)

	if desc := strings.TrimSpace(ev.Description); desc != "" {
		sections = append(sections, desc)
	} else {
		sections = append(sections, "Calendar event: "+ev.Title)
	}

	if loc := strings.TrimSpace(ev.Location); loc != "" {
		sections = append(sections, "Location: "+loc)
	}

	if len(ev.Participants) > 0 {
		names := make([]string, 0, len(ev.Participants))
		for _, p := range ev.Participants {
			names = append(names, p.DisplayName())
		}
		sections = append(sections, "Participants: "+strings.Join(names, ", "))
	}

	return strings.Join(sections, "\n\n")
}

func countSkip(o *dto.SyncOutcome, reason string) {
	switch reason {
	case ReasonExisting:
		o.SkippedExisting++
	case ReasonPast:
		o.SkippedPast++
	case ReasonMissingStart:
		o.SkippedMissingStart++
	case ReasonOutOfWindow:
		o.SkippedOutOfWindow++
	}
}

// acquire takes the per-user sync lock. When the lock backend itself fails
// the sync proceeds unguarded; the unique index still prevents duplicates.
func (e *SyncEngine) acquire(ctx context.Context, userID uuid.UUID) (func(), error) {
	if e.locker == nil {
		return func() {}, nil
	}

	key := constants.RedisKeyCalendarSyncLock + userID.String()
	token, ok, err := e.locker.TryLock(ctx, key, e.cfg.LockTTL)
	if err != nil {
		logger.Warn("SyncEngine:Lock:Error", "user_id", userID, "error", err)
		return func() {}, nil
	}
	if !ok {
		logger.Info("SyncEngine:Lock:Busy", "user_id", userID)
		return nil, ErrSyncInProgress
	}

	return func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultTimeout)
		defer cancel()
		if err := e.locker.Unlock(unlockCtx, key, token); err != nil {
			logger.Warn("SyncEngine:Unlock:Error", "user_id", userID, "error", err)
		}
	}, nil
}

func (e *SyncEngine) emitUserCompleted(ctx context.Context, outcome *dto.SyncOutcome) {
	e.emitter.Emit(ctx, SyncEvent{Type: EventUserCompleted, At: e.now(), UserID: outcome.UserID, Outcome: outcome})
}

// SyncTaskToExternalCalendar pushes a scheduled task to the creator's primary
// calendar. Failures are logged and emitted, never returned.
func (e *SyncEngine) SyncTaskToExternalCalendar(ctx context.Context, task *taskEntity.Task) {
	if e.provider == nil || task == nil || task.DueDate == nil {
		return
	}
	if task.Source == taskEntity.SourceCalendar {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("SyncEngine:PushTask:Panic", "task_id", task.ID, "panic", p)
		}
	}()

	fail := func(stage string, err error) {
		msg := fmt.Sprintf("%s: %v", stage, err)
		logger.Warn("SyncEngine:PushTask:Failed", "task_id", task.ID, "stage", stage, "error", err)
		e.emitter.Emit(ctx, SyncEvent{Type: EventPushFailed, At: e.now(), UserID: task.CreatorID.String(), TaskID: task.ID.String(), Err: msg})
	}

	user, err := e.users.GetUserByID(ctx, task.CreatorID)
	if err != nil {
		fail("load user", err)
		return
	}
	credentialID := e.ResolveCredential(user)
	if credentialID == "" {
		logger.Debug("SyncEngine:PushTask:NoCredential", "task_id", task.ID, "user_id", user.ID)
		return
	}

	existing, err := e.records.FindOutboundByTask(ctx, task.ID)
	if err != nil {
		fail("dedup lookup", err)
		return
	}
	if existing != nil {
		logger.Debug("SyncEngine:PushTask:AlreadyPushed", "task_id", task.ID, "event_id", existing.ExternalEventID)
		return
	}

	calendars, err := e.provider.ListCalendars(ctx, credentialID)
	if err != nil {
		fail("list calendars", err)
		return
	}
	cal, err := provider.PickCalendar(calendars)
	if err != nil {
		fail("pick calendar", err)
		return
	}

	start := *task.DueDate
	end := start.Add(pushedEventDuration)
	created, err := e.provider.CreateEvent(ctx, credentialID, cal.ID, provider.NewEvent{
		Title:       e.cfg.TaskTitlePrefix + " " + task.Title,
		Description: task.Description,
		Start:       start,
		End:         end,
	})
	if err != nil {
		fail("create event", err)
		return
	}

	record := &entity.SyncRecord{
		ExternalEventID:    created.ID,
		ExternalCalendarID: cal.ID,
		UserID:             user.ID,
		GrantID:            credentialID,
		TaskID:             task.ID,
		EventTitle:         task.Title,
		EventStart:         &start,
		EventEnd:           &end,
		Direction:          entity.DirectionTaskToExternal,
	}
	if err := e.records.CreateRecord(ctx, record); err != nil {
		fail("write sync record", err)
		return
	}

	e.emitter.Emit(ctx, SyncEvent{Type: EventTaskPushed, At: e.now(), UserID: user.ID.String(), TaskID: task.ID.String(), EventID: created.ID})
}
