package service

import (
	"context"
	"time"

	"taskflow-api/core/logger"
	"taskflow-api/modules/calendar/dto"
)

type EventType string

const (
	EventTaskCreated   EventType = "sync.task.created"
	EventEventSkipped  EventType = "sync.event.skipped"
	EventEventFailed   EventType = "sync.event.failed"
	EventUserCompleted EventType = "sync.user.completed"
	EventPassCompleted EventType = "sync.pass.completed"
	EventTaskPushed    EventType = "sync.task.pushed"
	EventPushFailed    EventType = "sync.push.failed"
)

// Skip reasons carried in SyncEvent.Reason.
const (
	ReasonExisting     = "existing"
	ReasonPast         = "past"
	ReasonMissingStart = "missing_start"
	ReasonOutOfWindow  = "out_of_window"
)

type SyncEvent struct {
	Type    EventType
	At      time.Time
	UserID  string
	EventID string
	TaskID  string
	Reason  string
	Err     string
	Outcome *dto.SyncOutcome
	Summary *dto.PassSummary
}

// Emitter receives structured sync events. Emit must not block for long;
// it is called inline from the sync loop.
type Emitter interface {
	Emit(ctx context.Context, ev SyncEvent)
}

type EmitterFunc func(ctx context.Context, ev SyncEvent)

func (f EmitterFunc) Emit(ctx context.Context, ev SyncEvent) { f(ctx, ev) }

// MultiEmitter fans an event out to every sink in order.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(ctx context.Context, ev SyncEvent) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, ev)
		}
	}
}

// LogEmitter writes each event as a structured log line.
type LogEmitter struct{}

func (LogEmitter) Emit(_ context.Context, ev SyncEvent) {
	switch ev.Type {
	case EventTaskCreated:
		logger.Info("CalendarSync:TaskCreated", "user_id", ev.UserID, "event_id", ev.EventID, "task_id", ev.TaskID)
	case EventEventSkipped:
		logger.Debug("CalendarSync:EventSkipped", "user_id", ev.UserID, "event_id", ev.EventID, "reason", ev.Reason)
	case EventEventFailed:
		logger.Error("CalendarSync:EventFailed", "user_id", ev.UserID, "event_id", ev.EventID, "error", ev.Err)
	case EventUserCompleted:
		o := ev.Outcome
		logger.Info("CalendarSync:UserCompleted",
			"user_id", o.UserID,
			"events_seen", o.TotalEventsSeen,
			"tasks_created", o.TasksCreated,
			"skipped_existing", o.SkippedExisting,
			"skipped_past", o.SkippedPast,
			"skipped_missing_start", o.SkippedMissingStart,
			"skipped_out_of_window", o.SkippedOutOfWindow,
			"errors", len(o.Errors),
		)
	case EventPassCompleted:
		s := ev.Summary
		logger.Info("CalendarSync:PassCompleted",
			"pass_id", s.PassID,
			"trigger", s.Trigger,
			"users", s.Users,
			"events_seen", s.EventsSeen,
			"tasks_created", s.TasksCreated,
			"errors", s.ErrorCount,
			"duration", s.Duration.String(),
		)
	case EventTaskPushed:
		logger.Info("CalendarSync:TaskPushed", "user_id", ev.UserID, "task_id", ev.TaskID, "event_id", ev.EventID)
	case EventPushFailed:
		logger.Warn("CalendarSync:PushFailed", "user_id", ev.UserID, "task_id", ev.TaskID, "error", ev.Err)
	}
}
