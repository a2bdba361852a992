package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"taskflow-api/core/logger"
	"taskflow-api/core/storage"
	notifDto "taskflow-api/modules/notification/dto"
	notifEntity "taskflow-api/modules/notification/entity"

	"github.com/google/uuid"
)

type Notifier interface {
	Create(ctx context.Context, req *notifDto.CreateNotificationRequest) error
}

// NotificationEmitter tells a user when a sync produced new tasks or when a
// task could not be pushed to their calendar.
type NotificationEmitter struct {
	notifier Notifier
}

func NewNotificationEmitter(notifier Notifier) *NotificationEmitter {
	return &NotificationEmitter{notifier: notifier}
}

func (n *NotificationEmitter) Emit(ctx context.Context, ev SyncEvent) {
	var req *notifDto.CreateNotificationRequest

	switch ev.Type {
	case EventUserCompleted:
		if ev.Outcome == nil || ev.Outcome.TasksCreated == 0 {
			return
		}
		userID, err := uuid.Parse(ev.Outcome.UserID)
		if err != nil {
			return
		}
		req = &notifDto.CreateNotificationRequest{
			UserID:  userID,
			Title:   "Calendar synced",
			Message: fmt.Sprintf("%d new task(s) created from your calendar", ev.Outcome.TasksCreated),
			Type:    notifEntity.TypeCalendarSync,
			Data: map[string]any{
				"tasks_created": ev.Outcome.TasksCreated,
				"events_seen":   ev.Outcome.TotalEventsSeen,
			},
		}
	case EventPushFailed:
		userID, err := uuid.Parse(ev.UserID)
		if err != nil {
			return
		}
		req = &notifDto.CreateNotificationRequest{
			UserID:  userID,
			Title:   "Calendar update failed",
			Message: "A task could not be added to your calendar",
			Type:    notifEntity.TypeCalendarPush,
			Data:    map[string]any{"task_id": ev.TaskID, "error": ev.Err},
		}
	default:
		return
	}

	if err := n.notifier.Create(ctx, req); err != nil {
		logger.Error("NotificationEmitter:Create:Error", "user_id", req.UserID, "type", req.Type, "error", err)
	}
}

// ReportArchiver stores every pass summary as JSON under
// <yyyy>/<mm>/<dd>/<pass id>.json.
type ReportArchiver struct {
	store storage.ObjectStore
}

func NewReportArchiver(store storage.ObjectStore) *ReportArchiver {
	return &ReportArchiver{store: store}
}

func (a *ReportArchiver) Emit(ctx context.Context, ev SyncEvent) {
	if ev.Type != EventPassCompleted || ev.Summary == nil {
		return
	}

	body, err := json.Marshal(ev.Summary)
	if err != nil {
		logger.Error("ReportArchiver:Marshal:Error", "pass_id", ev.Summary.PassID, "error", err)
		return
	}

	key := path.Join(ev.Summary.StartedAt.UTC().Format("2006/01/02"), ev.Summary.PassID+".json")
	if err := a.store.Put(ctx, key, body, "application/json"); err != nil {
		logger.Error("ReportArchiver:Put:Error", "pass_id", ev.Summary.PassID, "error", err)
		return
	}
	logger.Debug("ReportArchiver:Put:Success", "key", key)
}
