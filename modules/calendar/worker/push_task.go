// Package worker pushes scheduled tasks to the external calendar off the
// request path, through asynq when redis is available.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskflow-api/core/constants"
	"taskflow-api/core/logger"
	taskEntity "taskflow-api/modules/task/entity"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const inlinePushTimeout = 30 * time.Second

type PushTaskPayload struct {
	TaskID uuid.UUID `json:"task_id"`
}

type TaskReader interface {
	GetTaskByID(ctx context.Context, id uuid.UUID) (*taskEntity.Task, error)
}

type OutboundSyncer interface {
	SyncTaskToExternalCalendar(ctx context.Context, task *taskEntity.Task)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error
}

// PushTaskHandler processes calendar:push_task jobs.
type PushTaskHandler struct {
	tasks  TaskReader
	syncer OutboundSyncer
}

func NewPushTaskHandler(tasks TaskReader, syncer OutboundSyncer) *PushTaskHandler {
	return &PushTaskHandler{tasks: tasks, syncer: syncer}
}

func (h *PushTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload PushTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return h.push(ctx, payload.TaskID)
}

// push reloads the task so the event reflects its latest state.
func (h *PushTaskHandler) push(ctx context.Context, taskID uuid.UUID) error {
	task, err := h.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		logger.Warn("PushTaskHandler:TaskNotFound", "task_id", taskID)
		return nil
	}
	h.syncer.SyncTaskToExternalCalendar(ctx, task)
	return nil
}

// QueuePusher enqueues a push job per task.
type QueuePusher struct {
	queue Enqueuer
}

func NewQueuePusher(queue Enqueuer) *QueuePusher {
	return &QueuePusher{queue: queue}
}

func (p *QueuePusher) PushTask(ctx context.Context, taskID uuid.UUID) {
	err := p.queue.Enqueue(ctx, constants.TaskTypeCalendarPushTask, PushTaskPayload{TaskID: taskID},
		asynq.TaskID(fmt.Sprintf("%s:%s", constants.TaskTypeCalendarPushTask, taskID)),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		logger.Error("QueuePusher:PushTask:Error", "task_id", taskID, "error", err)
	}
}

// InlinePusher runs the push in a goroutine; used when no queue is configured.
type InlinePusher struct {
	handler *PushTaskHandler
}

func NewInlinePusher(handler *PushTaskHandler) *InlinePusher {
	return &InlinePusher{handler: handler}
}

func (p *InlinePusher) PushTask(ctx context.Context, taskID uuid.UUID) {
	go func() {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), inlinePushTimeout)
		defer cancel()
		if err := p.handler.push(pushCtx, taskID); err != nil {
			logger.Error("InlinePusher:PushTask:Error", "task_id", taskID, "error", err)
		}
	}()
}
