package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"taskflow-api/core/constants"
	taskEntity "taskflow-api/modules/task/entity"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakeTasks map[uuid.UUID]*taskEntity.Task

func (f fakeTasks) GetTaskByID(_ context.Context, id uuid.UUID) (*taskEntity.Task, error) {
	return f[id], nil
}

type recordingSyncer struct {
	mu     sync.Mutex
	pushed []uuid.UUID
	done   chan struct{}
}

func (r *recordingSyncer) SyncTaskToExternalCalendar(_ context.Context, task *taskEntity.Task) {
	r.mu.Lock()
	r.pushed = append(r.pushed, task.ID)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
}

type recordingQueue struct {
	taskType string
	payload  any
	err      error
}

func (q *recordingQueue) Enqueue(_ context.Context, taskType string, payload any, _ ...asynq.Option) error {
	q.taskType, q.payload = taskType, payload
	return q.err
}

func newTask() *taskEntity.Task {
	due := time.Now().Add(time.Hour)
	task := &taskEntity.Task{Title: "Ship it", DueDate: &due}
	task.ID = uuid.New()
	return task
}

func TestPushTaskHandlerProcessTask(t *testing.T) {
	task := newTask()
	syncer := &recordingSyncer{}
	h := NewPushTaskHandler(fakeTasks{task.ID: task}, syncer)

	body, _ := json.Marshal(PushTaskPayload{TaskID: task.ID})
	if err := h.ProcessTask(context.Background(), asynq.NewTask(constants.TaskTypeCalendarPushTask, body)); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(syncer.pushed) != 1 || syncer.pushed[0] != task.ID {
		t.Errorf("pushed = %v", syncer.pushed)
	}

	// deleted tasks are dropped without retry
	body, _ = json.Marshal(PushTaskPayload{TaskID: uuid.New()})
	if err := h.ProcessTask(context.Background(), asynq.NewTask(constants.TaskTypeCalendarPushTask, body)); err != nil {
		t.Errorf("missing task err = %v, want nil", err)
	}

	err := h.ProcessTask(context.Background(), asynq.NewTask(constants.TaskTypeCalendarPushTask, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("bad payload err = %v, want SkipRetry", err)
	}
}

func TestQueuePusherEnqueues(t *testing.T) {
	q := &recordingQueue{}
	id := uuid.New()

	NewQueuePusher(q).PushTask(context.Background(), id)

	if q.taskType != constants.TaskTypeCalendarPushTask {
		t.Errorf("task type = %s", q.taskType)
	}
	if p, ok := q.payload.(PushTaskPayload); !ok || p.TaskID != id {
		t.Errorf("payload = %#v", q.payload)
	}

	// enqueue failures are logged, not propagated
	q.err = errors.New("redis down")
	NewQueuePusher(q).PushTask(context.Background(), id)
}

func TestInlinePusherRunsInBackground(t *testing.T) {
	task := newTask()
	syncer := &recordingSyncer{done: make(chan struct{}, 1)}
	p := NewInlinePusher(NewPushTaskHandler(fakeTasks{task.ID: task}, syncer))

	ctx, cancel := context.WithCancel(context.Background())
	p.PushTask(ctx, task.ID)
	cancel()

	select {
	case <-syncer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("inline push did not run")
	}
}
