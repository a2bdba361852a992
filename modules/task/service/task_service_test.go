package service

import (
	"context"
	"testing"
	"time"

	"taskflow-api/core/errors"
	"taskflow-api/modules/task/dto"
	"taskflow-api/modules/task/entity"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type memoryTasks struct {
	tasks map[uuid.UUID]*entity.Task
}

func newMemoryTasks() *memoryTasks {
	return &memoryTasks{tasks: map[uuid.UUID]*entity.Task{}}
}

func (m *memoryTasks) CreateTask(_ context.Context, task *entity.Task) error {
	task.ID = uuid.New()
	m.tasks[task.ID] = task
	return nil
}

func (m *memoryTasks) CreateTaskTx(ctx context.Context, _ sqlx.QueryerContext, task *entity.Task) error {
	return m.CreateTask(ctx, task)
}

func (m *memoryTasks) GetTaskByID(_ context.Context, id uuid.UUID) (*entity.Task, error) {
	return m.tasks[id], nil
}

func (m *memoryTasks) UpdateTask(_ context.Context, task *entity.Task) error {
	m.tasks[task.ID] = task
	return nil
}

type recordingPusher struct {
	pushed []uuid.UUID
}

func (r *recordingPusher) PushTask(_ context.Context, id uuid.UUID) {
	r.pushed = append(r.pushed, id)
}

func TestCreateTaskPushesScheduledTasks(t *testing.T) {
	repo, pusher := newMemoryTasks(), &recordingPusher{}
	svc := NewTaskService(repo, pusher)
	creator := uuid.New()
	due := time.Now().Add(24 * time.Hour)

	if _, appErr := svc.CreateTask(context.Background(), creator, &dto.CreateTaskRequest{Title: "No date"}); appErr != nil {
		t.Fatalf("CreateTask: %v", appErr)
	}
	if len(pusher.pushed) != 0 {
		t.Fatal("pushed a task without a due date")
	}

	resp, appErr := svc.CreateTask(context.Background(), creator, &dto.CreateTaskRequest{Title: "  Review  ", DueDate: &due})
	if appErr != nil {
		t.Fatalf("CreateTask: %v", appErr)
	}
	if resp.Title != "Review" || resp.Priority != string(entity.PriorityMedium) {
		t.Errorf("resp = %+v", resp)
	}
	if len(pusher.pushed) != 1 || pusher.pushed[0] != resp.ID {
		t.Errorf("pushed = %v, want [%s]", pusher.pushed, resp.ID)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	svc := NewTaskService(newMemoryTasks(), nil)

	tests := []struct {
		name string
		req  dto.CreateTaskRequest
	}{
		{"blank title", dto.CreateTaskRequest{Title: "   "}},
		{"bad priority", dto.CreateTaskRequest{Title: "x", Priority: "urgent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, appErr := svc.CreateTask(context.Background(), uuid.New(), &tt.req)
			if appErr == nil || appErr.Code != errors.ErrInvalidInput {
				t.Errorf("err = %v, want %s", appErr, errors.ErrInvalidInput)
			}
		})
	}
}

func TestUpdateTaskSkipsCalendarSourcedTasks(t *testing.T) {
	repo, pusher := newMemoryTasks(), &recordingPusher{}
	svc := NewTaskService(repo, pusher)
	owner := uuid.New()
	due := time.Now().Add(time.Hour)

	task := &entity.Task{Title: "From calendar", CreatorID: owner, DueDate: &due, Source: entity.SourceCalendar, Status: entity.TaskStatusPending}
	_ = repo.CreateTask(context.Background(), task)

	status := string(entity.TaskStatusCompleted)
	if _, appErr := svc.UpdateTask(context.Background(), task.ID, owner, &dto.UpdateTaskRequest{Status: &status}); appErr != nil {
		t.Fatalf("UpdateTask: %v", appErr)
	}
	if len(pusher.pushed) != 0 {
		t.Errorf("calendar task pushed back: %v", pusher.pushed)
	}
}

func TestGetTaskOwnership(t *testing.T) {
	repo := newMemoryTasks()
	svc := NewTaskService(repo, nil)
	owner, assignee := uuid.New(), uuid.New()

	task := &entity.Task{Title: "Shared", CreatorID: owner, AssigneeID: &assignee}
	_ = repo.CreateTask(context.Background(), task)

	if _, appErr := svc.GetTask(context.Background(), task.ID, assignee); appErr != nil {
		t.Errorf("assignee denied: %v", appErr)
	}
	if _, appErr := svc.GetTask(context.Background(), task.ID, uuid.New()); appErr == nil || appErr.Code != errors.ErrForbidden {
		t.Errorf("stranger err = %v, want %s", appErr, errors.ErrForbidden)
	}
	if _, appErr := svc.GetTask(context.Background(), uuid.New(), owner); appErr == nil || appErr.Code != errors.ErrNotFound {
		t.Errorf("missing err = %v, want %s", appErr, errors.ErrNotFound)
	}
}
