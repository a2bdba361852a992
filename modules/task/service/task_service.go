package service

import (
	"context"
	"strings"

	"taskflow-api/core/errors"
	"taskflow-api/core/logger"
	"taskflow-api/modules/task/dto"
	"taskflow-api/modules/task/entity"
	"taskflow-api/modules/task/repository"

	"github.com/google/uuid"
)

// CalendarPusher schedules a best-effort push of a task to the owner's
// external calendar. Implementations must not block on the provider.
type CalendarPusher interface {
	PushTask(ctx context.Context, taskID uuid.UUID)
}

type TaskServiceInterface interface {
	CreateTask(ctx context.Context, creatorID uuid.UUID, req *dto.CreateTaskRequest) (*dto.TaskResponse, *errors.AppError)
	GetTask(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*dto.TaskResponse, *errors.AppError)
	UpdateTask(ctx context.Context, id uuid.UUID, userID uuid.UUID, req *dto.UpdateTaskRequest) (*dto.TaskResponse, *errors.AppError)
}

type TaskService struct {
	repo   repository.TaskRepositoryInterface
	pusher CalendarPusher
}

func NewTaskService(repo repository.TaskRepositoryInterface, pusher CalendarPusher) *TaskService {
	return &TaskService{repo: repo, pusher: pusher}
}

func (s *TaskService) CreateTask(ctx context.Context, creatorID uuid.UUID, req *dto.CreateTaskRequest) (*dto.TaskResponse, *errors.AppError) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "title is required", nil)
	}

	priority := entity.PriorityMedium
	if req.Priority != "" {
		priority = entity.Priority(req.Priority)
		if !entity.IsValidPriority(priority) {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid priority", nil)
		}
	}

	task := &entity.Task{
		Title:       title,
		Description: req.Description,
		Status:      entity.TaskStatusPending,
		Priority:    priority,
		DueDate:     req.DueDate,
		CreatorID:   creatorID,
		AssigneeID:  req.AssigneeID,
		Source:      entity.SourceManual,
	}

	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to create task", err)
	}

	s.pushIfScheduled(ctx, task)
	return dto.ToTaskResponse(task), nil
}

func (s *TaskService) GetTask(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*dto.TaskResponse, *errors.AppError) {
	task, appErr := s.loadOwnedTask(ctx, id, userID)
	if appErr != nil {
		return nil, appErr
	}
	return dto.ToTaskResponse(task), nil
}

func (s *TaskService) UpdateTask(ctx context.Context, id uuid.UUID, userID uuid.UUID, req *dto.UpdateTaskRequest) (*dto.TaskResponse, *errors.AppError) {
	task, appErr := s.loadOwnedTask(ctx, id, userID)
	if appErr != nil {
		return nil, appErr
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "title cannot be empty", nil)
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		status := entity.TaskStatus(*req.Status)
		if !entity.IsValidStatus(status) {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid status", nil)
		}
		task.Status = status
	}
	if req.Priority != nil {
		priority := entity.Priority(*req.Priority)
		if !entity.IsValidPriority(priority) {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid priority", nil)
		}
		task.Priority = priority
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.AssigneeID != nil {
		task.AssigneeID = req.AssigneeID
	}

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to update task", err)
	}

	s.pushIfScheduled(ctx, task)
	return dto.ToTaskResponse(task), nil
}

func (s *TaskService) loadOwnedTask(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*entity.Task, *errors.AppError) {
	task, err := s.repo.GetTaskByID(ctx, id)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to get task", err)
	}
	if task == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "task not found", nil)
	}
	if task.CreatorID != userID && (task.AssigneeID == nil || *task.AssigneeID != userID) {
		return nil, errors.NewAppError(errors.ErrForbidden, "task belongs to another user", nil)
	}
	return task, nil
}

// Calendar-sourced tasks already have an external event and are not pushed back.
func (s *TaskService) pushIfScheduled(ctx context.Context, task *entity.Task) {
	if s.pusher == nil || task.DueDate == nil || task.Source == entity.SourceCalendar {
		return
	}
	logger.Debug("TaskService:PushTask", "task_id", task.ID)
	s.pusher.PushTask(ctx, task.ID)
}
