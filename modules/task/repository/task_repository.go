package repository

import (
	"context"
	"database/sql"
	"errors"

	"taskflow-api/core/database"
	"taskflow-api/core/logger"
	"taskflow-api/modules/task/entity"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TaskRepositoryInterface interface {
	CreateTask(ctx context.Context, task *entity.Task) error
	CreateTaskTx(ctx context.Context, tx sqlx.QueryerContext, task *entity.Task) error
	GetTaskByID(ctx context.Context, id uuid.UUID) (*entity.Task, error)
	UpdateTask(ctx context.Context, task *entity.Task) error
}

type TaskRepository struct {
	DB database.IDatabase
}

func NewTaskRepository(db database.IDatabase) *TaskRepository {
	return &TaskRepository{DB: db}
}

const insertTaskQuery = `
	INSERT INTO tasks (title, description, status, priority, due_date, creator_id, assignee_id, source)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, created_at, updated_at
`

func (r *TaskRepository) CreateTask(ctx context.Context, task *entity.Task) error {
	return r.CreateTaskTx(ctx, r.DB.SQLx(), task)
}

// CreateTaskTx inserts task using q, which may be a transaction.
func (r *TaskRepository) CreateTaskTx(ctx context.Context, q sqlx.QueryerContext, task *entity.Task) error {
	err := q.QueryRowxContext(ctx, insertTaskQuery,
		task.Title, task.Description, task.Status, task.Priority,
		task.DueDate, task.CreatorID, task.AssigneeID, task.Source,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		logger.Error("TaskRepository:CreateTask:Error", "error", err)
		return err
	}
	return nil
}

func (r *TaskRepository) GetTaskByID(ctx context.Context, id uuid.UUID) (*entity.Task, error) {
	query := `
		SELECT id, title, description, status, priority, due_date, creator_id, assignee_id, source, created_at, updated_at
		FROM tasks WHERE id = $1
	`
	var task entity.Task
	if err := r.DB.GetContext(ctx, &task, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("TaskRepository:GetTaskByID:Error", "error", err, "task_id", id)
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) UpdateTask(ctx context.Context, task *entity.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5, due_date = $6, assignee_id = $7, updated_at = NOW()
		WHERE id = $1
	`
	err := r.DB.ExecContext(ctx, query,
		task.ID, task.Title, task.Description, task.Status, task.Priority, task.DueDate, task.AssigneeID,
	)
	if err != nil {
		logger.Error("TaskRepository:UpdateTask:Error", "error", err, "task_id", task.ID)
		return err
	}
	return nil
}
