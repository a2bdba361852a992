package repository

import (
	"context"
	"database/sql"
	"errors"

	"taskflow-api/core/database"
	"taskflow-api/core/logger"
	"taskflow-api/modules/calendar/entity"
	taskEntity "taskflow-api/modules/task/entity"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrAlreadySynced is returned when a concurrent writer materialized the
// same event (or pushed the same task) first.
var ErrAlreadySynced = errors.New("sync record already exists")

type TaskWriter interface {
	CreateTaskTx(ctx context.Context, tx sqlx.QueryerContext, task *taskEntity.Task) error
}

type SyncRecordRepositoryInterface interface {
	FindByEventAndUser(ctx context.Context, externalEventID string, userID uuid.UUID) (*entity.SyncRecord, error)
	FindOutboundByTask(ctx context.Context, taskID uuid.UUID) (*entity.SyncRecord, error)
	CreateRecord(ctx context.Context, record *entity.SyncRecord) error
	MaterializeTask(ctx context.Context, task *taskEntity.Task, record *entity.SyncRecord) error
}

type SyncRecordRepository struct {
	DB    database.IDatabase
	tasks TaskWriter
}

func NewSyncRecordRepository(db database.IDatabase, tasks TaskWriter) *SyncRecordRepository {
	return &SyncRecordRepository{DB: db, tasks: tasks}
}

const syncRecordColumns = `id, external_event_id, external_calendar_id, user_id, grant_id, task_id,
	event_title, event_start, event_end, sync_direction, created_at`

const insertSyncRecordQuery = `
	INSERT INTO sync_records (external_event_id, external_calendar_id, user_id, grant_id, task_id,
		event_title, event_start, event_end, sync_direction)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, created_at
`

// FindByEventAndUser returns nil, nil when the event has not been synced for the user.
func (r *SyncRecordRepository) FindByEventAndUser(ctx context.Context, externalEventID string, userID uuid.UUID) (*entity.SyncRecord, error) {
	query := `SELECT ` + syncRecordColumns + ` FROM sync_records WHERE external_event_id = $1 AND user_id = $2`
	return r.findOne(ctx, query, externalEventID, userID)
}

func (r *SyncRecordRepository) FindOutboundByTask(ctx context.Context, taskID uuid.UUID) (*entity.SyncRecord, error) {
	query := `SELECT ` + syncRecordColumns + ` FROM sync_records WHERE task_id = $1 AND sync_direction = $2`
	return r.findOne(ctx, query, taskID, entity.DirectionTaskToExternal)
}

func (r *SyncRecordRepository) findOne(ctx context.Context, query string, args ...any) (*entity.SyncRecord, error) {
	var record entity.SyncRecord
	if err := r.DB.GetContext(ctx, &record, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("SyncRecordRepository:Find:Error", "error", err)
		return nil, err
	}
	return &record, nil
}

func (r *SyncRecordRepository) CreateRecord(ctx context.Context, record *entity.SyncRecord) error {
	return r.insertRecord(ctx, r.DB.SQLx(), record)
}

// MaterializeTask inserts task and its sync record in one transaction, so a
// task never exists without the record that prevents its re-creation.
func (r *SyncRecordRepository) MaterializeTask(ctx context.Context, task *taskEntity.Task, record *entity.SyncRecord) error {
	return r.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.tasks.CreateTaskTx(ctx, tx, task); err != nil {
			return err
		}
		record.TaskID = task.ID
		return r.insertRecord(ctx, tx, record)
	})
}

func (r *SyncRecordRepository) insertRecord(ctx context.Context, q sqlx.QueryerContext, record *entity.SyncRecord) error {
	err := q.QueryRowxContext(ctx, insertSyncRecordQuery,
		record.ExternalEventID, record.ExternalCalendarID, record.UserID, record.GrantID, record.TaskID,
		record.EventTitle, record.EventStart, record.EventEnd, record.Direction,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, entity.ConstraintEventUser) ||
			database.IsUniqueViolation(err, entity.ConstraintTaskOutbound) {
			return ErrAlreadySynced
		}
		logger.Error("SyncRecordRepository:Insert:Error", "error", err, "external_event_id", record.ExternalEventID)
		return err
	}
	return nil
}
