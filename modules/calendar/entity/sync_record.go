package entity

import (
	"time"

	"github.com/google/uuid"
)

type SyncDirection string

const (
	DirectionExternalToTask SyncDirection = "external_to_task"
	DirectionTaskToExternal SyncDirection = "task_to_external"
)

// SyncRecord marks an external event as materialized for a user (or a task as
// pushed to the external calendar). Rows are insert-only and outlive their
// task: TaskID scans as uuid.Nil once the task is deleted.
type SyncRecord struct {
	ID                 uuid.UUID     `db:"id" json:"id"`
	ExternalEventID    string        `db:"external_event_id" json:"external_event_id"`
	ExternalCalendarID string        `db:"external_calendar_id" json:"external_calendar_id"`
	UserID             uuid.UUID     `db:"user_id" json:"user_id"`
	GrantID            string        `db:"grant_id" json:"grant_id"`
	TaskID             uuid.UUID     `db:"task_id" json:"task_id"`
	EventTitle         string        `db:"event_title" json:"event_title"`
	EventStart         *time.Time    `db:"event_start" json:"event_start,omitempty"`
	EventEnd           *time.Time    `db:"event_end" json:"event_end,omitempty"`
	Direction          SyncDirection `db:"sync_direction" json:"sync_direction"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
}

func (SyncRecord) TableName() string {
	return "sync_records"
}

// Constraint names from schema.sql.
const (
	ConstraintEventUser    = "uq_sync_records_event_user"
	ConstraintTaskOutbound = "uq_sync_records_task_outbound"
)
