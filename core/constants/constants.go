package constants

import "time"

const (
	DefaultTimeout = 10 * time.Second

	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 5
	DatabaseConnMaxLifetime = 30 // minutes

	ContextKeyUserID = "user_id"
	ScopeTokenAccess = "access"
)

// Redis keys
const (
	RedisKeyCalendarSyncLock = "calendar:sync:lock:"
)

// Queue task types
const (
	TaskTypeCalendarPushTask = "calendar:push_task"
	QueueDefault             = "default"
)
