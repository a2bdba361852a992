package dto

import (
	"time"

	"taskflow-api/modules/calendar/entity"

	"github.com/google/uuid"
)

// SyncOutcome reports one user's sync run. Errors holds per-event failures
// and run-level conditions such as an unknown user.
type SyncOutcome struct {
	UserID              string   `json:"user_id"`
	UserEmail           string   `json:"user_email,omitempty"`
	TotalEventsSeen     int      `json:"total_events_seen"`
	TasksCreated        int      `json:"tasks_created"`
	SkippedExisting     int      `json:"skipped_existing"`
	SkippedPast         int      `json:"skipped_past"`
	SkippedMissingStart int      `json:"skipped_missing_start"`
	SkippedOutOfWindow  int      `json:"skipped_out_of_window"`
	Errors              []string `json:"errors"`
}

func NewSyncOutcome(userID string) *SyncOutcome {
	return &SyncOutcome{UserID: userID, Errors: []string{}}
}

func (o *SyncOutcome) AddError(msg string) {
	o.Errors = append(o.Errors, msg)
}

// PassSummary aggregates one scheduled pass across all active users.
type PassSummary struct {
	PassID       string         `json:"pass_id"`
	Trigger      string         `json:"trigger"`
	StartedAt    time.Time      `json:"started_at"`
	Duration     time.Duration  `json:"duration_ns"`
	Users        int            `json:"users"`
	EventsSeen   int            `json:"events_seen"`
	TasksCreated int            `json:"tasks_created"`
	ErrorCount   int            `json:"error_count"`
	Error        string         `json:"error,omitempty"`
	Outcomes     []*SyncOutcome `json:"outcomes"`
}

func (s *PassSummary) Add(o *SyncOutcome) {
	s.Users++
	s.EventsSeen += o.TotalEventsSeen
	s.TasksCreated += o.TasksCreated
	s.ErrorCount += len(o.Errors)
	s.Outcomes = append(s.Outcomes, o)
}

type ManualSyncRequest struct {
	// CredentialID overrides the grant stored on the user.
	CredentialID string `json:"credential_id"`
}

type SyncStatusResponse struct {
	State           string       `json:"state"`
	Provider        string       `json:"provider"`
	IntervalMinutes int          `json:"interval_minutes"`
	LastPass        *PassSummary `json:"last_pass,omitempty"`
}

type ConnectURLResponse struct {
	AuthURL string `json:"auth_url"`
}

type ConnectionResponse struct {
	ID            uuid.UUID `json:"id"`
	Provider      string    `json:"provider"`
	CalendarEmail string    `json:"calendar_email"`
	IsActive      bool      `json:"is_active"`
}

func ToConnectionResponse(conn *entity.CalendarConnection) ConnectionResponse {
	return ConnectionResponse{
		ID:            conn.ID,
		Provider:      conn.Provider,
		CalendarEmail: conn.CalendarEmail,
		IsActive:      conn.IsActive,
	}
}
