// Package provider reads and writes events on an external calendar service.
package provider

import (
	"context"
	"errors"
	"time"
)

var ErrNoCalendar = errors.New("no calendar available for credential")

// Provider is the boundary to an external calendar. credentialID is opaque
// to callers: a Nylas grant id or a calendar connection id for Google.
type Provider interface {
	Name() string
	ListEvents(ctx context.Context, credentialID string, query EventQuery) ([]ExternalEvent, error)
	ListCalendars(ctx context.Context, credentialID string) ([]Calendar, error)
	CreateEvent(ctx context.Context, credentialID, calendarID string, event NewEvent) (*ExternalEvent, error)
}

type EventQuery struct {
	CalendarID string
	Start      time.Time
	End        time.Time
	Limit      int
}

type Participant struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// DisplayName prefers the participant's name over the email.
func (p Participant) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

// ExternalEvent is a read-only event as fetched. Timed events carry
// StartTime/EndTime; all-day events carry StartDate/EndDate as YYYY-MM-DD.
type ExternalEvent struct {
	ID           string
	CalendarID   string
	Title        string
	Description  string
	Location     string
	StartTime    *time.Time
	EndTime      *time.Time
	StartDate    string
	EndDate      string
	Participants []Participant
}

type Calendar struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrimary bool   `json:"is_primary"`
	ReadOnly  bool   `json:"read_only"`
}

type NewEvent struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// PickCalendar returns the primary writable calendar, falling back to the
// first writable one.
func PickCalendar(calendars []Calendar) (Calendar, error) {
	var fallback *Calendar
	for i := range calendars {
		c := calendars[i]
		if c.ReadOnly {
			continue
		}
		if c.IsPrimary {
			return c, nil
		}
		if fallback == nil {
			fallback = &calendars[i]
		}
	}
	if fallback == nil {
		return Calendar{}, ErrNoCalendar
	}
	return *fallback, nil
}
