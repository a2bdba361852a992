package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskflow-api/core/logger"
	"taskflow-api/modules/calendar/entity"
	"taskflow-api/modules/calendar/repository"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type ConnectionStore interface {
	GetConnectionByID(ctx context.Context, id uuid.UUID) (*entity.CalendarConnection, error)
	UpdateConnection(ctx context.Context, conn *entity.CalendarConnection) error
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// GoogleProvider uses stored calendar connections as credentials. The
// credential id is the connection id.
type GoogleProvider struct {
	oauth       *oauth2.Config
	connections ConnectionStore
}

func NewGoogleProvider(cfg GoogleConfig, connections ConnectionStore) *GoogleProvider {
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{calendar.CalendarEventsScope, calendar.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		connections: connections,
	}
}

func (p *GoogleProvider) Name() string { return "google" }

// AuthCodeURL returns the consent page URL. Offline access is requested so
// the connection keeps a refresh token.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and reports the
// address of the account's primary calendar.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, string, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange code: %w", err)
	}

	svc, err := calendar.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create calendar service: %w", err)
	}
	primary, err := svc.CalendarList.Get("primary").Context(ctx).Do()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read primary calendar: %w", err)
	}
	return token, primary.Id, nil
}

// OwnsCredential reports whether the connection credentialID belongs to userID.
// Unknown and malformed ids are treated as not owned.
func (p *GoogleProvider) OwnsCredential(ctx context.Context, userID uuid.UUID, credentialID string) (bool, error) {
	id, err := uuid.Parse(credentialID)
	if err != nil {
		return false, nil
	}

	conn, err := p.connections.GetConnectionByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrConnectionNotFound) {
			return false, nil
		}
		return false, err
	}
	return conn.UserID == userID, nil
}

// service builds a calendar client for the connection, storing the token
// back when the oauth2 package refreshed it.
func (p *GoogleProvider) service(ctx context.Context, credentialID string) (*calendar.Service, error) {
	id, err := uuid.Parse(credentialID)
	if err != nil {
		return nil, fmt.Errorf("invalid google credential id %q: %w", credentialID, err)
	}

	conn, err := p.connections.GetConnectionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar connection: %w", err)
	}

	current := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		Expiry:       conn.TokenExpiresAt,
		TokenType:    "Bearer",
	}
	token, err := p.oauth.TokenSource(ctx, current).Token()
	if err != nil {
		logger.Error("GoogleProvider:Token:Error", "connection_id", conn.ID, "error", err)
		return nil, fmt.Errorf("failed to refresh google token: %w", err)
	}

	if token.AccessToken != conn.AccessToken {
		conn.AccessToken = token.AccessToken
		conn.TokenExpiresAt = token.Expiry
		if token.RefreshToken != "" {
			conn.RefreshToken = token.RefreshToken
		}
		if err := p.connections.UpdateConnection(ctx, conn); err != nil {
			logger.Error("GoogleProvider:UpdateConnection:Error", "connection_id", conn.ID, "error", err)
		} else {
			logger.Info("GoogleProvider:TokenRefreshed", "connection_id", conn.ID)
		}
	}

	svc, err := calendar.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return svc, nil
}

func (p *GoogleProvider) ListEvents(ctx context.Context, credentialID string, query EventQuery) ([]ExternalEvent, error) {
	svc, err := p.service(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	calendarID := query.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	call := svc.Events.List(calendarID).
		Context(ctx).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(query.Start.Format(time.RFC3339)).
		TimeMax(query.End.Format(time.RFC3339)).
		OrderBy("startTime")
	if query.Limit > 0 {
		call = call.MaxResults(int64(query.Limit))
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	events := make([]ExternalEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, fromGoogleEvent(item, calendarID))
	}
	logger.Debug("GoogleProvider:ListEvents:Success", "calendar_id", calendarID, "count", len(events))
	return events, nil
}

func (p *GoogleProvider) ListCalendars(ctx context.Context, credentialID string) ([]Calendar, error) {
	svc, err := p.service(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	list, err := svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	calendars := make([]Calendar, 0, len(list.Items))
	for _, item := range list.Items {
		calendars = append(calendars, Calendar{
			ID:        item.Id,
			Name:      item.Summary,
			IsPrimary: item.Primary,
			ReadOnly:  item.AccessRole == "reader" || item.AccessRole == "freeBusyReader",
		})
	}
	return calendars, nil
}

func (p *GoogleProvider) CreateEvent(ctx context.Context, credentialID, calendarID string, event NewEvent) (*ExternalEvent, error) {
	svc, err := p.service(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	created, err := svc.Events.Insert(calendarID, &calendar.Event{
		Summary:     event.Title,
		Description: event.Description,
		Start:       &calendar.EventDateTime{DateTime: event.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: event.End.Format(time.RFC3339)},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	out := fromGoogleEvent(created, calendarID)
	return &out, nil
}

func fromGoogleEvent(item *calendar.Event, calendarID string) ExternalEvent {
	out := ExternalEvent{
		ID:          item.Id,
		CalendarID:  calendarID,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
	}

	if item.Start != nil {
		if item.Start.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
				out.StartTime = &t
			}
		} else {
			out.StartDate = item.Start.Date
		}
	}
	if item.End != nil {
		if item.End.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
				out.EndTime = &t
			}
		} else {
			out.EndDate = item.End.Date
		}
	}

	for _, a := range item.Attendees {
		out.Participants = append(out.Participants, Participant{Email: a.Email, Name: a.DisplayName})
	}
	return out
}
