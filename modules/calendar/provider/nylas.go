package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"taskflow-api/core/logger"
)

const nylasMaxLimit = 200

type NylasConfig struct {
	APIKey  string
	APIURI  string
	Timeout time.Duration
}

// NylasProvider talks to the Nylas v3 REST API using grant ids as credentials.
type NylasProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewNylasProvider(cfg NylasConfig) *NylasProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &NylasProvider{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.APIURI, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *NylasProvider) Name() string { return "nylas" }

type nylasParticipant struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// nylasWhen covers the timespan, date and datespan shapes.
type nylasWhen struct {
	Object    string `json:"object"`
	StartTime int64  `json:"start_time,omitempty"`
	EndTime   int64  `json:"end_time,omitempty"`
	Date      string `json:"date,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

type nylasEvent struct {
	ID           string             `json:"id"`
	CalendarID   string             `json:"calendar_id"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Location     string             `json:"location"`
	When         nylasWhen          `json:"when"`
	Participants []nylasParticipant `json:"participants"`
}

type nylasCalendar struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrimary bool   `json:"is_primary"`
	ReadOnly  bool   `json:"read_only"`
}

type nylasEnvelope[T any] struct {
	RequestID string `json:"request_id"`
	Data      T      `json:"data"`
}

type nylasError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *NylasProvider) ListEvents(ctx context.Context, credentialID string, query EventQuery) ([]ExternalEvent, error) {
	limit := query.Limit
	if limit <= 0 || limit > nylasMaxLimit {
		limit = nylasMaxLimit
	}
	calendarID := query.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	params := url.Values{}
	params.Set("calendar_id", calendarID)
	params.Set("start", strconv.FormatInt(query.Start.Unix(), 10))
	params.Set("end", strconv.FormatInt(query.End.Unix(), 10))
	params.Set("limit", strconv.Itoa(limit))

	var out nylasEnvelope[[]nylasEvent]
	path := fmt.Sprintf("/v3/grants/%s/events?%s", url.PathEscape(credentialID), params.Encode())
	if err := p.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	events := make([]ExternalEvent, 0, len(out.Data))
	for _, ev := range out.Data {
		events = append(events, ev.toExternal())
	}
	logger.Debug("NylasProvider:ListEvents:Success", "grant_id", credentialID, "count", len(events))
	return events, nil
}

func (p *NylasProvider) ListCalendars(ctx context.Context, credentialID string) ([]Calendar, error) {
	var out nylasEnvelope[[]nylasCalendar]
	path := fmt.Sprintf("/v3/grants/%s/calendars", url.PathEscape(credentialID))
	if err := p.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	calendars := make([]Calendar, 0, len(out.Data))
	for _, c := range out.Data {
		calendars = append(calendars, Calendar{ID: c.ID, Name: c.Name, IsPrimary: c.IsPrimary, ReadOnly: c.ReadOnly})
	}
	return calendars, nil
}

func (p *NylasProvider) CreateEvent(ctx context.Context, credentialID, calendarID string, event NewEvent) (*ExternalEvent, error) {
	body := map[string]any{
		"title":       event.Title,
		"description": event.Description,
		"when": nylasWhen{
			Object:    "timespan",
			StartTime: event.Start.Unix(),
			EndTime:   event.End.Unix(),
		},
	}

	var out nylasEnvelope[nylasEvent]
	path := fmt.Sprintf("/v3/grants/%s/events?calendar_id=%s", url.PathEscape(credentialID), url.QueryEscape(calendarID))
	if err := p.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}

	created := out.Data.toExternal()
	if created.CalendarID == "" {
		created.CalendarID = calendarID
	}
	return &created, nil
}

func (p *NylasProvider) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Error("NylasProvider:Request:Error", "method", method, "error", err)
		return fmt.Errorf("nylas request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read nylas response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr nylasError
		msg := string(raw)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		logger.Error("NylasProvider:Request:Status", "method", method, "status", resp.StatusCode, "message", msg)
		return fmt.Errorf("nylas API error (%d): %s", resp.StatusCode, msg)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode nylas response: %w", err)
	}
	return nil
}

func (ev nylasEvent) toExternal() ExternalEvent {
	out := ExternalEvent{
		ID:          ev.ID,
		CalendarID:  ev.CalendarID,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
	}

	switch ev.When.Object {
	case "date":
		out.StartDate = ev.When.Date
		out.EndDate = ev.When.Date
	case "datespan":
		out.StartDate = ev.When.StartDate
		out.EndDate = ev.When.EndDate
	default:
		if ev.When.StartTime > 0 {
			t := time.Unix(ev.When.StartTime, 0).UTC()
			out.StartTime = &t
		}
		if ev.When.EndTime > 0 {
			t := time.Unix(ev.When.EndTime, 0).UTC()
			out.EndTime = &t
		}
	}

	for _, p := range ev.Participants {
		out.Participants = append(out.Participants, Participant{Email: p.Email, Name: p.Name})
	}
	return out
}
