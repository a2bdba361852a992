package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestNylas(t *testing.T, handler http.HandlerFunc) *NylasProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewNylasProvider(NylasConfig{APIKey: "test-key", APIURI: srv.URL + "/"})
}

func TestNylasListEvents(t *testing.T) {
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	p := newTestNylas(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/grants/grant-1/events" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("calendar_id") != "primary" || q.Get("limit") != "100" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("start") != "1780304400" {
			t.Errorf("start = %s", q.Get("start"))
		}
		w.Write([]byte(`{"request_id":"r1","data":[
			{"id":"ev1","calendar_id":"cal","title":"Standup","location":"Room 3",
			 "when":{"object":"timespan","start_time":1780304400,"end_time":1780306200},
			 "participants":[{"email":"a@x.com"},{"email":"b@x.com","name":"Bea"}]},
			{"id":"ev2","title":"Offsite","when":{"object":"date","date":"2026-06-02"}},
			{"id":"ev3","title":"Conference","when":{"object":"datespan","start_date":"2026-06-03","end_date":"2026-06-05"}}
		]}`))
	})

	events, err := p.ListEvents(context.Background(), "grant-1", EventQuery{
		Start: start, End: start.Add(24 * time.Hour), Limit: 100,
	})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	ev := events[0]
	if ev.StartTime == nil || !ev.StartTime.Equal(start) {
		t.Errorf("StartTime = %v, want %v", ev.StartTime, start)
	}
	if ev.EndTime == nil || !ev.EndTime.Equal(start.Add(30*time.Minute)) {
		t.Errorf("EndTime = %v", ev.EndTime)
	}
	if len(ev.Participants) != 2 || ev.Participants[1].DisplayName() != "Bea" || ev.Participants[0].DisplayName() != "a@x.com" {
		t.Errorf("Participants = %+v", ev.Participants)
	}

	if events[1].StartTime != nil || events[1].StartDate != "2026-06-02" {
		t.Errorf("date event = %+v", events[1])
	}
	if events[2].StartDate != "2026-06-03" || events[2].EndDate != "2026-06-05" {
		t.Errorf("datespan event = %+v", events[2])
	}
}

func TestNylasErrorStatus(t *testing.T) {
	p := newTestNylas(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"type":"unauthorized","message":"grant expired"}}`))
	})

	_, err := p.ListEvents(context.Background(), "grant-1", EventQuery{Start: time.Now(), End: time.Now()})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "grant expired") || !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %v", err)
	}
}

func TestNylasCreateEvent(t *testing.T) {
	due := time.Date(2026, 7, 1, 15, 0, 0, 0, time.UTC)

	p := newTestNylas(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Query().Get("calendar_id") != "cal-1" {
			t.Errorf("calendar_id = %s", r.URL.Query().Get("calendar_id"))
		}
		var body struct {
			Title string    `json:"title"`
			When  nylasWhen `json:"when"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Title != "[Task] Ship it" || body.When.StartTime != due.Unix() || body.When.EndTime != due.Add(time.Hour).Unix() {
			t.Errorf("body = %+v", body)
		}
		w.Write([]byte(`{"data":{"id":"created-1","title":"[Task] Ship it"}}`))
	})

	ev, err := p.CreateEvent(context.Background(), "grant-1", "cal-1", NewEvent{
		Title: "[Task] Ship it", Start: due, End: due.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if ev.ID != "created-1" || ev.CalendarID != "cal-1" {
		t.Errorf("event = %+v", ev)
	}
}

func TestPickCalendar(t *testing.T) {
	cals := []Calendar{
		{ID: "ro", ReadOnly: true, IsPrimary: true},
		{ID: "first"},
		{ID: "main", IsPrimary: true},
	}
	got, err := PickCalendar(cals)
	if err != nil || got.ID != "main" {
		t.Errorf("PickCalendar = %+v, %v", got, err)
	}

	got, err = PickCalendar(cals[:2])
	if err != nil || got.ID != "first" {
		t.Errorf("fallback = %+v, %v", got, err)
	}

	if _, err := PickCalendar([]Calendar{{ID: "ro", ReadOnly: true}}); err != ErrNoCalendar {
		t.Errorf("err = %v, want ErrNoCalendar", err)
	}
}
