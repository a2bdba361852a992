package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"taskflow-api/modules/calendar/dto"
	notifDto "taskflow-api/modules/notification/dto"
	notifEntity "taskflow-api/modules/notification/entity"

	"github.com/google/uuid"
)

type recordingNotifier struct {
	reqs []*notifDto.CreateNotificationRequest
}

func (r *recordingNotifier) Create(_ context.Context, req *notifDto.CreateNotificationRequest) error {
	r.reqs = append(r.reqs, req)
	return nil
}

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(_ context.Context, key string, body []byte, _ string) error {
	m.objects[key] = body
	return nil
}

func TestNotificationEmitter(t *testing.T) {
	n := &recordingNotifier{}
	emitter := NewNotificationEmitter(n)
	userID := uuid.New()

	emitter.Emit(context.Background(), SyncEvent{Type: EventUserCompleted, Outcome: &dto.SyncOutcome{UserID: userID.String()}})
	if len(n.reqs) != 0 {
		t.Fatal("notified for a sync that created nothing")
	}

	emitter.Emit(context.Background(), SyncEvent{Type: EventUserCompleted, Outcome: &dto.SyncOutcome{UserID: userID.String(), TasksCreated: 3}})
	emitter.Emit(context.Background(), SyncEvent{Type: EventPushFailed, UserID: userID.String(), TaskID: "t1", Err: "boom"})
	emitter.Emit(context.Background(), SyncEvent{Type: EventTaskCreated, UserID: userID.String()})

	if len(n.reqs) != 2 {
		t.Fatalf("notifications = %d, want 2", len(n.reqs))
	}
	if n.reqs[0].UserID != userID || n.reqs[0].Type != notifEntity.TypeCalendarSync || n.reqs[0].Data["tasks_created"] != 3 {
		t.Errorf("sync notification = %+v", n.reqs[0])
	}
	if n.reqs[1].Type != notifEntity.TypeCalendarPush {
		t.Errorf("push notification type = %s", n.reqs[1].Type)
	}
}

func TestReportArchiver(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{}}
	archiver := NewReportArchiver(store)

	summary := &dto.PassSummary{
		PassID:       "abc123",
		StartedAt:    time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC),
		Users:        2,
		TasksCreated: 4,
	}
	archiver.Emit(context.Background(), SyncEvent{Type: EventUserCompleted, Outcome: &dto.SyncOutcome{}})
	archiver.Emit(context.Background(), SyncEvent{Type: EventPassCompleted, Summary: summary})

	if len(store.objects) != 1 {
		t.Fatalf("objects = %d, want 1", len(store.objects))
	}
	body, ok := store.objects["2026/03/10/abc123.json"]
	if !ok {
		t.Fatalf("missing object, have %v", store.objects)
	}
	var got dto.PassSummary
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Users != 2 || got.TasksCreated != 4 {
		t.Errorf("archived summary = %+v", got)
	}
}

func TestMultiEmitterFansOut(t *testing.T) {
	a, b := &captureEmitter{}, &captureEmitter{}
	var seen []EventType
	fn := EmitterFunc(func(ctx context.Context, ev SyncEvent) { seen = append(seen, ev.Type) })

	MultiEmitter{a, nil, b, fn}.Emit(context.Background(), SyncEvent{Type: EventTaskCreated})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("fan-out = %d/%d, want 1/1", len(a.events), len(b.events))
	}
	if len(seen) != 1 || seen[0] != EventTaskCreated {
		t.Errorf("EmitterFunc saw %v", seen)
	}
}
