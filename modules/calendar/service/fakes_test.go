package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taskflow-api/modules/calendar/entity"
	"taskflow-api/modules/calendar/provider"
	"taskflow-api/modules/calendar/repository"
	taskEntity "taskflow-api/modules/task/entity"
	userEntity "taskflow-api/modules/user/entity"
	userRepository "taskflow-api/modules/user/repository"

	"github.com/google/uuid"
)

type fakeUsers struct {
	users  []userEntity.User
	failOn map[uuid.UUID]error
}

func (f *fakeUsers) GetUserByID(_ context.Context, id uuid.UUID) (*userEntity.User, error) {
	if err, ok := f.failOn[id]; ok {
		return nil, err
	}
	for i := range f.users {
		if f.users[i].ID == id {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, userRepository.ErrUserNotFound
}

func (f *fakeUsers) ListActiveUsers(context.Context) ([]userEntity.User, error) {
	return f.users, nil
}

func newUser(email string, role userEntity.Role) userEntity.User {
	u := userEntity.User{Email: email, Role: role, IsActive: true}
	u.ID = uuid.New()
	return u
}

type fakeRecords struct {
	mu      sync.Mutex
	records []entity.SyncRecord
	tasks   []taskEntity.Task
	failOn  map[string]error // keyed by external event id
	panicOn map[string]bool
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{failOn: map[string]error{}, panicOn: map[string]bool{}}
}

var _ repository.SyncRecordRepositoryInterface = (*fakeRecords)(nil)

func (f *fakeRecords) FindByEventAndUser(_ context.Context, eventID string, userID uuid.UUID) (*entity.SyncRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ExternalEventID == eventID && f.records[i].UserID == userID {
			r := f.records[i]
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeRecords) FindOutboundByTask(_ context.Context, taskID uuid.UUID) (*entity.SyncRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].TaskID == taskID && f.records[i].Direction == entity.DirectionTaskToExternal {
			r := f.records[i]
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeRecords) CreateRecord(_ context.Context, record *entity.SyncRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record.ID = uuid.New()
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeRecords) MaterializeTask(_ context.Context, task *taskEntity.Task, record *entity.SyncRecord) error {
	if f.panicOn[record.ExternalEventID] {
		panic("boom")
	}
	if err := f.failOn[record.ExternalEventID]; err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	task.ID = uuid.New()
	record.TaskID = task.ID
	record.ID = uuid.New()
	f.tasks = append(f.tasks, *task)
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeRecords) taskCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

type fakeProvider struct {
	mu        sync.Mutex
	events    map[string][]provider.ExternalEvent // keyed by credential
	listErr   map[string]error
	calendars []provider.Calendar
	createErr error
	created   []provider.NewEvent
	queries   []provider.EventQuery
	block     chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{events: map[string][]provider.ExternalEvent{}, listErr: map[string]error{}}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) ListEvents(ctx context.Context, credentialID string, q provider.EventQuery) ([]provider.ExternalEvent, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if err := f.listErr[credentialID]; err != nil {
		return nil, err
	}
	return f.events[credentialID], nil
}

func (f *fakeProvider) ListCalendars(context.Context, string) ([]provider.Calendar, error) {
	return f.calendars, nil
}

func (f *fakeProvider) CreateEvent(_ context.Context, _ string, calendarID string, ev provider.NewEvent) (*provider.ExternalEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, ev)
	start, end := ev.Start, ev.End
	return &provider.ExternalEvent{ID: "pushed-" + calendarID, CalendarID: calendarID, Title: ev.Title, StartTime: &start, EndTime: &end}, nil
}

type captureEmitter struct {
	mu     sync.Mutex
	events []SyncEvent
}

func (c *captureEmitter) Emit(_ context.Context, ev SyncEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureEmitter) ofType(t EventType) []SyncEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []SyncEvent
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

var errBoom = errors.New("boom")

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := testNow.Add(d)
	return &t
}

type engineFixture struct {
	engine   *SyncEngine
	users    *fakeUsers
	records  *fakeRecords
	provider *fakeProvider
	emitter  *captureEmitter
}

func newEngineFixture(t *testing.T, users ...userEntity.User) *engineFixture {
	t.Helper()
	f := &engineFixture{
		users:    &fakeUsers{users: users, failOn: map[uuid.UUID]error{}},
		records:  newFakeRecords(),
		provider: newFakeProvider(),
		emitter:  &captureEmitter{},
	}
	f.engine = NewSyncEngine(f.users, f.records, f.provider, nil, f.emitter, EngineConfig{
		DefaultCredentialID: "grant-default",
		Location:            time.UTC,
	})
	f.engine.SetClock(func() time.Time { return testNow })
	return f
}
