package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"taskflow-api/core/errors"
	"taskflow-api/modules/calendar/entity"
	"taskflow-api/modules/calendar/repository"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

type fakeAuthorizer struct {
	exchangeErr error
	refresh     string
}

func (f *fakeAuthorizer) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (f *fakeAuthorizer) Exchange(context.Context, string) (*oauth2.Token, string, error) {
	if f.exchangeErr != nil {
		return nil, "", f.exchangeErr
	}
	return &oauth2.Token{AccessToken: "access", RefreshToken: f.refresh, Expiry: testNow.Add(time.Hour)}, "me@example.com", nil
}

type fakeStates struct {
	states  map[string]uuid.UUID
	cleaned int
}

func (f *fakeStates) SaveOAuthState(_ context.Context, state string, userID uuid.UUID, _ time.Time) error {
	f.states[state] = userID
	return nil
}

func (f *fakeStates) ConsumeOAuthState(_ context.Context, state string) (*entity.OAuthState, error) {
	userID, ok := f.states[state]
	if !ok {
		return nil, nil
	}
	delete(f.states, state)
	return &entity.OAuthState{State: state, UserID: userID}, nil
}

func (f *fakeStates) CleanupExpiredOAuthStates(context.Context) error {
	f.cleaned++
	return nil
}

type fakeConnections struct {
	conns []*entity.CalendarConnection
}

func (f *fakeConnections) CreateConnection(_ context.Context, conn *entity.CalendarConnection) (*entity.CalendarConnection, error) {
	conn.ID = uuid.New()
	f.conns = append(f.conns, conn)
	return conn, nil
}

func (f *fakeConnections) GetConnectionByUserAndProvider(_ context.Context, userID uuid.UUID, provider string) (*entity.CalendarConnection, error) {
	for _, c := range f.conns {
		if c.UserID == userID && c.Provider == provider {
			return c, nil
		}
	}
	return nil, repository.ErrConnectionNotFound
}

func (f *fakeConnections) UpdateConnection(context.Context, *entity.CalendarConnection) error {
	return nil
}

type fakeGrants map[uuid.UUID]string

func (f fakeGrants) SetProviderGrant(_ context.Context, id uuid.UUID, grantID string) error {
	f[id] = grantID
	return nil
}

func newConnectFixture() (*ConnectService, *fakeAuthorizer, *fakeStates, *fakeConnections, fakeGrants) {
	auth := &fakeAuthorizer{refresh: "refresh-1"}
	states := &fakeStates{states: map[string]uuid.UUID{}}
	conns := &fakeConnections{}
	grants := fakeGrants{}
	return NewConnectService(auth, states, conns, grants), auth, states, conns, grants
}

func stateFrom(t *testing.T, url string) string {
	t.Helper()
	_, state, ok := strings.Cut(url, "state=")
	if !ok || state == "" {
		t.Fatalf("no state in %q", url)
	}
	return state
}

func TestConnectFlowCreatesConnectionAndGrant(t *testing.T) {
	svc, _, states, conns, grants := newConnectFixture()
	userID := uuid.New()

	url, appErr := svc.ConnectURL(context.Background(), userID)
	if appErr != nil {
		t.Fatalf("ConnectURL: %v", appErr)
	}
	if states.cleaned != 1 {
		t.Errorf("expired states cleaned %d times, want 1", states.cleaned)
	}
	state := stateFrom(t, url)

	conn, appErr := svc.CompleteConnect(context.Background(), state, "code")
	if appErr != nil {
		t.Fatalf("CompleteConnect: %v", appErr)
	}
	if conn.UserID != userID || conn.CalendarEmail != "me@example.com" || conn.RefreshToken != "refresh-1" {
		t.Errorf("connection = %+v", conn)
	}
	if len(conns.conns) != 1 {
		t.Errorf("connections = %d, want 1", len(conns.conns))
	}
	if grants[userID] != conn.ID.String() {
		t.Errorf("grant = %q, want %s", grants[userID], conn.ID)
	}

	// states are single use
	if _, appErr := svc.CompleteConnect(context.Background(), state, "code"); appErr == nil || appErr.Code != errors.ErrInvalidInput {
		t.Errorf("replayed state err = %v, want %s", appErr, errors.ErrInvalidInput)
	}
}

func TestConnectFlowReconnectKeepsRefreshToken(t *testing.T) {
	svc, auth, _, conns, _ := newConnectFixture()
	userID := uuid.New()

	url, _ := svc.ConnectURL(context.Background(), userID)
	first, appErr := svc.CompleteConnect(context.Background(), stateFrom(t, url), "code")
	if appErr != nil {
		t.Fatalf("CompleteConnect: %v", appErr)
	}

	auth.refresh = ""
	url, _ = svc.ConnectURL(context.Background(), userID)
	second, appErr := svc.CompleteConnect(context.Background(), stateFrom(t, url), "code")
	if appErr != nil {
		t.Fatalf("reconnect: %v", appErr)
	}

	if len(conns.conns) != 1 || second.ID != first.ID {
		t.Errorf("reconnect created a second connection")
	}
	if second.RefreshToken != "refresh-1" {
		t.Errorf("refresh token = %q, want it kept", second.RefreshToken)
	}
}

func TestCompleteConnectErrors(t *testing.T) {
	svc, auth, _, _, _ := newConnectFixture()

	if _, appErr := svc.CompleteConnect(context.Background(), "", "code"); appErr == nil || appErr.Code != errors.ErrInvalidInput {
		t.Errorf("missing state err = %v", appErr)
	}

	url, _ := svc.ConnectURL(context.Background(), uuid.New())
	auth.exchangeErr = errBoom
	if _, appErr := svc.CompleteConnect(context.Background(), stateFrom(t, url), "code"); appErr == nil || appErr.Code != errors.ErrProviderUnavailable {
		t.Errorf("exchange failure err = %v, want %s", appErr, errors.ErrProviderUnavailable)
	}
}
