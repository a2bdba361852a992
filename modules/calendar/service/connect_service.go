package service

import (
	"context"
	stdErrors "errors"
	"time"

	"taskflow-api/core/errors"
	"taskflow-api/core/logger"
	"taskflow-api/modules/calendar/entity"
	"taskflow-api/modules/calendar/repository"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/oauth2"
)

const (
	oauthStateTTL    = 10 * time.Minute
	oauthStateLength = 32
	providerGoogle   = "google"
)

type GoogleAuthorizer interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, string, error)
}

type ConnectionWriter interface {
	CreateConnection(ctx context.Context, conn *entity.CalendarConnection) (*entity.CalendarConnection, error)
	GetConnectionByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) (*entity.CalendarConnection, error)
	UpdateConnection(ctx context.Context, conn *entity.CalendarConnection) error
}

type GrantWriter interface {
	SetProviderGrant(ctx context.Context, id uuid.UUID, grantID string) error
}

// ConnectService links a user's Google account so the sync engine can read
// their calendar. The stored connection id becomes the user's credential.
type ConnectService struct {
	oauth       GoogleAuthorizer
	states      repository.OAuthStateRepositoryInterface
	connections ConnectionWriter
	users       GrantWriter
	now         func() time.Time
}

func NewConnectService(
	oauth GoogleAuthorizer,
	states repository.OAuthStateRepositoryInterface,
	connections ConnectionWriter,
	users GrantWriter,
) *ConnectService {
	return &ConnectService{
		oauth:       oauth,
		states:      states,
		connections: connections,
		users:       users,
		now:         time.Now,
	}
}

func (s *ConnectService) ConnectURL(ctx context.Context, userID uuid.UUID) (string, *errors.AppError) {
	s.cleanupExpiredStates(ctx)

	state, err := gonanoid.New(oauthStateLength)
	if err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "failed to generate state", err)
	}

	if err := s.states.SaveOAuthState(ctx, state, userID, s.now().Add(oauthStateTTL)); err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "failed to save oauth state", err)
	}
	return s.oauth.AuthCodeURL(state), nil
}

// CompleteConnect handles the consent redirect: it validates the state,
// stores the tokens and points the user's grant at the connection.
func (s *ConnectService) CompleteConnect(ctx context.Context, state, code string) (*entity.CalendarConnection, *errors.AppError) {
	if state == "" || code == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "state and code are required", nil)
	}

	pending, err := s.states.ConsumeOAuthState(ctx, state)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load oauth state", err)
	}
	if pending == nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid or expired state", nil)
	}

	token, email, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		logger.Error("ConnectService:CompleteConnect:Exchange:Error", "user_id", pending.UserID, "error", err)
		return nil, errors.NewAppError(errors.ErrProviderUnavailable, "failed to connect google calendar", err)
	}

	conn, err := s.connections.GetConnectionByUserAndProvider(ctx, pending.UserID, providerGoogle)
	switch {
	case err == nil:
		conn.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			conn.RefreshToken = token.RefreshToken
		}
		conn.TokenExpiresAt = token.Expiry
		conn.IsActive = true
		if err := s.connections.UpdateConnection(ctx, conn); err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "failed to update calendar connection", err)
		}
	case stdErrors.Is(err, repository.ErrConnectionNotFound):
		conn, err = s.connections.CreateConnection(ctx, &entity.CalendarConnection{
			UserID:         pending.UserID,
			Provider:       providerGoogle,
			AccessToken:    token.AccessToken,
			RefreshToken:   token.RefreshToken,
			TokenExpiresAt: token.Expiry,
			CalendarEmail:  email,
			IsActive:       true,
		})
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "failed to save calendar connection", err)
		}
	default:
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load calendar connection", err)
	}

	if err := s.users.SetProviderGrant(ctx, pending.UserID, conn.ID.String()); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to store calendar grant", err)
	}

	logger.Info("ConnectService:CompleteConnect:Success", "user_id", pending.UserID, "connection_id", conn.ID)
	return conn, nil
}

// cleanupExpiredStates drops consent redirects that were never completed.
func (s *ConnectService) cleanupExpiredStates(ctx context.Context) {
	if err := s.states.CleanupExpiredOAuthStates(ctx); err != nil {
		logger.Warn("ConnectService:CleanupExpiredStates:Error", "error", err)
	}
}
