package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taskflow-api/core/database"
	"taskflow-api/core/logger"
	"taskflow-api/modules/calendar/entity"

	"github.com/google/uuid"
)

type OAuthStateRepositoryInterface interface {
	SaveOAuthState(ctx context.Context, state string, userID uuid.UUID, expiresAt time.Time) error
	ConsumeOAuthState(ctx context.Context, state string) (*entity.OAuthState, error)
	CleanupExpiredOAuthStates(ctx context.Context) error
}

type OAuthStateRepository struct {
	DB database.IDatabase
}

func NewOAuthStateRepository(db database.IDatabase) *OAuthStateRepository {
	return &OAuthStateRepository{DB: db}
}

// SaveOAuthState saves OAuth state token to database
func (r *OAuthStateRepository) SaveOAuthState(ctx context.Context, state string, userID uuid.UUID, expiresAt time.Time) error {
	query := `
		INSERT INTO oauth_states (state, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (state)
		DO UPDATE SET user_id = $2, expires_at = $3, updated_at = NOW()
	`
	if err := r.DB.ExecContext(ctx, query, state, userID, expiresAt); err != nil {
		logger.Error("OAuthStateRepository:SaveOAuthState:Error", "error", err, "user_id", userID)
		return err
	}
	return nil
}

// ConsumeOAuthState deletes the state and returns it, or nil when it is
// unknown or expired. A state can only be used once.
func (r *OAuthStateRepository) ConsumeOAuthState(ctx context.Context, state string) (*entity.OAuthState, error) {
	var oauthState entity.OAuthState
	query := `
		DELETE FROM oauth_states
		WHERE state = $1 AND expires_at > NOW()
		RETURNING id, state, user_id, expires_at, created_at, updated_at
	`
	if err := r.DB.GetContext(ctx, &oauthState, query, state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("OAuthStateRepository:ConsumeOAuthState:Error", "error", err)
		return nil, err
	}
	return &oauthState, nil
}

// CleanupExpiredOAuthStates removes expired OAuth state tokens
func (r *OAuthStateRepository) CleanupExpiredOAuthStates(ctx context.Context) error {
	if err := r.DB.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at < NOW()`); err != nil {
		logger.Error("OAuthStateRepository:CleanupExpiredOAuthStates:Error", "error", err)
		return err
	}
	return nil
}
