package repository

import (
	"context"
	"database/sql"
	"errors"

	"taskflow-api/core/database"
	"taskflow-api/core/logger"
	"taskflow-api/modules/user/entity"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when no row matches the requested id.
var ErrUserNotFound = errors.New("user not found")

type UserRepositoryInterface interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	ListActiveUsers(ctx context.Context) ([]entity.User, error)
	SetProviderGrant(ctx context.Context, id uuid.UUID, grantID string) error
}

type UserRepository struct {
	DB database.IDatabase
}

func NewUserRepository(db database.IDatabase) *UserRepository {
	return &UserRepository{DB: db}
}

const userColumns = `id, email, name, role, provider_grant_id, is_active, created_at, updated_at`

func (r *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	err := r.DB.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		logger.Error("UserRepository:GetUserByID:Error", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) ListActiveUsers(ctx context.Context) ([]entity.User, error) {
	var users []entity.User
	query := `SELECT ` + userColumns + ` FROM users WHERE is_active = true ORDER BY created_at ASC`
	if err := r.DB.SelectContext(ctx, &users, query); err != nil {
		logger.Error("UserRepository:ListActiveUsers:Error", "error", err)
		return nil, err
	}
	return users, nil
}

// SetProviderGrant stores the credential the sync engine uses for the user.
func (r *UserRepository) SetProviderGrant(ctx context.Context, id uuid.UUID, grantID string) error {
	query := `UPDATE users SET provider_grant_id = $1, updated_at = NOW() WHERE id = $2`
	if err := r.DB.ExecContext(ctx, query, grantID, id); err != nil {
		logger.Error("UserRepository:SetProviderGrant:Error", "error", err, "user_id", id)
		return err
	}
	return nil
}
