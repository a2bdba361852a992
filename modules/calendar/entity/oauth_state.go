package entity

import (
	"time"

	"taskflow-api/core/entity"

	"github.com/google/uuid"
)

// OAuthState ties a pending Google consent redirect to the user who started it.
type OAuthState struct {
	State     string    `db:"state"`
	UserID    uuid.UUID `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	entity.BaseEntity
}
