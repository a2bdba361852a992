package entity

import (
	"taskflow-api/core/entity"
)

type Role string

const (
	RoleOrganisation Role = "organisation"
	RoleMember       Role = "member"
)

type User struct {
	Email           string  `db:"email" json:"email"`
	Name            string  `db:"name" json:"name"`
	Role            Role    `db:"role" json:"role"`
	ProviderGrantID *string `db:"provider_grant_id" json:"-"`
	IsActive        bool    `db:"is_active" json:"is_active"`
	entity.BaseEntity
}

// IsOrganisation reports whether the user holds the elevated organisation role.
func (u *User) IsOrganisation() bool {
	return u.Role == RoleOrganisation
}

// GrantID returns the user's own provider credential, or "" if none is stored.
func (u *User) GrantID() string {
	if u.ProviderGrantID == nil {
		return ""
	}
	return *u.ProviderGrantID
}
