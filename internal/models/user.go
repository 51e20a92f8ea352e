package models

import (
	"time"
)

// User is a member of a tenant's sales team.
// Collection: users
type User struct {
	ID           string     `bson:"_id" json:"id"`
	TenantID     string     `bson:"tenant_id" json:"tenant_id"`
	Email        string     `bson:"email" json:"email"`
	PasswordHash string     `bson:"password_hash" json:"-"` // Never expose in JSON
	Name         string     `bson:"name" json:"name"`
	Role         UserRole   `bson:"role" json:"role"`
	IsActive     bool       `bson:"is_active" json:"is_active"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
	LastLoginAt  *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
}

type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"     // Full access to all features
	UserRoleSalesRep UserRole = "sales_rep" // Sales operations access
	UserRoleManager  UserRole = "manager"   // Team management access
)

// IsValidUserRole checks if the user role is valid
func IsValidUserRole(role string) bool {
	switch UserRole(role) {
	case UserRoleAdmin, UserRoleSalesRep, UserRoleManager:
		return true
	}
	return false
}

// UserProfile is the safe subset of a user returned to clients.
type UserProfile struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenant_id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Role     UserRole `json:"role"`
}

// ToProfile converts a User to a UserProfile (safe for API responses)
func (u *User) ToProfile() UserProfile {
	return UserProfile{
		ID:       u.ID,
		TenantID: u.TenantID,
		Email:    u.Email,
		Name:     u.Name,
		Role:     u.Role,
	}
}
