package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the account type of a user
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCustomer Role = "CUSTOMER"
)

// ParseRole validates a role string case-insensitively, defaulting to
// customer when empty
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case "":
		return RoleCustomer, true
	case RoleAdmin, RoleCustomer:
		return r, true
	}
	return "", false
}

// User represents a user in the domain layer
type User struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// UserResponse is the public representation of a user
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	LastLogin string    `json:"last_login,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToResponse converts a User to a UserResponse
func (u *User) ToResponse() *UserResponse {
	response := &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
	if u.LastLogin != nil {
		response.LastLogin = u.LastLogin.UTC().Format(time.RFC3339)
	}
	return response
}

// UserLookup resolves a user by id
type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	UserLookup
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetPasswordHash(ctx context.Context, userID uuid.UUID) (string, error)
	UpdateUserPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
	UserExistsByEmail(ctx context.Context, email string) (bool, error)
	UserExistsByUsername(ctx context.Context, username string) (bool, error)
}

// CreateUserParams holds parameters for user creation
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	Role         Role
}
