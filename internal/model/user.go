package model

import (
	"time"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/role"
)

// User represents an authenticated account.
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      role.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile is the role-specific profile attached to a user. The client caches
// a snapshot of it after login for display and session-identity purposes.
type Profile struct {
	UserID int    `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	NISN   string `json:"nisn,omitempty"`  // Student only
	Class  string `json:"class,omitempty"` // Student only
	NIP    string `json:"nip,omitempty"`   // Teacher only
}

// TokenPair is the persisted access/refresh credential pair. A successful
// refresh replaces both members atomically.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=4,max=128"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	User         User    `json:"user"`
	Profile      Profile `json:"profile"`
}

// RefreshRequest is the payload for exchanging a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshResponse carries the replacement token pair.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// CreateUserRequest is the payload for creating an account.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Role     string `json:"role" validate:"required,oneof=admin teacher student"`
	Email    string `json:"email" validate:"omitempty,email"`
	NISN     string `json:"nisn" validate:"omitempty,min=4,max=20"`
	Class    string `json:"class" validate:"omitempty,max=20"`
	NIP      string `json:"nip" validate:"omitempty,min=4,max=30"`
}

// UpdateUserRequest is the payload for updating an account.
type UpdateUserRequest struct {
	Name     string `json:"name" validate:"omitempty,min=2,max=100"`
	Password string `json:"password" validate:"omitempty,min=6,max=128"`
	Email    string `json:"email" validate:"omitempty,email"`
	Class    string `json:"class" validate:"omitempty,max=20"`
}
