// internal/domain/auth/dto.go
package auth

import "time"

// User types
const (
	UserTypeUser           = "USER"
	UserTypeSignalProvider = "SIGNAL_PROVIDER"
)

// RegisterRequest for user and signal provider registration
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Username string `json:"username"`
	UserType string `json:"user_type"`
	Device   string `json:"device"`
}

// LoginRequest for password login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Device   string `json:"device"`
}

// OTPRequest asks the server to send a one-time code
type OTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// OTPVerifyRequest exchanges a one-time code for a session
type OTPVerifyRequest struct {
	Email  string `json:"email" binding:"required,email"`
	Code   string `json:"code" binding:"required,len=6"`
	Device string `json:"device"`
}

// User is the profile returned by /auth/me
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Username   string    `json:"username,omitempty"`
	UserType   string    `json:"user_type"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	Followers  int       `json:"followers"`
	Following  int       `json:"following"`
	CreatedAt  time.Time `json:"created_at"`
	IsVerified bool      `json:"is_verified"`
}

// State is the in-memory view of the session held by the client.
type State struct {
	LoggedIn bool
	UserType string
}

func (s State) IsSignalProvider() bool {
	return s.LoggedIn && s.UserType == UserTypeSignalProvider
}
