package models

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest is the credential payload of POST /auth/login.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// NormalizedEmail is the lookup key for the account.
func (r LoginRequest) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(r.Email))
}

// LoginResponse carries the bearer token issued on login.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
}

// UserInfo describes the caller. YearOfStudy is present for students only.
type UserInfo struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	Role        UserRole   `json:"role"`
	YearOfStudy *int       `json:"year_of_study,omitempty"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

// JWTClaims is the access token payload. The subject is the user id.
type JWTClaims struct {
	UserID   string   `json:"uid"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email,omitempty"`
	FullName string   `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// ActsFor reports whether the caller may act on studentID's records. Only student
// callers are restricted to their own id.
func (c *JWTClaims) ActsFor(studentID string) bool {
	if c == nil {
		return false
	}
	return c.Role != RoleStudent || c.UserID == studentID
}
